// Package docs provides generated OpenAPI documentation.
//
// Promptbox API
//
//	@title			Promptbox API
//	@version		1.0
//	@description	Prompt library and multi-provider chat API for managing prompts, cards and sessions.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/promptbox
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8990
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/promptbox/serve.go -o ./swagger --parseDependency --parseInternal
