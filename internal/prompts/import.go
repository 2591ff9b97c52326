package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// importSchema validates prompt import documents before anything touches the
// database, so a bad batch is rejected as a whole.
const importSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["prompts"],
	"properties": {
		"prompts": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "text"],
				"properties": {
					"name":        {"type": "string", "minLength": 1},
					"folder":      {"type": "string"},
					"text":        {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"tags":        {"type": "array", "items": {"type": "string"}}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

var importSchema = jsonschema.MustCompileString("prompts-import.json", importSchemaJSON)

type importDoc struct {
	Prompts []struct {
		Name        string   `json:"name"`
		Folder      string   `json:"folder"`
		Text        string   `json:"text"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	} `json:"prompts"`
}

// Import reads a JSON batch of prompts, validates it against the import
// schema, and stores every entry. Validation failures and duplicate names
// reject the batch before any row is written.
func (s *Store) Import(ctx context.Context, r io.Reader) ([]*Prompt, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("import is not valid JSON: %w", err)
	}
	if err := importSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("import failed schema validation: %w", err)
	}

	var parsed importDoc
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode import: %w", err)
	}

	for _, entry := range parsed.Prompts {
		if _, err := s.GetByName(ctx, entry.Folder, entry.Name); err == nil {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateName, entry.Folder, entry.Name)
		}
	}

	out := make([]*Prompt, 0, len(parsed.Prompts))
	for _, entry := range parsed.Prompts {
		p := &Prompt{
			Name:        entry.Name,
			Folder:      entry.Folder,
			Text:        entry.Text,
			Description: entry.Description,
			Tags:        entry.Tags,
		}
		if err := s.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to import %s/%s: %w", entry.Folder, entry.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
