// Package version holds build metadata injected at link time.
package version

import "runtime"

// Build information. Populated via -ldflags at build time.
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
)
