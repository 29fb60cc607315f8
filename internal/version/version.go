// Package version exposes build metadata set through -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "1.0.0"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
)

// GetInfo returns a one-line description of the build.
func GetInfo() string {
	return fmt.Sprintf("%s (commit %s)", Version, Commit)
}
