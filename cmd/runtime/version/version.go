package version

import "fmt"

// Set at build time via -ldflags.
var (
	semantic  = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Get returns the version string reported by the binaries.
func Get() string {
	return fmt.Sprintf("%s-%s (built %s)", semantic, gitCommit, buildDate)
}
