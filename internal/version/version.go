// Package version carries build metadata set with -ldflags.
package version

import "fmt"

var (
	// Version is the release version of the lanekeeper binary.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("lanekeeper %s (%s, built %s)", Version, GitSHA, BuildTime)
}
