// Package version exposes the distribution metadata of censusdis.
package version

import "fmt"

const (
	// Name is the distribution name.
	Name = "censusdis"

	// License is the SPDX license identifier.
	License = "BSD-3-Clause"
)

// Version is the semantic version. Overridden at build time with
// -ldflags "-X github.com/sells-group/censusdis/internal/version.Version=...".
var Version = "0.9.0"

// String returns "censusdis 0.9.0 (BSD-3-Clause)".
func String() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, License)
}

// UserAgent returns the User-Agent sent to Census endpoints.
func UserAgent() string {
	return Name + "/" + Version
}
