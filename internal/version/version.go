package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version of aida.
// Override at build time:
//
//	go build -ldflags "-X github.com/hrygo/aida/internal/version.Version=0.4.0"
var Version = "0.3.0"

// DevVersion is reported in dev mode.
var DevVersion = Version + "-dev"

// GitCommit is the commit hash at build time.
var GitCommit = "unknown"

// GetCurrentVersion returns the version string for the given profile mode.
func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return DevVersion
	}
	return Version
}

// canonical turns "0.3.0" or "v0.3.0-dev" into a semver string golang.org/x/mod accepts.
func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsVersionGreaterOrEqualThan returns true if version >= target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// IsVersionGreaterThan returns true if version > target.
func IsVersionGreaterThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > 0
}

// IsValid reports whether v parses as a semantic version.
func IsValid(v string) bool {
	return semver.IsValid(canonical(v))
}

// String returns the version with a short commit suffix when known.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	short := GitCommit
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s", Version, short)
}
