// Package version reports build metadata stamped in via ldflags:
//
//	go build -ldflags "-X github.com/example/disputedesk/internal/version.Version=v0.3.0 \
//	  -X github.com/example/disputedesk/internal/version.Commit=$(git rev-parse HEAD)"
package version

import "fmt"

// These variables are set at build time via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the human-readable version line.
func String() string {
	return fmt.Sprintf("disputedesk %s (commit: %s, built: %s)", Version, ShortCommit(), BuildTime)
}

// ShortCommit returns the first seven characters of Commit.
func ShortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
