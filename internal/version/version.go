// Package version holds qfwiki build metadata injected via ldflags:
//
//	-ldflags "-X github.com/JohannesMeyerYC/QuantFinanceWiki/internal/version.Version=v1.2.0"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("qfwiki %s (commit %s, built %s)", Version, Commit, Date)
}
