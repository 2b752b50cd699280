package app

import "fmt"

// Build information set with -ldflags at release time.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString is what `melkor -version` prints.
func VersionString() string {
	return fmt.Sprintf("melkor %s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}
