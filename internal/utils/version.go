package utils

import (
	"fmt"
	"runtime/debug"
)

// Version information, set with
// -ldflags "-X github.com/mettke/mean-image/internal/utils.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	// go install builds carry the module version but no ldflags
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}

// GetVersionString returns a formatted version string
func GetVersionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
