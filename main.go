// Command strata loads store manifests and drives them from the terminal.
package main

import (
	"os"
	"runtime/debug"
	"strings"

	"github.com/zjrosen/strata/cmd"
)

// version is overridden with -ldflags "-X main.version=..." for releases.
var version = ""

func main() {
	cmd.SetVersion(buildVersion())
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildVersion prefers the linked-in release version, then the module
// version recorded by go install, then the VCS revision.
func buildVersion() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	var rev, dirty string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "+dirty"
			}
		}
	}
	if rev == "" {
		return "dev"
	}
	return "dev-" + strings.TrimSpace(rev[:min(len(rev), 12)]) + dirty
}
