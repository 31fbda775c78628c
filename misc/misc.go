// Package misc keeps build identification helpers used across the program.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "richedit"

// GetAppName returns short program name used for logs, temporary files and reports.
func GetAppName() string {
	return appName
}

var readBuildInfo = sync.OnceValues(func() (string, string) {
	version, hash := "unknown", "unknown"
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return version, hash
	}
	if len(bi.Main.Version) > 0 && bi.Main.Version != "(devel)" {
		version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			hash = s.Value[:12]
		}
	}
	return version, hash
})

// GetVersion returns module version recorded in the build info.
func GetVersion() string {
	v, _ := readBuildInfo()
	return v
}

// GetGitHash returns short VCS revision recorded in the build info.
func GetGitHash() string {
	_, h := readBuildInfo()
	return h
}
