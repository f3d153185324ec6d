// Package misc holds build identity used across binaries.
package misc

import "runtime/debug"

var (
	appName = "stylo"
	version = "0.0.0-dev"
)

// GetAppName returns the program name used in logs and generated files.
func GetAppName() string {
	return appName
}

// SetAppName overrides the program name, the worker binary does this at
// startup.
func SetAppName(name string) {
	if name != "" {
		appName = name
	}
}

// GetVersion returns the release version baked in at build time.
func GetVersion() string {
	return version
}

// GetGitHash returns the vcs revision recorded in build info.
func GetGitHash() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
