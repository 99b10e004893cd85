// Package version reports the build version of noisepanel.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at release time:
//
//	go build -ldflags="-X github.com/muurk/noisepanel/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/noisepanel/internal/version.Commit=abc123"
//
// Local builds fill them from the module and VCS build info instead.
var (
	Version = ""
	Commit  = ""
)

const shortHash = 7

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(info)
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo(info *debug.BuildInfo) {
	// go install pkg@vX.Y.Z records a real module version
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > shortHash {
			rev = rev[:shortHash]
		}
		if settings["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}

	if Version == "" {
		if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies noisepanel to the device and the identity provider
func UserAgent() string {
	return "noisepanel/" + Version
}
