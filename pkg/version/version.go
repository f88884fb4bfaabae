// Package version holds the build version, overridden at link time with
// -ldflags "-X exportmap/pkg/version.Version=...".
package version

import "runtime/debug"

// Version is the running build's version string.
var Version = "v0.3.0"

// Info describes the running binary for the version endpoint.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

// Current combines Version with whatever VCS data the toolchain embedded.
func Current() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: Version}
	}
	return fromBuildInfo(Version, bi)
}

func fromBuildInfo(v string, bi *debug.BuildInfo) Info {
	info := Info{Version: v, GoVersion: bi.GoVersion}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
			if len(info.Revision) > 12 {
				info.Revision = info.Revision[:12]
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
