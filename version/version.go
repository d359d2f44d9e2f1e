// Package version holds composeguard build information and the version command.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/jongio/composeguard/version.Version=..." at build time.
var (
	Version   = "0.0.0-dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info holds version information.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
}

// New returns the build information for name. When the binary was built
// without ldflags but installed with go install, the module version and VCS
// revision from the embedded build info are used instead.
func New(name string) *Info {
	info := &Info{
		Name:      name,
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fillFromBuildInfo(bi)
	}
	return info
}

func (i *Info) fillFromBuildInfo(bi *debug.BuildInfo) {
	if i.Version == "0.0.0-dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "unknown" && s.Value != "" {
				i.GitCommit = s.Value
			}
		case "vcs.time":
			if i.BuildDate == "unknown" && s.Value != "" {
				i.BuildDate = s.Value
			}
		}
	}
}

// String returns a human-readable version string.
func (i *Info) String() string {
	return fmt.Sprintf("%s version %s (commit: %s, built: %s)", i.Name, i.Version, i.GitCommit, i.BuildDate)
}
