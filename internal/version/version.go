package version

import (
	"fmt"
	"runtime"
)

// Build metadata, overridden at link time via -ldflags. A binary built
// without them identifies itself as a dev build.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// Info is the build identity reported by the status endpoint and the
// version subcommand.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build identity of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// String formats the identity as a single line for logs and the CLI.
func (i Info) String() string {
	return fmt.Sprintf("vextel %s (commit %s, built %s, %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
