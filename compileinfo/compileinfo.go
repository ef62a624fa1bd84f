// Package compileinfo reports which commit a niiconvert binary was built from,
// so that converted volumes can be traced back to the code that wrote them.
package compileinfo

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

type CompileInfo struct {
	Package    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	if c.Package == "" {
		return "Build information is not available for this binary."
	}

	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	return fmt.Sprintf("This %s binary was built with %s at commit %v at time %v.%s", c.Package, c.GoVersion, c.Commit, c.CommitTime, mod)
}

// Get reads the VCS stamp embedded by the go tool. Test binaries and builds
// outside of a checkout come back mostly empty.
func Get() CompileInfo {
	z, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return fromBuildInfo(z)
}

func fromBuildInfo(z *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		GoVersion: z.GoVersion,
		Package:   z.Path,
	}

	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func Fprint(w io.Writer) {
	fmt.Fprintf(w, "%s\n", Get())
}

func PrintToStdErr() {
	Fprint(os.Stderr)
}
