// Package buildinfo reports what binary is running. Version, Commit and
// BuiltAt are set with -ldflags "-X"; missing values fall back to the
// module build info embedded by the Go toolchain.
package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

var fill sync.Once

func Info() map[string]string {
	fill.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "" {
					Commit = s.Value
				}
			case "vcs.time":
				if BuiltAt == "" {
					BuiltAt = s.Value
				}
			}
		}
	})
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
		"go":      runtime.Version(),
	}
}
