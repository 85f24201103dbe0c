package repair

import (
	"path/filepath"
	"runtime"
	"strings"
)

// LongPath returns the extended-length form of p, which bypasses the
// conventional path-length limit on Windows. Drive paths get the \\?\
// prefix, UNC shares become \\?\UNC\server\share. On other platforms
// the path is returned absolute and otherwise unchanged.
func LongPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	if runtime.GOOS != "windows" {
		return abs
	}
	if strings.HasPrefix(abs, `\\?\`) {
		return abs
	}
	if strings.HasPrefix(abs, `\\`) {
		return `\\?\UNC\` + abs[2:]
	}
	return `\\?\` + abs
}
