//go:build unix

package tools

import (
	"os"

	"golang.org/x/sys/unix"
)

// isExecutableFile reports whether p is a regular file the current user may execute.
func isExecutableFile(p string) bool {
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return unix.Access(p, unix.X_OK) == nil
}

func withExecutableSuffixes(p string) []string {
	return []string{p}
}
