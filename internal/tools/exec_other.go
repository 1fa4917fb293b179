//go:build !unix

package tools

import (
	"os"
	"path/filepath"
	"strings"
)

// isExecutableFile reports whether p is a regular file with an executable extension.
func isExecutableFile(p string) bool {
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range pathExts() {
		if ext == e {
			return true
		}
	}
	return false
}

// withExecutableSuffixes expands a bare name with each PATHEXT extension.
// npm-installed CLIs ship as name.cmd next to an extensionless shell script.
func withExecutableSuffixes(p string) []string {
	if filepath.Ext(p) != "" {
		return []string{p}
	}
	out := make([]string, 0, 4)
	for _, e := range pathExts() {
		out = append(out, p+e)
	}
	return out
}

func pathExts() []string {
	v := os.Getenv("PATHEXT")
	if v == "" {
		return []string{".com", ".exe", ".bat", ".cmd"}
	}
	var exts []string
	for _, e := range strings.Split(strings.ToLower(v), ";") {
		if e = strings.TrimSpace(e); e != "" {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, e)
		}
	}
	return exts
}
