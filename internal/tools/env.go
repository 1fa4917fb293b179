package tools

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// pathListKeys are variables holding OS path lists; extra values for these are
// prepended instead of replacing the inherited value.
var pathListKeys = map[string]struct{}{
	"PATH":              {},
	"NODE_PATH":         {},
	"PYTHONPATH":        {},
	"LD_LIBRARY_PATH":   {},
	"DYLD_LIBRARY_PATH": {},
	"MANPATH":           {},
}

func isPathListKey(key string) bool {
	_, ok := pathListKeys[strings.ToUpper(key)]
	return ok
}

// envKeyEqual compares variable names the way the host OS does.
func envKeyEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// ComposeEnv merges extra into base and returns a new slice. Path-list
// variables get the extra entries prepended (skipping ones already present);
// every other key in extra overrides base. Base order is kept and new keys are
// appended in sorted order. Neither argument is modified.
func ComposeEnv(base []string, extra map[string]string) []string {
	out := append([]string(nil), base...)
	if len(extra) == 0 {
		return out
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := extra[key]
		idx := -1
		for i, kv := range out {
			eq := strings.IndexByte(kv, '=')
			// Windows keeps per-drive cwd entries like "=C:=C:\"; skip them.
			if eq <= 0 {
				continue
			}
			if envKeyEqual(kv[:eq], key) {
				idx = i
			}
		}
		if idx < 0 {
			out = append(out, key+"="+val)
			continue
		}
		name := out[idx][:strings.IndexByte(out[idx], '=')]
		if isPathListKey(key) {
			out[idx] = name + "=" + prependPathList(val, out[idx][len(name)+1:])
		} else {
			out[idx] = name + "=" + val
		}
	}
	return out
}

// prependPathList places the entries of add in front of existing, dropping
// entries of add that existing already contains.
func prependPathList(add, existing string) string {
	have := make(map[string]struct{})
	for _, p := range filepath.SplitList(existing) {
		have[p] = struct{}{}
	}
	var front []string
	for _, p := range filepath.SplitList(add) {
		if p == "" {
			continue
		}
		if _, ok := have[p]; ok {
			continue
		}
		have[p] = struct{}{}
		front = append(front, p)
	}
	if len(front) == 0 {
		return existing
	}
	joined := strings.Join(front, string(os.PathListSeparator))
	if existing == "" {
		return joined
	}
	return joined + string(os.PathListSeparator) + existing
}

// LookupEnv returns the last value of key in env, matching OS semantics.
func LookupEnv(env []string, key string) (string, bool) {
	val, found := "", false
	for _, kv := range env {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			continue
		}
		if envKeyEqual(kv[:eq], key) {
			val, found = kv[eq+1:], true
		}
	}
	return val, found
}
