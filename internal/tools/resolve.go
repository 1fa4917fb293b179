package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// NotFoundError reports a failed resolution with every location probed.
type NotFoundError struct {
	Name  string
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("executable %q not found (searched: %s)", e.Name, strings.Join(e.Tried, ", "))
}

// Resolver turns a logical program name into a verified executable path.
// Hits are cached for the process lifetime; reads never take a lock and
// concurrent misses for the same name share a single probe.
type Resolver struct {
	searchPath   string
	isExecutable func(path string) bool
	now          func() time.Time

	cache  sync.Map // searchName -> ResolvedExecutable
	group  singleflight.Group
	probes atomic.Int64
}

// NewResolver returns a resolver that falls back to searchPath (an OS path
// list, usually the composed PATH) when no candidate qualifies.
func NewResolver(searchPath string) *Resolver {
	return &Resolver{
		searchPath:   searchPath,
		isExecutable: isExecutableFile,
		now:          time.Now,
	}
}

// Resolve returns the first qualifying candidate, else the first match of
// searchName on the search path. Cached results are returned without probing.
func (r *Resolver) Resolve(searchName string, candidatePaths []string) (ResolvedExecutable, error) {
	if v, ok := r.cache.Load(searchName); ok {
		res := v.(ResolvedExecutable)
		res.FromCache = true
		return res, nil
	}
	v, err, _ := r.group.Do(searchName, func() (any, error) {
		// Another caller may have filled the entry while we waited to enter.
		if v, ok := r.cache.Load(searchName); ok {
			return v.(ResolvedExecutable), nil
		}
		path, tried := r.probe(searchName, candidatePaths)
		if path == "" {
			return nil, &NotFoundError{Name: searchName, Tried: tried}
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		res := ResolvedExecutable{Path: path, ResolvedAt: r.now()}
		r.cache.Store(searchName, res)
		return res, nil
	})
	if err != nil {
		return ResolvedExecutable{}, err
	}
	return v.(ResolvedExecutable), nil
}

// Invalidate drops the cached entry for searchName, if any.
func (r *Resolver) Invalidate(searchName string) {
	r.cache.Delete(searchName)
}

// Cached reports the cached entry for searchName without probing.
func (r *Resolver) Cached(searchName string) (ResolvedExecutable, bool) {
	v, ok := r.cache.Load(searchName)
	if !ok {
		return ResolvedExecutable{}, false
	}
	return v.(ResolvedExecutable), true
}

// Probes returns how many probe sequences have run.
func (r *Resolver) Probes() int64 {
	return r.probes.Load()
}

func (r *Resolver) probe(searchName string, candidatePaths []string) (string, []string) {
	r.probes.Add(1)
	var tried []string
	check := func(p string) bool {
		tried = append(tried, p)
		return r.isExecutable(p)
	}
	for _, c := range candidatePaths {
		c = ExpandHome(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		for _, p := range withExecutableSuffixes(c) {
			if check(p) {
				return p, tried
			}
		}
	}
	// A name with a separator is a path, not something to search for.
	if searchName == "" || strings.ContainsRune(searchName, '/') || strings.ContainsRune(searchName, filepath.Separator) {
		return "", tried
	}
	for _, dir := range filepath.SplitList(r.searchPath) {
		if dir == "" {
			continue
		}
		for _, p := range withExecutableSuffixes(filepath.Join(ExpandHome(dir), searchName)) {
			if check(p) {
				return p, tried
			}
		}
	}
	return "", tried
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	return filepath.Join(home, p[1:])
}
