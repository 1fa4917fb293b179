package main

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "v0.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// buildInfo fills whatever -ldflags left unset from the module build info, so
// `go install` builds still report their module version and VCS revision.
func buildInfo() (ver, rev, date string) {
	ver, rev, date = version, commit, buildDate
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ver, rev, date
	}
	if ver == "v0.0.0-dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		ver = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && rev == "unknown":
			rev = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return ver, rev, date
}

// printVersion writes one line; MCP clients show it from the server info too.
func printVersion(w io.Writer) {
	ver, rev, date := buildInfo()
	safeFprintln(w, fmt.Sprintf("toolgate %s (commit %s, built %s)", ver, shortCommit(rev), date))
}

func shortCommit(c string) string {
	c = strings.TrimSpace(c)
	switch {
	case c == "":
		return "unknown"
	case len(c) > 7:
		return c[:7]
	}
	return c
}
