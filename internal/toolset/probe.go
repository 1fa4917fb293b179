package toolset

import (
	"context"
	"strings"
	"time"

	"github.com/hyperifyio/toolgate/internal/tools"
)

// probeTimeout bounds each `--version` check.
const probeTimeout = 10 * time.Second

// ProbeResult reports whether one configured program answers `--version`.
type ProbeResult struct {
	Program string
	Path    string
	Version string
	OK      bool
	Detail  string
}

// Probe runs `<program> --version` for every configured program. Failures
// are reported, never fatal.
func (ts *Toolset) Probe(ctx context.Context) []ProbeResult {
	names := ts.cfg.ProgramNames()
	out := make([]ProbeResult, 0, len(names))
	for _, name := range names {
		spec, err := ts.programSpec("probe:"+name, name, []string{"--version"}, probeTimeout)
		if err != nil {
			out = append(out, ProbeResult{Program: name, Detail: err.Error()})
			continue
		}
		spec.Timeout = probeTimeout
		o := ts.exec.Run(ctx, spec)
		res := tools.Classify(o)
		pr := ProbeResult{Program: name, Path: o.Path, OK: !res.IsError}
		if pr.OK {
			pr.Version = firstLine(res.Content)
			ts.logger.Info("program available", "program", name, "path", pr.Path, "version", pr.Version)
		} else {
			pr.Detail = res.Content
			ts.logger.Warn("program check failed", "program", name, "kind", res.Kind.String(), "detail", firstLine(pr.Detail))
		}
		out = append(out, pr)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
