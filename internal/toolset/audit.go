package toolset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

const auditTimeoutPerFile = 60 * time.Second

// auditExtensions are the source files a directory audit looks at.
var auditExtensions = map[string]struct{}{
	".js": {}, ".py": {}, ".ts": {}, ".jsx": {}, ".tsx": {},
	".java": {}, ".php": {}, ".rb": {}, ".go": {},
}

// skipDirs are never descended into when walking a project.
var skipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "__pycache__": {}, ".venv": {}, "venv": {}, "build": {}, "dist": {},
}

var auditLimits = map[string]int{"quick": 10, "deep": 20}

func (ts *Toolset) securityAudit(ctx context.Context, args map[string]any) tools.ToolCallResult {
	target := argString(args, "target_path", "")
	level := argString(args, "audit_level", "quick")
	limit, ok := auditLimits[level]
	if !ok {
		limit = auditLimits["quick"]
	}
	abs := ts.resolvePath(target)
	info, err := os.Stat(abs)
	if err != nil {
		return invalidArgs("path not found: %s", target)
	}
	files := []string{abs}
	if info.IsDir() {
		if files, err = auditFiles(abs, limit); err != nil {
			return invalidArgs("cannot scan %s: %v", target, err)
		}
	}
	if len(files) == 0 {
		return tools.ToolCallResult{Content: fmt.Sprintf("Security audit completed\n\nTarget: %s\nAudit Level: %s\n\nNo source files found.", target, level)}
	}

	results := make([]tools.ToolCallResult, len(files))
	g := new(errgroup.Group)
	g.SetLimit(max(1, ts.cfg.MaxConcurrent))
	for i, file := range files {
		g.Go(func() error {
			if err := ts.fanout.Acquire(ctx, 1); err != nil {
				results[i] = tools.Classify(tools.ExecutionOutcome{Kind: tools.KindCanceled, Program: "security_audit", Detail: err.Error()})
				return nil
			}
			defer ts.fanout.Release(1)
			results[i] = ts.auditFile(ctx, file)
			return nil
		})
	}
	// Per-file failures are reported in results, never through the group.
	_ = g.Wait()

	var sections []string
	failures := 0
	for i, res := range results {
		rel := displayPath(ts.workDir, files[i])
		if res.IsError {
			failures++
			sections = append(sections, fmt.Sprintf("Failed to audit %s: %s", rel, res.Content))
			continue
		}
		sections = append(sections, fmt.Sprintf("File: %s\n%s\n%s", rel, res.Content, strings.Repeat("=", 80)))
	}
	out := tools.ToolCallResult{Content: fmt.Sprintf("Security audit completed\n\nTarget: %s\nAudited Files: %d\nAudit Level: %s\n\n%s",
		target, len(files)-failures, level, strings.Join(sections, "\n\n"))}
	if failures == len(files) {
		// Nothing was audited; surface the first cause.
		out.IsError = true
		out.Kind = results[0].Kind
		out.Content = "security audit failed: " + out.Content
	}
	return out
}

func (ts *Toolset) auditFile(ctx context.Context, file string) tools.ToolCallResult {
	code, err := readSource(file)
	if err != nil {
		return tools.ToolCallResult{IsError: true, Kind: tools.KindInvalidArguments, Content: fmt.Sprintf("cannot read: %v", err)}
	}
	prompt, err := renderPrompt("security_audit", sourceData{Path: displayPath(ts.workDir, file), Code: code})
	if err != nil {
		return tools.ToolCallResult{IsError: true, Kind: tools.KindInvalidArguments, Content: err.Error()}
	}
	return ts.runPrompt(ctx, "security_audit", config.ProgramReview, prompt, nil, auditTimeoutPerFile)
}

// auditFiles walks root in lexical order and returns up to limit source files.
func auditFiles(root string, limit int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := auditExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
			if len(files) >= limit {
				return fs.SkipAll
			}
		}
		return nil
	})
	return files, err
}

// displayPath shows p relative to base when it lies inside it.
func displayPath(base, p string) string {
	if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}
