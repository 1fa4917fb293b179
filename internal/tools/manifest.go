package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/hyperifyio/toolgate/internal/tools/jsrun"
)

// ManifestTool declares an operator-defined tool backed by an external program.
type ManifestTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"` // JSON Schema for params
	// Program is a configured program name, a bare executable name, an
	// absolute path, or a path under ./tools/bin relative to the manifest.
	Program    string            `json:"program"`
	Args       []string          `json:"args,omitempty"` // text/template per element
	TimeoutSec int               `json:"timeoutSec,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	// SecretEnv lists secrets (by variable name) injected into the child.
	// Names are normalized to upper case, trimmed, validated against
	// [A-Z_][A-Z0-9_]*, and de-duplicated while preserving order.
	SecretEnv         []string `json:"secretEnv,omitempty"`
	FindingsExitCodes []int    `json:"findingsExitCodes,omitempty"`
	// Postprocess is JavaScript run over stdout: read_input() returns it and
	// emit(s) builds the result.
	Postprocess string `json:"postprocess,omitempty"`

	// ProgramPath is set when Program is a filesystem path; it is absolute.
	ProgramPath string `json:"-"`

	argTemplates []*template.Template
	properties   []string
}

type Manifest struct {
	Tools []ManifestTool `json:"tools"`
}

// Timeout returns the declared timeout, or zero for the runner default.
func (t ManifestTool) Timeout() time.Duration {
	if t.TimeoutSec > 0 {
		return time.Duration(t.TimeoutSec) * time.Second
	}
	return 0
}

// RenderArgs expands the argument templates with the call arguments. Schema
// properties absent from the call render as empty strings.
func (t ManifestTool) RenderArgs(args map[string]any) ([]string, error) {
	data := make(map[string]any, len(args)+len(t.properties))
	for _, p := range t.properties {
		data[p] = ""
	}
	for k, v := range args {
		data[k] = v
	}
	out := make([]string, 0, len(t.argTemplates))
	for i, tpl := range t.argTemplates {
		var b strings.Builder
		if err := tpl.Execute(&b, data); err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out = append(out, b.String())
	}
	return out, nil
}

// LoadManifest reads a tools manifest and validates every entry.
// Relative program paths are validated and then resolved relative to the
// manifest's directory, so they do not depend on the process working directory.
func LoadManifest(manifestPath string) ([]ManifestTool, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	nameSeen := make(map[string]struct{})
	manifestDir := filepath.Dir(manifestPath)
	out := make([]ManifestTool, 0, len(man.Tools))
	for i, t := range man.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool[%d]: name is required", i)
		}
		if _, ok := nameSeen[t.Name]; ok {
			return nil, fmt.Errorf("tool[%d] %q: duplicate name", i, t.Name)
		}
		nameSeen[t.Name] = struct{}{}
		if strings.TrimSpace(t.Program) == "" {
			return nil, fmt.Errorf("tool[%d] %q: program is required", i, t.Name)
		}
		if t.TimeoutSec < 0 {
			return nil, fmt.Errorf("tool[%d] %q: timeoutSec must not be negative", i, t.Name)
		}
		for k := range t.Env {
			if !isValidEnvName(k) {
				return nil, fmt.Errorf("tool[%d] %q: env: invalid name %q (must match [A-Z_][A-Z0-9_]*)", i, t.Name, k)
			}
		}
		if len(t.SecretEnv) > 0 {
			norm, err := normalizeEnvAllowlist(t.SecretEnv)
			if err != nil {
				return nil, fmt.Errorf("tool[%d] %q: %v", i, t.Name, err)
			}
			t.SecretEnv = norm
		}
		programPath, err := resolveManifestProgram(manifestDir, t.Program)
		if err != nil {
			return nil, fmt.Errorf("tool[%d] %q: %w", i, t.Name, err)
		}
		t.ProgramPath = programPath
		for j, a := range t.Args {
			tpl, err := template.New(fmt.Sprintf("%s.args[%d]", t.Name, j)).Option("missingkey=zero").Parse(a)
			if err != nil {
				return nil, fmt.Errorf("tool[%d] %q: args[%d]: %w", i, t.Name, j, err)
			}
			t.argTemplates = append(t.argTemplates, tpl)
		}
		if len(t.Schema) > 0 {
			var s struct {
				Properties map[string]json.RawMessage `json:"properties"`
			}
			if err := json.Unmarshal(t.Schema, &s); err != nil {
				return nil, fmt.Errorf("tool[%d] %q: schema: %w", i, t.Name, err)
			}
			for p := range s.Properties {
				t.properties = append(t.properties, p)
			}
		}
		if strings.TrimSpace(t.Postprocess) != "" {
			if err := jsrun.Compile(t.Postprocess); err != nil {
				return nil, fmt.Errorf("tool[%d] %q: postprocess: %w", i, t.Name, err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// resolveManifestProgram returns an absolute path when program names a file,
// or "" when it is a logical name to be resolved later. For any relative
// program path, the canonical tools bin prefix is enforced and path escapes
// are rejected.
func resolveManifestProgram(manifestDir, program string) (string, error) {
	if filepath.IsAbs(program) {
		return filepath.Clean(program), nil
	}
	if !strings.ContainsAny(program, `/\`) {
		return "", nil
	}
	// Normalize separators: convert backslashes to slashes and clean.
	raw := strings.ReplaceAll(program, "\\", "/")
	norm := path.Clean(raw)
	if strings.HasPrefix(norm, "tools/") || norm == "tools" {
		norm = "./" + norm
	}
	if strings.HasPrefix(norm, "../") || norm == ".." {
		return "", fmt.Errorf("program must not start with '..' or escape tools/bin (got %q)", program)
	}
	if !strings.HasPrefix(norm, "./tools/bin/") {
		return "", fmt.Errorf("relative program must start with ./tools/bin/ (got %q -> %q)", program, norm)
	}
	resolved := filepath.Join(manifestDir, filepath.FromSlash(strings.TrimPrefix(norm, "./")))
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve program: %v", err)
	}
	return abs, nil
}

// normalizeEnvAllowlist normalizes, validates, and de-duplicates environment
// variable names. It enforces the pattern ^[A-Z_][A-Z0-9_]*$ after converting
// to upper case and trimming ASCII whitespace. Order of first occurrence is
// preserved. Returns an error describing the first invalid entry.
func normalizeEnvAllowlist(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for idx, k := range keys {
		trimmed := strings.TrimSpace(k)
		if trimmed == "" {
			return nil, fmt.Errorf("secretEnv[%d]: empty name", idx)
		}
		upper := strings.ToUpper(trimmed)
		if !isValidEnvName(upper) {
			return nil, fmt.Errorf("secretEnv[%d]: invalid name %q (must match [A-Z_][A-Z0-9_]*)", idx, k)
		}
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		out = append(out, upper)
	}
	return out, nil
}

// NormalizeEnvNames exposes normalizeEnvAllowlist for configuration loading.
func NormalizeEnvNames(keys []string) ([]string, error) {
	return normalizeEnvAllowlist(keys)
}

func isValidEnvName(s string) bool {
	if len(s) == 0 {
		return false
	}
	// First rune must be A-Z or _
	c := s[0]
	if !((c >= 'A' && c <= 'Z') || c == '_') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c = s[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}
