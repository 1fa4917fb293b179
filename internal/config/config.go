// Package config resolves gateway settings. Precedence is
// flag > env > file > default; flags are applied by the caller after Load.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/toolgate/internal/tools"
)

// DefaultFile is read from the working directory when no config path is given.
const DefaultFile = "toolgate.yaml"

// Program names used by the built-in tools.
const (
	ProgramReview  = "review"
	ProgramCodegen = "codegen"
)

// Program describes how to find and drive one external CLI.
type Program struct {
	SearchName string   `yaml:"searchName"`
	Candidates []string `yaml:"candidates"`
	// PromptFlag precedes the prompt text in argv ("--prompt" for gemini, "-p" for claude).
	PromptFlag string `yaml:"promptFlag"`
	// Launcher runs the program through another executable, e.g. ["wsl.exe", "-e"].
	Launcher []string `yaml:"launcher"`
	// SecretEnv names secrets passed to the child; values come from the secrets file.
	SecretEnv []string          `yaml:"secretEnv"`
	Env       map[string]string `yaml:"env"`
}

// Config holds every resolved setting.
type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // text|json
	// WorkDir is where tools run and generated files are saved; empty means
	// the gateway's own working directory.
	WorkDir        string              `yaml:"workDir"`
	SecretsFile    string              `yaml:"secretsFile"`
	Manifest       string              `yaml:"manifest"`
	MaxConcurrent  int                 `yaml:"maxConcurrent"`
	MaxOutputBytes int                 `yaml:"maxOutputBytes"`
	DefaultTimeout Duration            `yaml:"defaultTimeout"`
	KillGrace      Duration            `yaml:"killGrace"`
	ExtraPath      []string            `yaml:"extraPath"`
	AuditDir       string              `yaml:"auditDir"`
	Redact         string              `yaml:"redact"`
	Timeouts       map[string]Duration `yaml:"timeouts"` // per tool
	Programs       map[string]Program  `yaml:"programs"`

	// Findings lists, per tool, the non-zero exit codes that mean "issues
	// found" rather than failure.
	Findings map[string][]int `yaml:"findingsExitCodes"`

	// Source is the config file that was read, if any.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:       "info",
		LogFormat:      "text",
		SecretsFile:    ".env",
		MaxConcurrent:  tools.DefaultMaxConcurrent,
		MaxOutputBytes: 4 << 20,
		DefaultTimeout: Duration(tools.DefaultTimeout),
		KillGrace:      Duration(tools.DefaultKillGrace),
		ExtraPath:      []string{"~/.npm-global/bin", "/usr/local/bin", "/usr/bin", "/bin", "~/.local/bin"},
		AuditDir:       filepath.Join(".toolgate", "audit"),
		Programs: map[string]Program{
			ProgramReview: {
				SearchName: "gemini",
				Candidates: []string{"~/.npm-global/bin/gemini", "/usr/local/bin/gemini", "/usr/bin/gemini"},
				PromptFlag: "--prompt",
				SecretEnv:  []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
			},
			ProgramCodegen: {
				SearchName: "claude",
				Candidates: []string{"~/.claude/local/claude", "~/.npm-global/bin/claude", "/usr/local/bin/claude"},
				PromptFlag: "-p",
				SecretEnv:  []string{"ANTHROPIC_API_KEY"},
			},
		},
	}
}

// Load builds a configuration from defaults, the config file and the
// environment. path is the -config flag value; when empty TOOLGATE_CONFIG is
// consulted and then DefaultFile, which may be absent.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	explicit := path != ""
	if !explicit {
		if p := strings.TrimSpace(getenv("TOOLGATE_CONFIG")); p != "" {
			path, explicit = p, true
		} else {
			path = DefaultFile
		}
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		cfg.Source = path
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.overlay(file)
	return nil
}

// overlay copies every non-zero field of o onto c. Programs are merged field
// by field so a file may override only the candidates of a default program.
func (c *Config) overlay(o Config) {
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.LogFormat, o.LogFormat)
	setString(&c.WorkDir, o.WorkDir)
	setString(&c.SecretsFile, o.SecretsFile)
	setString(&c.Manifest, o.Manifest)
	setString(&c.AuditDir, o.AuditDir)
	setString(&c.Redact, o.Redact)
	if o.MaxConcurrent != 0 {
		c.MaxConcurrent = o.MaxConcurrent
	}
	if o.MaxOutputBytes != 0 {
		c.MaxOutputBytes = o.MaxOutputBytes
	}
	if o.DefaultTimeout != 0 {
		c.DefaultTimeout = o.DefaultTimeout
	}
	if o.KillGrace != 0 {
		c.KillGrace = o.KillGrace
	}
	if o.ExtraPath != nil {
		c.ExtraPath = o.ExtraPath
	}
	for name, d := range o.Timeouts {
		if c.Timeouts == nil {
			c.Timeouts = make(map[string]Duration)
		}
		c.Timeouts[name] = d
	}
	for name, codes := range o.Findings {
		if c.Findings == nil {
			c.Findings = make(map[string][]int)
		}
		c.Findings[name] = codes
	}
	for name, p := range o.Programs {
		if c.Programs == nil {
			c.Programs = make(map[string]Program)
		}
		base := c.Programs[name]
		setString(&base.SearchName, p.SearchName)
		setString(&base.PromptFlag, p.PromptFlag)
		if p.Candidates != nil {
			base.Candidates = p.Candidates
		}
		if p.Launcher != nil {
			base.Launcher = p.Launcher
		}
		if p.SecretEnv != nil {
			base.SecretEnv = p.SecretEnv
		}
		if p.Env != nil {
			base.Env = p.Env
		}
		c.Programs[name] = base
	}
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("TOOLGATE_LOG_LEVEL", &c.LogLevel)
	str("TOOLGATE_LOG_FORMAT", &c.LogFormat)
	str("TOOLGATE_WORKDIR", &c.WorkDir)
	str("TOOLGATE_SECRETS_FILE", &c.SecretsFile)
	str("TOOLGATE_MANIFEST", &c.Manifest)
	str("TOOLGATE_AUDIT_DIR", &c.AuditDir)
	str("TOOLGATE_REDACT", &c.Redact)
	if v := strings.TrimSpace(getenv("TOOLGATE_MAX_CONCURRENT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TOOLGATE_MAX_CONCURRENT: %w", err)
		}
		c.MaxConcurrent = n
	}
	if v := strings.TrimSpace(getenv("TOOLGATE_DEFAULT_TIMEOUT")); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOOLGATE_DEFAULT_TIMEOUT: %w", err)
		}
		c.DefaultTimeout = Duration(d)
	}
	return nil
}

// Validate checks the final configuration and normalizes secret names.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("logFormat: must be text or json (got %q)", c.LogFormat)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("maxConcurrent: must be positive (got %d)", c.MaxConcurrent)
	}
	if c.MaxOutputBytes <= 0 {
		return fmt.Errorf("maxOutputBytes: must be positive (got %d)", c.MaxOutputBytes)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("defaultTimeout: must be positive")
	}
	for _, name := range []string{ProgramReview, ProgramCodegen} {
		if _, ok := c.Programs[name]; !ok {
			return fmt.Errorf("programs.%s: required", name)
		}
	}
	for _, name := range c.ProgramNames() {
		p := c.Programs[name]
		if strings.TrimSpace(p.SearchName) == "" {
			return fmt.Errorf("programs.%s.searchName: required", name)
		}
		if len(p.Launcher) > 0 && strings.TrimSpace(p.Launcher[0]) == "" {
			return fmt.Errorf("programs.%s.launcher: first element must name an executable", name)
		}
		if len(p.SecretEnv) > 0 {
			norm, err := tools.NormalizeEnvNames(p.SecretEnv)
			if err != nil {
				return fmt.Errorf("programs.%s: %w", name, err)
			}
			p.SecretEnv = norm
		}
		if _, err := tools.NormalizeEnvNames(sortedKeys(p.Env)); err != nil {
			return fmt.Errorf("programs.%s.env: %w", name, err)
		}
		c.Programs[name] = p
	}
	return nil
}

// SlogLevel parses LogLevel (debug, info, warn, error; case-insensitive).
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("logLevel: %w", err)
	}
	return lvl, nil
}

// ToolTimeout returns the configured override for tool, or def.
func (c Config) ToolTimeout(tool string, def time.Duration) time.Duration {
	if d, ok := c.Timeouts[tool]; ok && d > 0 {
		return d.Std()
	}
	return def
}

// ExitPolicy returns the findings policy for tool.
func (c Config) ExitPolicy(tool string) tools.ExitPolicy {
	return tools.ExitPolicy{FindingsExitCodes: c.Findings[tool]}
}

// PathAddition joins ExtraPath, with "~" expanded, into an OS path list.
func (c Config) PathAddition() string {
	parts := make([]string, 0, len(c.ExtraPath))
	for _, p := range c.ExtraPath {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, tools.ExpandHome(p))
		}
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// ProgramNames returns the configured program names in sorted order.
func (c Config) ProgramNames() []string {
	names := make([]string, 0, len(c.Programs))
	for n := range c.Programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
