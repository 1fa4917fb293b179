package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/hyperifyio/toolgate/internal/config"
)

// cliOptions holds the command-line flags. Only flags present on the command
// line override the loaded configuration.
type cliOptions struct {
	configPath    string
	logLevel      string
	logFormat     string
	workDir       string
	manifest      string
	secretsFile   string
	maxConcurrent int
	check         bool
	listTools     bool

	set map[string]bool
}

func parseFlags(args []string) (cliOptions, error) {
	opts := cliOptions{set: make(map[string]bool)}

	fs := flag.NewFlagSet("toolgate", flag.ContinueOnError)
	// Silence automatic usage/errors; we handle messaging ourselves.
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configPath, "config", "", "Path to the YAML config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log format: text|json")
	fs.StringVar(&opts.workDir, "workdir", "", "Working directory for tool processes")
	fs.StringVar(&opts.manifest, "manifest", "", "Path to a tools.json manifest of extra tools")
	fs.StringVar(&opts.secretsFile, "secrets", "", "Path to the KEY=VALUE secrets file")
	fs.IntVar(&opts.maxConcurrent, "max-concurrent", 0, "Maximum concurrent tool executions")
	fs.BoolVar(&opts.check, "check", false, "Probe configured programs and exit")
	fs.BoolVar(&opts.listTools, "list-tools", false, "Print registered tools and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// apply overlays the flags given on the command line onto cfg.
func (o cliOptions) apply(cfg *config.Config) {
	if o.set["log-level"] {
		cfg.LogLevel = o.logLevel
	}
	if o.set["log-format"] {
		cfg.LogFormat = o.logFormat
	}
	if o.set["workdir"] {
		cfg.WorkDir = o.workDir
	}
	if o.set["manifest"] {
		cfg.Manifest = o.manifest
	}
	if o.set["secrets"] {
		cfg.SecretsFile = o.secretsFile
	}
	if o.set["max-concurrent"] {
		cfg.MaxConcurrent = o.maxConcurrent
	}
}
