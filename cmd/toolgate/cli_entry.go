package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/server"
	"github.com/hyperifyio/toolgate/internal/tools"
	"github.com/hyperifyio/toolgate/internal/toolset"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// cliMain is a testable entrypoint. It accepts argv (excluding program name),
// the protocol streams and the log stream, and returns the process exit code.
func cliMain(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Handle help and version prior to any parsing or side effects
	if helpRequested(args) {
		printUsage(stdout)
		return exitOK
	}
	if versionRequested(args) {
		printVersion(stdout)
		return exitOK
	}

	opts, err := parseFlags(args)
	if err != nil {
		safeFprintln(stderr, "error: "+err.Error())
		printUsage(stderr)
		return exitUsage
	}

	a, err := setup(opts, stderr, os.Getenv, os.Environ())
	if err != nil {
		safeFprintln(stderr, "error: "+err.Error())
		return exitUsage
	}

	switch {
	case opts.listTools:
		return printTools(a.dispatcher.Tools(), stdout)
	case opts.check:
		return printCheck(a.toolset.Probe(ctx), stdout)
	}

	// The probe warms the resolver cache; serving does not wait for it.
	probeCtx, cancelProbe := context.WithCancel(ctx)
	probed := make(chan struct{})
	go func() {
		defer close(probed)
		a.toolset.Probe(probeCtx)
	}()
	defer func() {
		cancelProbe()
		<-probed
	}()

	a.logger.Info("serving",
		"tools", len(a.dispatcher.Tools()),
		"workdir", a.toolset.WorkDir(),
		"config", a.cfg.Source,
		"maxConcurrent", a.cfg.MaxConcurrent)
	ver, _, _ := buildInfo()
	srv := server.New("toolgate", ver, a.dispatcher, a.logger)
	if err := srv.Serve(ctx, stdin, stdout); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("serve failed", "error", err)
		return exitFailure
	}
	a.logger.Info("shutting down")
	return exitOK
}

type app struct {
	cfg        config.Config
	logger     *slog.Logger
	toolset    *toolset.Toolset
	dispatcher *tools.Dispatcher
}

// setup resolves configuration and builds the runner, the toolset and the
// dispatcher. Any error here is a startup error.
func setup(opts cliOptions, stderr io.Writer, getenv func(string) string, environ []string) (*app, error) {
	cfg, err := config.Load(opts.configPath, getenv)
	if err != nil {
		return nil, err
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}

	secrets, err := config.ReadSecrets(cfg.SecretsFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Info("secrets file not found, continuing without it", "path", cfg.SecretsFile)
		secrets = map[string]string{}
	}

	searchEnv := environ
	if add := cfg.PathAddition(); add != "" {
		searchEnv = tools.ComposeEnv(environ, map[string]string{"PATH": add})
	}
	searchPath, _ := tools.LookupEnv(searchEnv, "PATH")
	runner := tools.NewRunner(tools.NewResolver(searchPath), environ)
	runner.DefaultTimeout = cfg.DefaultTimeout.Std()
	runner.MaxOutputBytes = cfg.MaxOutputBytes
	runner.KillGrace = cfg.KillGrace.Std()
	runner.Logger = logger

	ts, err := toolset.New(cfg, secrets, runner, logger)
	if err != nil {
		return nil, err
	}
	if dir := cfg.AuditDir; dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(ts.WorkDir(), dir)
		}
		runner.Audit = tools.NewAuditor(dir, tools.NewRedactor(cfg.Redact, config.SecretValues(secrets)))
	}

	reg := tools.NewRegistry()
	if err := ts.Register(reg); err != nil {
		return nil, err
	}
	if cfg.Manifest != "" {
		manifest, err := tools.LoadManifest(cfg.Manifest)
		if err != nil {
			return nil, err
		}
		if err := ts.RegisterManifest(reg, manifest); err != nil {
			return nil, err
		}
	}
	return &app{
		cfg:        cfg,
		logger:     logger,
		toolset:    ts,
		dispatcher: tools.NewDispatcher(reg, cfg.MaxConcurrent, logger),
	}, nil
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// printTools lists tools in registration order, one per line.
func printTools(descs []tools.ToolDescriptor, stdout io.Writer) int {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, d := range descs {
		safeFprintf(tw, "%s\t%s\n", d.Name, d.Description)
	}
	if err := tw.Flush(); err != nil {
		return exitFailure
	}
	return exitOK
}

// printCheck reports probe results and fails when any program is unusable.
func printCheck(results []toolset.ProbeResult, stdout io.Writer) int {
	code := exitOK
	for _, r := range results {
		if r.OK {
			safeFprintf(stdout, "ok    %s: %s (%s)\n", r.Program, r.Version, r.Path)
			continue
		}
		code = exitFailure
		safeFprintf(stdout, "FAIL  %s: %s\n", r.Program, r.Detail)
	}
	return code
}
