// Package toolset maps validated tool arguments onto external program
// invocations for the built-in tools and for manifest-declared tools.
package toolset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

// Toolset builds tool handlers around one Executor.
type Toolset struct {
	cfg     config.Config
	secrets map[string]string
	exec    tools.Executor
	logger  *slog.Logger
	workDir string

	// fanout bounds the per-file children of every security_audit call
	// together, so concurrent audits never exceed MaxConcurrent children.
	fanout *semaphore.Weighted
}

// New returns a Toolset. Relative tool paths and generated files are anchored
// at cfg.WorkDir, or at the process working directory when that is empty.
func New(cfg config.Config, secrets map[string]string, exec tools.Executor, logger *slog.Logger) (*Toolset, error) {
	if logger == nil {
		logger = slog.Default()
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		workDir = wd
	}
	abs, err := filepath.Abs(tools.ExpandHome(workDir))
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory: %s is not a directory", abs)
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	return &Toolset{
		cfg:     cfg,
		secrets: secrets,
		exec:    exec,
		logger:  logger,
		workDir: abs,
		fanout:  semaphore.NewWeighted(int64(max(1, cfg.MaxConcurrent))),
	}, nil
}

// WorkDir returns the absolute directory tools run in.
func (ts *Toolset) WorkDir() string { return ts.workDir }

type builtin struct {
	desc    tools.ToolDescriptor
	handler tools.HandlerFunc
}

func (ts *Toolset) builtins() []builtin {
	return []builtin{
		{tools.ToolDescriptor{Name: "review_code", Description: "Review a source file for quality, security, performance or style issues", InputSchema: schemaReviewCode}, ts.reviewCode},
		{tools.ToolDescriptor{Name: "generate_tests", Description: "Generate test cases for a source file and save them under tests/", InputSchema: schemaGenerateTests}, ts.generateTests},
		{tools.ToolDescriptor{Name: "security_audit", Description: "Audit a file or directory tree for security issues", InputSchema: schemaSecurityAudit}, ts.securityAudit},
		{tools.ToolDescriptor{Name: "performance_analysis", Description: "Analyze a source file for performance bottlenecks", InputSchema: schemaPerformance}, ts.performanceAnalysis},
		{tools.ToolDescriptor{Name: "code_quality_report", Description: "Produce a code quality report for a project directory", InputSchema: schemaQualityReport}, ts.codeQualityReport},
		{tools.ToolDescriptor{Name: "ask_gemini", Description: "Send a free-form prompt to the review assistant", InputSchema: schemaAsk}, ts.ask},
		{tools.ToolDescriptor{Name: "generate_code", Description: "Ask the code-generation assistant to write or change code in a directory", InputSchema: schemaGenerateCode}, ts.generateCode},
	}
}

// Register adds the built-in tools to reg in their fixed order.
func (ts *Toolset) Register(reg *tools.Registry) error {
	for _, b := range ts.builtins() {
		if err := reg.Register(b.desc, b.handler); err != nil {
			return err
		}
	}
	return nil
}

// programSpec builds the ExecutionSpec for running a configured program.
func (ts *Toolset) programSpec(tool, program string, argv []string, timeout time.Duration) (tools.ExecutionSpec, error) {
	p, ok := ts.cfg.Programs[program]
	if !ok {
		return tools.ExecutionSpec{}, fmt.Errorf("program %q is not configured", program)
	}
	env := p.ChildEnv(ts.secrets)
	if add := ts.cfg.PathAddition(); add != "" {
		if cur, ok := env["PATH"]; ok && cur != "" {
			add = cur + string(os.PathListSeparator) + add
		}
		env["PATH"] = add
	}
	return tools.ExecutionSpec{
		Tool:             tool,
		CandidatePaths:   p.Candidates,
		SearchName:       p.SearchName,
		Argv:             argv,
		WorkingDirectory: ts.workDir,
		Timeout:          ts.cfg.ToolTimeout(tool, timeout),
		ExtraEnv:         env,
		Launcher:         p.Launcher,
	}, nil
}

// runPrompt sends prompt to program through its prompt flag, followed by extra.
func (ts *Toolset) runPrompt(ctx context.Context, tool, program, prompt string, extra []string, timeout time.Duration) tools.ToolCallResult {
	p := ts.cfg.Programs[program]
	argv := make([]string, 0, 2+len(extra))
	if p.PromptFlag != "" {
		argv = append(argv, p.PromptFlag)
	}
	argv = append(argv, prompt)
	argv = append(argv, extra...)
	spec, err := ts.programSpec(tool, program, argv, timeout)
	if err != nil {
		return tools.ToolCallResult{IsError: true, Kind: tools.KindLaunchFailed, Content: err.Error()}
	}
	return tools.ClassifyWithPolicy(ts.exec.Run(ctx, spec), ts.cfg.ExitPolicy(tool))
}

// resolvePath anchors a caller-supplied path at the work directory.
func (ts *Toolset) resolvePath(p string) string {
	p = tools.ExpandHome(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(ts.workDir, p)
}

func invalidArgs(format string, a ...any) tools.ToolCallResult {
	return tools.ToolCallResult{IsError: true, Kind: tools.KindInvalidArguments, Content: fmt.Sprintf(format, a...)}
}

// failed prefixes an error result with what was being attempted.
func failed(what string, res tools.ToolCallResult) tools.ToolCallResult {
	res.IsError = true
	res.Content = what + " failed: " + res.Content
	return res
}

func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
