package toolset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/toolgate/internal/config"
	"github.com/hyperifyio/toolgate/internal/tools"
)

// fakeExec records every spec and answers with reply.
type fakeExec struct {
	mu    sync.Mutex
	specs []tools.ExecutionSpec
	reply func(spec tools.ExecutionSpec) tools.ExecutionOutcome
}

func (f *fakeExec) Run(_ context.Context, spec tools.ExecutionSpec) tools.ExecutionOutcome {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.reply == nil {
		return ok("fine")
	}
	return f.reply(spec)
}

func (f *fakeExec) calls() []tools.ExecutionSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tools.ExecutionSpec(nil), f.specs...)
}

func ok(stdout string) tools.ExecutionOutcome {
	zero := 0
	return tools.ExecutionOutcome{Kind: tools.KindNone, ExitCode: &zero, Stdout: stdout, Path: "/bin/fake"}
}

func exitWith(code int, stdout, stderr string) tools.ExecutionOutcome {
	return tools.ExecutionOutcome{Kind: tools.KindNonZeroExit, ExitCode: &code, Stdout: stdout, Stderr: stderr, Path: "/bin/fake"}
}

func newToolset(t *testing.T, exec tools.Executor, mutate func(*config.Config)) (*Toolset, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.WorkDir = dir
	cfg.ExtraPath = nil
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	ts, err := New(cfg, map[string]string{"GEMINI_API_KEY": "g-key", "UNRELATED": "x"}, exec, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return ts, ts.WorkDir()
}

func write(t *testing.T, dir, rel, data string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestRegister_BuiltinsInOrder(t *testing.T) {
	ts, _ := newToolset(t, &fakeExec{}, nil)
	reg := tools.NewRegistry()
	if err := ts.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	var names []string
	for _, d := range reg.Descriptors() {
		names = append(names, d.Name)
	}
	want := "review_code,generate_tests,security_audit,performance_analysis,code_quality_report,ask_gemini,generate_code"
	if strings.Join(names, ",") != want {
		t.Fatalf("order: %v", names)
	}
}

func TestNew_RejectsMissingWorkDir(t *testing.T) {
	cfg := config.Default()
	cfg.WorkDir = filepath.Join(t.TempDir(), "missing")
	if _, err := New(cfg, nil, &fakeExec{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReviewCode_BuildsPromptAndSpec(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return ok("  looks fine\n") }}
	ts, dir := newToolset(t, fx, nil)
	write(t, dir, "app.py", "print('hi')\n")

	res := ts.reviewCode(context.Background(), map[string]any{"file_path": "app.py", "review_type": "security"})
	if res.IsError {
		t.Fatalf("unexpected error: %+v", res)
	}
	if !strings.Contains(res.Content, "Review Type: security") || !strings.HasSuffix(res.Content, "looks fine") {
		t.Fatalf("content: %q", res.Content)
	}
	calls := fx.calls()
	if len(calls) != 1 {
		t.Fatalf("calls: %d", len(calls))
	}
	spec := calls[0]
	if spec.SearchName != "gemini" || spec.Argv[0] != "--prompt" || len(spec.Argv) != 2 {
		t.Fatalf("argv: %q", spec.Argv)
	}
	if !strings.Contains(spec.Argv[1], "security review") || !strings.Contains(spec.Argv[1], "print('hi')") {
		t.Fatalf("prompt: %q", spec.Argv[1])
	}
	if spec.Timeout != 90*time.Second || spec.WorkingDirectory != dir || spec.Tool != "review_code" {
		t.Fatalf("spec: %+v", spec)
	}
	if spec.ExtraEnv["GEMINI_API_KEY"] != "g-key" {
		t.Fatalf("secret not passed: %v", spec.ExtraEnv)
	}
	if _, leaked := spec.ExtraEnv["UNRELATED"]; leaked {
		t.Fatalf("unrequested secret passed")
	}
}

func TestReviewCode_UnknownTypeFallsBackToGeneral(t *testing.T) {
	fx := &fakeExec{}
	ts, dir := newToolset(t, fx, nil)
	write(t, dir, "a.go", "package a\n")
	ts.reviewCode(context.Background(), map[string]any{"file_path": "a.go", "review_type": "vibes"})
	if !strings.Contains(fx.calls()[0].Argv[1], "complete code review") {
		t.Fatalf("expected general prompt")
	}
}

func TestReviewCode_MissingFileDoesNotRun(t *testing.T) {
	fx := &fakeExec{}
	ts, _ := newToolset(t, fx, nil)
	res := ts.reviewCode(context.Background(), map[string]any{"file_path": "nope.go"})
	if !res.IsError || res.Kind != tools.KindInvalidArguments {
		t.Fatalf("unexpected: %+v", res)
	}
	if len(fx.calls()) != 0 {
		t.Fatalf("executor must not run")
	}
}

func TestReviewCode_FailureKeepsDiagnostics(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return exitWith(2, "", "quota exceeded") }}
	ts, dir := newToolset(t, fx, nil)
	write(t, dir, "a.go", "package a\n")
	res := ts.reviewCode(context.Background(), map[string]any{"file_path": "a.go"})
	if !res.IsError || res.Kind != tools.KindNonZeroExit {
		t.Fatalf("unexpected: %+v", res)
	}
	if !strings.HasPrefix(res.Content, "code review failed: ") || !strings.Contains(res.Content, "quota exceeded") {
		t.Fatalf("content: %q", res.Content)
	}
}

func TestToolTimeoutOverride(t *testing.T) {
	fx := &fakeExec{}
	ts, dir := newToolset(t, fx, func(c *config.Config) {
		c.Timeouts = map[string]config.Duration{"performance_analysis": config.Duration(5 * time.Second)}
	})
	write(t, dir, "a.rs", "fn main() {}\n")
	ts.performanceAnalysis(context.Background(), map[string]any{"file_path": "a.rs", "language": "rust"})
	spec := fx.calls()[0]
	if spec.Timeout != 5*time.Second {
		t.Fatalf("timeout: %v", spec.Timeout)
	}
	if !strings.Contains(spec.Argv[1], "Analyze this rust code") {
		t.Fatalf("prompt: %q", spec.Argv[1])
	}
}

func TestGenerateTests_SavesFile(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return ok("test('x', () => {})") }}
	ts, dir := newToolset(t, fx, nil)
	write(t, dir, "src/math.js", "export const add = (a, b) => a + b\n")
	res := ts.generateTests(context.Background(), map[string]any{"source_file": "src/math.js"})
	if res.IsError {
		t.Fatalf("unexpected: %+v", res)
	}
	saved := filepath.Join(dir, "tests", "math.test.js")
	b, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("read saved tests: %v", err)
	}
	if string(b) != "test('x', () => {})\n" {
		t.Fatalf("saved: %q", b)
	}
	if !strings.Contains(res.Content, "Test File: "+saved) || !strings.Contains(res.Content, "Framework: jest") {
		t.Fatalf("content: %q", res.Content)
	}
	if fx.calls()[0].Timeout != 120*time.Second {
		t.Fatalf("timeout: %v", fx.calls()[0].Timeout)
	}
}

func TestTestFileName(t *testing.T) {
	cases := map[string]string{
		"src/app.ts":     "app.test.ts",
		"Widget.tsx":     "Widget.test.tsx",
		"pkg/utils.py":   "test_utils.py",
		"Main.java":      "MainTest.java",
		"server.go":      "server_test.go",
		"Makefile":       "Makefile_test",
		"lib/module.rb":  "module_test.rb",
		"deep/x/y.jsx":   "y.test.jsx",
		"component.html": "component_test.html",
	}
	for in, want := range cases {
		if got := testFileName(in); got != want {
			t.Fatalf("testFileName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestSecurityAudit_WalksLimitsAndSkips(t *testing.T) {
	fx := &fakeExec{}
	ts, dir := newToolset(t, fx, nil)
	for i := 0; i < 12; i++ {
		write(t, dir, filepath.Join("proj", "src", string(rune('a'+i))+".go"), "package src\n")
	}
	write(t, dir, "proj/README.txt", "not code")
	write(t, dir, "proj/node_modules/dep/index.js", "module.exports = 1")

	res := ts.securityAudit(context.Background(), map[string]any{"target_path": "proj"})
	if res.IsError {
		t.Fatalf("unexpected: %+v", res)
	}
	calls := fx.calls()
	if len(calls) != 10 {
		t.Fatalf("quick audit must cover 10 files, got %d", len(calls))
	}
	for _, c := range calls {
		if strings.Contains(c.Argv[1], "node_modules") || strings.Contains(c.Argv[1], "README") {
			t.Fatalf("skipped file audited: %q", c.Argv[1][:200])
		}
		if c.Timeout != 60*time.Second {
			t.Fatalf("per-file timeout: %v", c.Timeout)
		}
	}
	if !strings.Contains(res.Content, "Audited Files: 10") || !strings.Contains(res.Content, "File: "+filepath.Join("proj", "src", "a.go")) {
		t.Fatalf("content: %q", res.Content)
	}

	fx2 := &fakeExec{}
	ts.exec = fx2
	ts.securityAudit(context.Background(), map[string]any{"target_path": "proj", "audit_level": "deep"})
	if len(fx2.calls()) != 12 {
		t.Fatalf("deep audit: %d", len(fx2.calls()))
	}
}

func TestSecurityAudit_FindingsPolicy(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return exitWith(1, "HIGH: sql injection", "") }}
	ts, dir := newToolset(t, fx, func(c *config.Config) {
		c.Findings = map[string][]int{"security_audit": {1}}
	})
	write(t, dir, "db.php", "<?php echo $_GET['q'];")
	res := ts.securityAudit(context.Background(), map[string]any{"target_path": "db.php"})
	if res.IsError || !strings.Contains(res.Content, "HIGH: sql injection") {
		t.Fatalf("findings must be reported as success: %+v", res)
	}

	ts.cfg.Findings = nil
	res = ts.securityAudit(context.Background(), map[string]any{"target_path": "db.php"})
	if !res.IsError || res.Kind != tools.KindNonZeroExit {
		t.Fatalf("without a policy exit 1 is a failure: %+v", res)
	}
}

func TestSecurityAudit_PartialFailureIsNotAnError(t *testing.T) {
	fx := &fakeExec{reply: func(spec tools.ExecutionSpec) tools.ExecutionOutcome {
		if strings.Contains(spec.Argv[1], "b.py") {
			return tools.ExecutionOutcome{Kind: tools.KindTimeout, Timeout: time.Minute, Program: "gemini"}
		}
		return ok("clean")
	}}
	ts, dir := newToolset(t, fx, nil)
	write(t, dir, "p/a.py", "x = 1\n")
	write(t, dir, "p/b.py", "y = 2\n")
	res := ts.securityAudit(context.Background(), map[string]any{"target_path": "p"})
	if res.IsError {
		t.Fatalf("unexpected: %+v", res)
	}
	if !strings.Contains(res.Content, "Audited Files: 1") || !strings.Contains(res.Content, "Failed to audit "+filepath.Join("p", "b.py")) {
		t.Fatalf("content: %q", res.Content)
	}
}

func TestSecurityAudit_ConcurrentAuditsShareChildLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return ok("clean")
	}}
	ts, dir := newToolset(t, fx, func(c *config.Config) { c.MaxConcurrent = 2 })
	for i := 0; i < 5; i++ {
		write(t, dir, filepath.Join("svc", string(rune('a'+i))+".py"), "x = 1\n")
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := ts.securityAudit(context.Background(), map[string]any{"target_path": "svc"}); res.IsError {
				t.Errorf("audit failed: %+v", res)
			}
		}()
	}
	wg.Wait()
	if len(fx.calls()) != 15 {
		t.Fatalf("calls: %d", len(fx.calls()))
	}
	if got := peak.Load(); got > 2 {
		t.Fatalf("%d children ran at once across audits, limit is 2", got)
	}
}

func TestSecurityAudit_CanceledWhileWaitingForChildSlot(t *testing.T) {
	ts, dir := newToolset(t, &fakeExec{}, func(c *config.Config) { c.MaxConcurrent = 1 })
	write(t, dir, "one.py", "x = 1\n")
	if !ts.fanout.TryAcquire(1) {
		t.Fatalf("slot unavailable")
	}
	defer ts.fanout.Release(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := ts.securityAudit(ctx, map[string]any{"target_path": "one.py"})
	if !res.IsError || res.Kind != tools.KindCanceled {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestSecurityAudit_MissingTarget(t *testing.T) {
	ts, _ := newToolset(t, &fakeExec{}, nil)
	res := ts.securityAudit(context.Background(), map[string]any{"target_path": "nowhere"})
	if !res.IsError || res.Kind != tools.KindInvalidArguments {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestCodeQualityReport_PromptAndPDF(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return ok("Grade: B") }}
	ts, dir := newToolset(t, fx, nil)
	write(t, dir, "proj/go.mod", "module example.com/proj\n")
	write(t, dir, "proj/README.md", "# Proj\n")
	write(t, dir, "proj/main.go", "package main\n")
	write(t, dir, "proj/.git/HEAD", "ref: refs/heads/main\n")

	res := ts.codeQualityReport(context.Background(), map[string]any{
		"project_path": "proj", "include_metrics": false, "export_pdf": "out/report.pdf",
	})
	if res.IsError {
		t.Fatalf("unexpected: %+v", res)
	}
	prompt := fx.calls()[0].Argv[1]
	for _, want := range []string{"proj/\n  README.md\n  go.mod\n  main.go", "go.mod:\nmodule example.com/proj", "README.md:\n# Proj", "Include Metrics: false"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "HEAD") || strings.Contains(prompt, "2. Metrics") {
		t.Fatalf("prompt has skipped content:\n%s", prompt)
	}
	pdfPath := filepath.Join(dir, "out", "report.pdf")
	b, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("pdf not written: %v", err)
	}
	if !strings.HasPrefix(string(b), "%PDF-") {
		t.Fatalf("not a pdf")
	}
	if !strings.HasSuffix(res.Content, "PDF: "+pdfPath) {
		t.Fatalf("content: %q", res.Content)
	}
}

func TestProjectTree_Limits(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 15; i++ {
		write(t, dir, filepath.Join("d", "f"+string(rune('a'+i))+".txt"), "")
	}
	tree, files, err := projectTree(dir)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(files) != 15 {
		t.Fatalf("files: %d", len(files))
	}
	if n := strings.Count(tree, ".txt"); n != treeFilesPerDir {
		t.Fatalf("per-directory limit: %d", n)
	}
}

func TestAsk_AllFilesFlag(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return ok("42") }}
	ts, _ := newToolset(t, fx, nil)
	res := ts.ask(context.Background(), map[string]any{"prompt": "meaning?", "include_all_files": true})
	if res.IsError || res.Content != "Response:\n\n42" {
		t.Fatalf("unexpected: %+v", res)
	}
	argv := fx.calls()[0].Argv
	if strings.Join(argv, " ") != "--prompt meaning? --all_files" {
		t.Fatalf("argv: %q", argv)
	}
}

func TestGenerateCode_UsesCodegenProgram(t *testing.T) {
	fx := &fakeExec{reply: func(tools.ExecutionSpec) tools.ExecutionOutcome { return ok("done") }}
	ts, dir := newToolset(t, fx, func(c *config.Config) {
		p := c.Programs[config.ProgramCodegen]
		p.Launcher = []string{"wsl.exe", "-e"}
		c.Programs[config.ProgramCodegen] = p
	})
	if err := os.Mkdir(filepath.Join(dir, "svc"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	res := ts.generateCode(context.Background(), map[string]any{"prompt": "add a health check", "working_directory": "svc"})
	if res.IsError || res.Content != "done" {
		t.Fatalf("unexpected: %+v", res)
	}
	spec := fx.calls()[0]
	if spec.SearchName != "claude" || strings.Join(spec.Argv, "|") != "-p|add a health check" {
		t.Fatalf("spec: %+v", spec)
	}
	if spec.WorkingDirectory != filepath.Join(dir, "svc") || spec.Timeout != 300*time.Second {
		t.Fatalf("spec: %+v", spec)
	}
	if len(spec.Launcher) != 2 || spec.Launcher[0] != "wsl.exe" {
		t.Fatalf("launcher: %v", spec.Launcher)
	}

	res = ts.generateCode(context.Background(), map[string]any{"prompt": "x", "working_directory": "missing"})
	if !res.IsError || res.Kind != tools.KindInvalidArguments {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestProgramSpec_PrependsExtraPath(t *testing.T) {
	ts, _ := newToolset(t, &fakeExec{}, func(c *config.Config) {
		c.ExtraPath = []string{"/opt/a", "/opt/b"}
	})
	spec, err := ts.programSpec("x", config.ProgramReview, nil, time.Second)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	sep := string(os.PathListSeparator)
	if spec.ExtraEnv["PATH"] != "/opt/a"+sep+"/opt/b" {
		t.Fatalf("PATH: %q", spec.ExtraEnv["PATH"])
	}
	if _, err := ts.programSpec("x", "nope", nil, time.Second); err == nil {
		t.Fatalf("expected error for unknown program")
	}
}

func TestProbe_ReportsEachProgram(t *testing.T) {
	fx := &fakeExec{reply: func(spec tools.ExecutionSpec) tools.ExecutionOutcome {
		if spec.SearchName == "claude" {
			return tools.ExecutionOutcome{Kind: tools.KindNotFound, Program: "claude", Tried: []string{"/x/claude"}}
		}
		return ok("0.9.1\nbuild abc")
	}}
	ts, _ := newToolset(t, fx, nil)
	got := ts.Probe(context.Background())
	if len(got) != 2 {
		t.Fatalf("results: %+v", got)
	}
	// Sorted by program name: codegen, review.
	if got[0].Program != config.ProgramCodegen || got[0].OK || !strings.Contains(got[0].Detail, "/x/claude") {
		t.Fatalf("codegen: %+v", got[0])
	}
	if got[1].Program != config.ProgramReview || !got[1].OK || got[1].Version != "0.9.1" {
		t.Fatalf("review: %+v", got[1])
	}
	for _, c := range fx.calls() {
		if c.Timeout != probeTimeout || c.Argv[0] != "--version" {
			t.Fatalf("probe spec: %+v", c)
		}
	}
}
