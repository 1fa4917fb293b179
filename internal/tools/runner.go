package tools

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/hyperifyio/toolgate/internal/sandbox"
)

// timeNow is a package-level clock to enable deterministic tests.
// In production it defaults to time.Now.
var timeNow = time.Now

const (
	// DefaultTimeout applies when a spec carries no timeout of its own.
	DefaultTimeout = 2 * time.Minute
	// DefaultKillGrace bounds how long Wait keeps draining pipes after the
	// child exits or is killed; descendants that escaped the process group
	// may keep them open.
	DefaultKillGrace = 2 * time.Second
)

// Runner executes ExecutionSpecs. It is safe for concurrent use; the only
// state shared across calls lives in the Resolver.
type Runner struct {
	Resolver *Resolver
	// BaseEnv is the inherited environment every child starts from.
	BaseEnv        []string
	DefaultTimeout time.Duration
	MaxOutputBytes int
	KillGrace      time.Duration
	Audit          *Auditor
	Logger         *slog.Logger
}

// NewRunner returns a Runner with default limits.
func NewRunner(resolver *Resolver, baseEnv []string) *Runner {
	return &Runner{
		Resolver:       resolver,
		BaseEnv:        baseEnv,
		DefaultTimeout: DefaultTimeout,
		MaxOutputBytes: sandbox.DefaultCaptureBytes,
		KillGrace:      DefaultKillGrace,
	}
}

// computeTimeout derives the deadline for a run, honoring spec.Timeout when
// provided; otherwise it falls back to the runner default.
func (r *Runner) computeTimeout(spec ExecutionSpec) time.Duration {
	if spec.Timeout > 0 {
		return spec.Timeout
	}
	if r.DefaultTimeout > 0 {
		return r.DefaultTimeout
	}
	return DefaultTimeout
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run resolves and executes spec. It never returns an error: every failure
// becomes an outcome kind. When a cached path fails to launch, the cache
// entry is dropped and the run is retried exactly once.
func (r *Runner) Run(ctx context.Context, spec ExecutionSpec) ExecutionOutcome {
	searchName, _, _ := launchTarget(spec)
	out, fromCache := r.runOnce(ctx, spec)
	if fromCache && (out.Kind == KindLaunchFailed || out.Kind == KindPermissionDenied) {
		r.logger().Warn("cached executable failed to launch; re-resolving",
			"tool", spec.Tool, "program", searchName, "path", out.Path, "kind", out.Kind.String())
		r.Resolver.Invalidate(searchName)
		out, _ = r.runOnce(ctx, spec)
	}
	r.Audit.Record(spec, out)
	return out
}

// launchTarget returns the name to resolve, its candidates, and the argv
// prefix that precedes spec.Argv.
func launchTarget(spec ExecutionSpec) (searchName string, candidates []string, prefix []string) {
	if len(spec.Launcher) == 0 {
		return spec.SearchName, spec.CandidatePaths, nil
	}
	target := spec.SearchName
	if len(spec.CandidatePaths) > 0 {
		target = spec.CandidatePaths[0]
	}
	prefix = append(append([]string(nil), spec.Launcher[1:]...), target)
	return spec.Launcher[0], nil, prefix
}

func (r *Runner) runOnce(ctx context.Context, spec ExecutionSpec) (ExecutionOutcome, bool) {
	timeout := r.computeTimeout(spec)
	searchName, candidates, prefix := launchTarget(spec)
	out := ExecutionOutcome{Program: searchName, Timeout: timeout}
	start := time.Now()

	resolved, err := r.Resolver.Resolve(searchName, candidates)
	if err != nil {
		out.Kind = KindNotFound
		out.Detail = err.Error()
		var nf *NotFoundError
		if errors.As(err, &nf) {
			out.Tried = nf.Tried
		}
		out.Elapsed = time.Since(start)
		r.logger().Error("executable not found", "tool", spec.Tool, "program", searchName, "tried", out.Tried)
		return out, false
	}
	out.Path = resolved.Path

	// A caller deadline shorter than ours is the deadline that applies.
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			out.Timeout = max(left, 0).Round(time.Millisecond)
		}
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), prefix...), spec.Argv...)
	cmd := exec.CommandContext(runCtx, resolved.Path, args...)
	cmd.Dir = spec.WorkingDirectory
	cmd.Env = ComposeEnv(r.BaseEnv, spec.ExtraEnv)
	stdout := sandbox.NewBoundedBuffer(r.MaxOutputBytes)
	stderr := sandbox.NewBoundedBuffer(r.MaxOutputBytes)
	// exec drains both pipes on its own goroutines while Wait blocks.
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.KillGrace
	configureProcess(cmd)
	var killed atomic.Bool
	kill := cmd.Cancel
	cmd.Cancel = func() error {
		killed.Store(true)
		return kill()
	}

	r.logger().Debug("starting tool process", "tool", spec.Tool, "path", resolved.Path,
		"argc", len(args), "dir", spec.WorkingDirectory, "timeout", timeout.String())

	if err := cmd.Start(); err != nil {
		out.Kind = classifyStartError(err)
		out.Detail = err.Error()
		out.Elapsed = time.Since(start)
		return out, resolved.FromCache
	}
	waitErr := cmd.Wait()
	out.Elapsed = time.Since(start)
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	out.Truncated = stdout.Truncated() || stderr.Truncated()
	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		out.ExitCode = &code
	}

	switch {
	case killed.Load() && errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.Kind = KindTimeout
		out.Detail = "caller deadline exceeded"
	case killed.Load() && ctx.Err() != nil:
		out.Kind = KindCanceled
		out.Detail = ctx.Err().Error()
	case killed.Load():
		out.Kind = KindTimeout
		out.Detail = "deadline exceeded"
	case cmd.ProcessState == nil:
		out.Kind = KindLaunchFailed
		if waitErr != nil {
			out.Detail = waitErr.Error()
		}
	case cmd.ProcessState.ExitCode() != 0:
		out.Kind = KindNonZeroExit
		if waitErr != nil {
			out.Detail = waitErr.Error()
		}
	default:
		// Exit 0; exec.ErrWaitDelay only means a descendant held a pipe open.
		out.Kind = KindNone
	}
	r.logger().Info("tool process finished", "tool", spec.Tool, "kind", out.Kind.String(),
		"exit", exitCodeOrMinusOne(out.ExitCode), "ms", out.Elapsed.Milliseconds(),
		"stdoutBytes", len(out.Stdout), "stderrBytes", len(out.Stderr))
	return out, resolved.FromCache
}

// classifyStartError separates permission problems from other launch failures.
func classifyStartError(err error) ErrorKind {
	if errors.Is(err, fs.ErrPermission) {
		return KindPermissionDenied
	}
	return KindLaunchFailed
}

func exitCodeOrMinusOne(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
