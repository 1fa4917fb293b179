package tools

import (
	"context"
	"encoding/json"
	"time"
)

// ErrorKind classifies how a tool call ended. The zero value means success.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnknownTool
	KindInvalidArguments
	KindNotFound
	KindPermissionDenied
	KindLaunchFailed
	KindTimeout
	KindNonZeroExit
	KindCanceled
	// KindInternal marks a fault inside the gateway itself, such as a
	// handler panic; no process outcome is implied.
	KindInternal
)

var kindNames = [...]string{
	KindNone:             "None",
	KindUnknownTool:      "UnknownTool",
	KindInvalidArguments: "InvalidArguments",
	KindNotFound:         "NotFound",
	KindPermissionDenied: "PermissionDenied",
	KindLaunchFailed:     "LaunchFailed",
	KindTimeout:          "Timeout",
	KindNonZeroExit:      "NonZeroExit",
	KindCanceled:         "Canceled",
	KindInternal:         "Internal",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// ToolDescriptor identifies one invocable capability.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolCallRequest is one incoming call.
type ToolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult is the externally visible result of a call.
type ToolCallResult struct {
	IsError bool      `json:"isError"`
	Content string    `json:"content"`
	Kind    ErrorKind `json:"-"`
}

// ExecutionSpec describes one external process invocation. Handlers build it
// per call; the runner treats it as read-only.
type ExecutionSpec struct {
	// Tool is the calling tool's name, recorded in the audit log.
	Tool string
	// CandidatePaths are probed in order before falling back to a search by SearchName.
	CandidatePaths []string
	SearchName     string
	// Argv holds the arguments after the program itself.
	Argv             []string
	WorkingDirectory string
	Timeout          time.Duration
	ExtraEnv         map[string]string
	// Launcher, when set, is resolved and executed instead of the target, with
	// the target name passed as its next argument. Used when the target lives
	// in another OS environment sharing this filesystem (for example wsl.exe -e).
	Launcher []string
}

// ResolvedExecutable is a verified executable path.
type ResolvedExecutable struct {
	Path       string
	ResolvedAt time.Time
	// FromCache is set when the path was served from the resolver cache
	// rather than probed for this call.
	FromCache bool
}

// ExecutionOutcome captures the facts of one run. It never carries a Go error;
// every failure mode is expressed as Kind plus Detail.
type ExecutionOutcome struct {
	Program  string
	Path     string
	Tried    []string
	ExitCode *int
	Stdout   string
	Stderr   string
	Kind     ErrorKind
	Detail   string
	Timeout  time.Duration
	Elapsed  time.Duration
	// Truncated reports that at least one stream exceeded the capture cap.
	Truncated bool
}

// ExitPolicy lets a tool declare which non-zero exit codes are findings rather
// than failures.
type ExitPolicy struct {
	FindingsExitCodes []int
}

// Handler turns validated arguments into a result. Implementations usually
// build an ExecutionSpec and delegate to a Runner.
type Handler interface {
	Handle(ctx context.Context, args map[string]any) ToolCallResult
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args map[string]any) ToolCallResult

func (f HandlerFunc) Handle(ctx context.Context, args map[string]any) ToolCallResult {
	return f(ctx, args)
}

// Executor runs an ExecutionSpec. *Runner is the production implementation.
type Executor interface {
	Run(ctx context.Context, spec ExecutionSpec) ExecutionOutcome
}
