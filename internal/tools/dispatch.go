package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds in-flight tool executions.
const DefaultMaxConcurrent = 4

// Dispatcher routes tool calls to their handlers. Process execution happens on
// the caller's goroutine, bounded by a weighted semaphore acting as the worker
// pool, so a slow tool never blocks the protocol loop from serving others.
type Dispatcher struct {
	registry *Registry
	slots    *semaphore.Weighted
	logger   *slog.Logger
}

// NewDispatcher returns a dispatcher over an already populated registry.
func NewDispatcher(registry *Registry, maxConcurrent int, logger *slog.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		slots:    semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   logger,
	}
}

// Tools returns the ordered tool descriptors.
func (d *Dispatcher) Tools() []ToolDescriptor {
	return d.registry.Descriptors()
}

// Dispatch runs one tool call and always returns a result. Unknown tools and
// invalid arguments are rejected before any handler or process runs.
func (d *Dispatcher) Dispatch(ctx context.Context, req ToolCallRequest) (res ToolCallResult) {
	entry, ok := d.registry.lookup(req.Name)
	if !ok {
		d.logger.Warn("unknown tool", "tool", req.Name)
		return Classify(ExecutionOutcome{Kind: KindUnknownTool, Detail: req.Name})
	}
	if err := entry.validateArguments(req.Arguments); err != nil {
		d.logger.Warn("invalid tool arguments", "tool", req.Name, "error", err)
		return Classify(ExecutionOutcome{Kind: KindInvalidArguments, Detail: err.Error()})
	}
	if err := d.slots.Acquire(ctx, 1); err != nil {
		return Classify(ExecutionOutcome{Kind: KindCanceled, Program: req.Name, Detail: err.Error()})
	}
	defer d.slots.Release(1)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panic", "tool", req.Name, "panic", r, "stack", string(debug.Stack()))
			res = Classify(ExecutionOutcome{Kind: KindInternal, Program: req.Name, Detail: fmt.Sprintf("tool %s panicked: %v", req.Name, r)})
		}
		d.logger.Info("tool call finished", "tool", req.Name, "isError", res.IsError,
			"kind", res.Kind.String(), "ms", time.Since(start).Milliseconds())
	}()
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return entry.handler.Handle(ctx, args)
}
