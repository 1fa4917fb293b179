package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const fileSchema = `{"type":"object","properties":{"file_path":{"type":"string"},"review_type":{"type":"string","enum":["general","security"]}},"required":["file_path"]}`

func TestRegistry_RejectsBadRegistrations(t *testing.T) {
	reg := NewRegistry()
	h := HandlerFunc(func(context.Context, map[string]any) ToolCallResult { return ToolCallResult{} })
	if err := reg.Register(ToolDescriptor{}, h); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := reg.Register(ToolDescriptor{Name: "a"}, nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
	if err := reg.Register(ToolDescriptor{Name: "a", InputSchema: json.RawMessage(`{"type":`)}, h); err == nil {
		t.Fatalf("expected error for broken schema")
	}
	if err := reg.Register(ToolDescriptor{Name: "a"}, h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(ToolDescriptor{Name: "a"}, h); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if reg.Len() != 1 || string(reg.Descriptors()[0].InputSchema) != `{"type":"object"}` {
		t.Fatalf("unexpected registry state: %+v", reg.Descriptors())
	}
}

func TestDispatch_UnknownToolNeverResolves(t *testing.T) {
	resolver := NewResolver(t.TempDir())
	runner := NewRunner(resolver, nil)
	reg := NewRegistry()
	if err := reg.Register(ToolDescriptor{Name: "known"}, HandlerFunc(func(ctx context.Context, _ map[string]any) ToolCallResult {
		return Classify(runner.Run(ctx, ExecutionSpec{SearchName: "x"}))
	})); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, 2, nil)
	res := d.Dispatch(context.Background(), ToolCallRequest{Name: "nonexistent"})
	if !res.IsError || res.Kind != KindUnknownTool || res.Content != "unknown tool: nonexistent" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if resolver.Probes() != 0 {
		t.Fatalf("resolver must not run for unknown tools")
	}
}

func TestDispatch_InvalidArgumentsAreRejectedBeforeHandler(t *testing.T) {
	var called atomic.Bool
	reg := NewRegistry()
	if err := reg.Register(ToolDescriptor{Name: "review_code", InputSchema: json.RawMessage(fileSchema)},
		HandlerFunc(func(context.Context, map[string]any) ToolCallResult {
			called.Store(true)
			return ToolCallResult{Content: "ok"}
		})); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, 1, nil)
	for _, args := range []map[string]any{
		nil,
		{"file_path": 12},
		{"file_path": "a.go", "review_type": "style"},
	} {
		res := d.Dispatch(context.Background(), ToolCallRequest{Name: "review_code", Arguments: args})
		if !res.IsError || res.Kind != KindInvalidArguments || !strings.HasPrefix(res.Content, "invalid arguments: ") {
			t.Fatalf("args %v: unexpected result %+v", args, res)
		}
	}
	if called.Load() {
		t.Fatalf("handler ran for invalid arguments")
	}
	res := d.Dispatch(context.Background(), ToolCallRequest{Name: "review_code", Arguments: map[string]any{"file_path": "a.go"}})
	if res.IsError || res.Content != "ok" {
		t.Fatalf("valid call failed: %+v", res)
	}
}

func TestDispatch_BoundsConcurrency(t *testing.T) {
	const limit = 2
	var inFlight, peak atomic.Int64
	reg := NewRegistry()
	if err := reg.Register(ToolDescriptor{Name: "slow"}, HandlerFunc(func(context.Context, map[string]any) ToolCallResult {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		return ToolCallResult{Content: "done"}
	})); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, limit, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := d.Dispatch(context.Background(), ToolCallRequest{Name: "slow"}); res.IsError {
				t.Errorf("unexpected error: %+v", res)
			}
		}()
	}
	wg.Wait()
	if peak.Load() > limit {
		t.Fatalf("peak concurrency %d exceeds %d", peak.Load(), limit)
	}
}

func TestDispatch_CanceledWhileWaitingForSlot(t *testing.T) {
	release := make(chan struct{})
	reg := NewRegistry()
	if err := reg.Register(ToolDescriptor{Name: "block"}, HandlerFunc(func(context.Context, map[string]any) ToolCallResult {
		<-release
		return ToolCallResult{}
	})); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, 1, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Dispatch(context.Background(), ToolCallRequest{Name: "block"})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := d.Dispatch(ctx, ToolCallRequest{Name: "block"})
	close(release)
	<-done
	if !res.IsError || res.Kind != KindCanceled {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatch_HandlerPanicBecomesErrorResult(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolDescriptor{Name: "bad"}, HandlerFunc(func(context.Context, map[string]any) ToolCallResult {
		panic("kaboom")
	})); err != nil {
		t.Fatalf("register: %v", err)
	}
	res := NewDispatcher(reg, 1, nil).Dispatch(context.Background(), ToolCallRequest{Name: "bad"})
	if !res.IsError || res.Kind != KindInternal || res.Content != "internal error: tool bad panicked: kaboom" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
