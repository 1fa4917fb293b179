package jsrun

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransform_EmitReadInput_Succeeds(t *testing.T) {
	out, err := Transform(context.Background(), "emit(read_input().trim().toUpperCase())", "  hello\n", Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "HELLO" {
		t.Fatalf("got %q want %q", out, "HELLO")
	}
}

func TestTransform_OutputLimit_TruncatesAndErrors(t *testing.T) {
	big := strings.Repeat("a", 1500)
	out, err := Transform(context.Background(), "emit(read_input())", big, Limits{OutputBytes: 1024})
	if !errors.Is(err, ErrOutputLimit) {
		t.Fatalf("expected ErrOutputLimit, got %v", err)
	}
	if len(out) != 1024 {
		t.Fatalf("expected truncated to 1024 bytes, got %d", len(out))
	}
}

func TestTransform_Timeout_Interrupts(t *testing.T) {
	start := time.Now()
	_, err := Transform(context.Background(), "for(;;){}", "", Limits{Wall: 50 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("interrupt took too long: %v", elapsed)
	}
}

func TestTransform_ScriptError(t *testing.T) {
	_, err := Transform(context.Background(), "throw new Error('bad')", "", Limits{})
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected script error, got %v", err)
	}
}

func TestCompile_RejectsSyntaxErrors(t *testing.T) {
	if err := Compile("emit("); err == nil {
		t.Fatalf("expected syntax error")
	}
	if err := Compile("emit(read_input())"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
