package jsrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/hyperifyio/toolgate/internal/sandbox"
)

// ErrTimeout is returned when a script exceeds its wall-time budget.
var ErrTimeout = errors.New("TIMEOUT")

// ErrOutputLimit is returned when a script emits more than its output cap.
var ErrOutputLimit = sandbox.ErrOutputLimit

// Limits bounds one script execution.
type Limits struct {
	Wall        time.Duration // default 1s
	OutputBytes int           // default 64 KiB
}

// Compile checks that src parses.
func Compile(src string) error {
	if _, err := goja.Compile("postprocess.js", src, false); err != nil {
		return err
	}
	return nil
}

// Transform runs src with minimal host bindings: read_input() returns input
// and emit(s) appends s to the result. On ErrOutputLimit the truncated result
// is returned together with the error.
func Transform(ctx context.Context, src, input string, limits Limits) (string, error) {
	if limits.OutputBytes <= 0 {
		limits.OutputBytes = 64 << 10
	}
	out := sandbox.NewStrictBuffer(limits.OutputBytes)

	vm := goja.New()
	if err := vm.Set("read_input", func() string { return input }); err != nil {
		return "", fmt.Errorf("bind read_input: %w", err)
	}
	if err := vm.Set("emit", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			if _, err := out.Write([]byte(call.Arguments[0].String())); err != nil {
				// Abort the script; mapped after execution.
				panic(ErrOutputLimit)
			}
		}
		return goja.Undefined()
	}); err != nil {
		return "", fmt.Errorf("bind emit: %w", err)
	}

	wallCtx, cancel := sandbox.WithWallTimeout(ctx, limits.Wall, time.Second)
	defer cancel()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				if errVal, ok := r.(error); ok {
					runErr = errVal
				} else {
					runErr = fmt.Errorf("panic: %v", r)
				}
			}
		}()
		_, runErr = vm.RunString(src)
	}()

	select {
	case <-done:
	case <-wallCtx.Done():
		vm.Interrupt("timeout")
		<-done
		runErr = ErrTimeout
	}

	if runErr != nil {
		if errors.Is(runErr, ErrOutputLimit) {
			return out.String(), ErrOutputLimit
		}
		return "", runErr
	}
	return out.String(), nil
}
