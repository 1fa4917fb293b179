package sandbox

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOutputLimit is returned by a strict BoundedBuffer once its cap is exceeded.
var ErrOutputLimit = errors.New("OUTPUT_LIMIT")

// DefaultCaptureBytes caps a single captured stream when no limit is configured.
const DefaultCaptureBytes = 4 << 20

// BoundedBuffer is an io.Writer implementation that caps total bytes kept in memory.
// Writes past the cap are dropped and Truncated reports true.
//
// By default the buffer keeps accepting (and discarding) input after the cap so
// that a child process writing into it is never blocked or sent EPIPE. A strict
// buffer returns ErrOutputLimit instead, which lets in-process producers stop early.
//
// BoundedBuffer is safe for concurrent use; the runner reads partial output
// while the copy goroutines may still be finishing.
type BoundedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	capBytes  int
	strict    bool
	truncated bool
}

// NewBoundedBuffer creates a drain-safe buffer holding at most capBytes.
// A zero or negative capBytes defaults to DefaultCaptureBytes.
func NewBoundedBuffer(capBytes int) *BoundedBuffer {
	if capBytes <= 0 {
		capBytes = DefaultCaptureBytes
	}
	return &BoundedBuffer{capBytes: capBytes}
}

// NewStrictBuffer creates a buffer that reports ErrOutputLimit on overflow.
func NewStrictBuffer(capBytes int) *BoundedBuffer {
	b := NewBoundedBuffer(capBytes)
	b.strict = true
	return b
}

// Write appends p up to the remaining capacity.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.capBytes - b.buf.Len()
	if len(p) <= remaining {
		return b.buf.Write(p)
	}
	if remaining > 0 {
		_, _ = b.buf.Write(p[:remaining])
	}
	b.truncated = true
	if b.strict {
		if remaining < 0 {
			remaining = 0
		}
		return remaining, ErrOutputLimit
	}
	return len(p), nil
}

// String returns the current contents as string.
func (b *BoundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Len returns the number of bytes kept.
func (b *BoundedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Truncated reports whether any write exceeded the cap.
func (b *BoundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// WithWallTimeout returns a derived context that is canceled after d.
// If d <= 0, fallback is used; if both are non-positive, one second applies.
func WithWallTimeout(parent context.Context, d, fallback time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = fallback
	}
	if d <= 0 {
		d = time.Second
	}
	return context.WithTimeout(parent, d)
}
