// Package monitor provides cooperative cancellation and progress reporting
// for long-running solves.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrCanceled is reported by solvers that stopped because their monitor was
// canceled.
var ErrCanceled = errors.New("build canceled")

// Monitor is polled by the solver at checkpoints. Implementations are only
// used by a single solve at a time, but Cancel-like methods may be called
// from other goroutines.
type Monitor interface {
	IsCanceled() bool
	// Worked advances the progress counter by n work items.
	Worked(n int)
}

// Checkpoint polls m and returns ErrCanceled if it was canceled.
func Checkpoint(m Monitor) error {
	if m.IsCanceled() {
		return ErrCanceled
	}
	return nil
}

type null struct{}

func (null) IsCanceled() bool { return false }
func (null) Worked(int)       {}

// Null never cancels.
var Null Monitor = null{}

// Counter counts work items. It is canceled when Cancel is called or when
// Limit (if positive) work items have been performed.
type Counter struct {
	Limit int64

	work     atomic.Int64
	canceled atomic.Bool
}

func (c *Counter) IsCanceled() bool {
	return c.canceled.Load() || (c.Limit > 0 && c.work.Load() >= c.Limit)
}

func (c *Counter) Worked(n int) { c.work.Add(int64(n)) }

// Work returns the number of work items performed so far.
func (c *Counter) Work() int64 { return c.work.Load() }

func (c *Counter) Cancel() { c.canceled.Store(true) }

type ctxMonitor struct {
	ctx   context.Context
	inner Monitor
}

// WithContext returns a monitor that is canceled when ctx is done or when
// inner is canceled.
func WithContext(ctx context.Context, inner Monitor) Monitor {
	if inner == nil {
		inner = Null
	}
	return &ctxMonitor{ctx, inner}
}

func (m *ctxMonitor) IsCanceled() bool {
	return m.ctx.Err() != nil || m.inner.IsCanceled()
}

func (m *ctxMonitor) Worked(n int) { m.inner.Worked(n) }
