package monitor

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step every time it is read.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestCounter(t *testing.T) {
	c := &Counter{Limit: 3}
	c.Worked(2)
	assert.False(t, c.IsCanceled())
	c.Worked(1)
	assert.True(t, c.IsCanceled())
	assert.Equal(t, int64(3), c.Work())

	c = &Counter{}
	c.Worked(100)
	assert.False(t, c.IsCanceled(), "no limit")
	c.Cancel()
	assert.ErrorIs(t, Checkpoint(c), ErrCanceled)
}

func TestSupervisor(t *testing.T) {
	t.Run("WorkResetsBudget", func(t *testing.T) {
		clock := &fakeClock{step: time.Millisecond}
		s := NewSupervisor(nil, 5*time.Millisecond, 0)
		s.Now = clock.Now

		for i := 0; i < 10; i++ {
			require.False(t, s.IsCanceled())
			s.Worked(1)
		}
	})

	t.Run("NoWorkWithinBudget", func(t *testing.T) {
		clock := &fakeClock{step: 2 * time.Millisecond}
		s := NewSupervisor(nil, time.Millisecond, 0)
		s.Now = clock.Now

		assert.False(t, s.IsCanceled(), "first poll starts the clock")
		assert.True(t, s.IsCanceled())
		assert.True(t, s.IsCanceled(), "cancellation is terminal")
		assert.Contains(t, s.Reason(), "time budget")
	})

	t.Run("Memory", func(t *testing.T) {
		s := NewSupervisor(Null, 0, 1<<20)
		s.FreeMemory = func() uint64 { return 1 << 10 }
		assert.True(t, s.IsCanceled())
		assert.Contains(t, s.Reason(), "memory")
	})

	t.Run("Inner", func(t *testing.T) {
		inner := &Counter{}
		s := NewSupervisor(inner, 0, 0)
		s.Worked(4)
		assert.Equal(t, int64(4), inner.Work())
		inner.Cancel()
		assert.True(t, s.IsCanceled())
	})
}

func TestWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := WithContext(ctx, nil)
	assert.False(t, m.IsCanceled())
	cancel()
	assert.True(t, m.IsCanceled())
}

func TestFreeMemory(t *testing.T) {
	assert.Greater(t, FreeMemory(), uint64(0))

	if _, err := os.Stat(meminfo); err != nil {
		t.Skip("no meminfo on this system")
	}
	assert.Less(t, FreeMemory(), uint64(math.MaxUint64),
		"system memory bounds the estimate without a runtime limit")
}

func TestParseMemAvailable(t *testing.T) {
	avail, ok := parseMemAvailable(strings.NewReader(`MemTotal:       16303504 kB
MemFree:         1034584 kB
MemAvailable:    8912896 kB
Buffers:          402632 kB
`))
	require.True(t, ok)
	assert.Equal(t, uint64(8912896)<<10, avail)

	_, ok = parseMemAvailable(strings.NewReader("MemTotal: 16303504 kB\n"))
	assert.False(t, ok)

	_, ok = parseMemAvailable(strings.NewReader("MemAvailable: lots kB\n"))
	assert.False(t, ok)
}
