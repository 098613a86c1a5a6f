package monitor

import (
	"bufio"
	"io"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// Supervisor wraps another monitor and additionally cancels when a work item
// takes longer than Budget, or when available memory drops below
// MinFreeMemory bytes.
type Supervisor struct {
	inner Monitor

	// Budget bounds the time between two Worked calls. Zero disables the
	// bound.
	Budget time.Duration
	// MinFreeMemory is the number of bytes that must remain available. Zero
	// disables the check.
	MinFreeMemory uint64

	// Now and FreeMemory can be replaced in tests.
	Now        func() time.Time
	FreeMemory func() uint64

	lastWork time.Time
	canceled bool
	reason   string
}

func NewSupervisor(inner Monitor, budget time.Duration, minFree uint64) *Supervisor {
	if inner == nil {
		inner = Null
	}
	s := &Supervisor{
		inner:         inner,
		Budget:        budget,
		MinFreeMemory: minFree,
		Now:           time.Now,
		FreeMemory:    FreeMemory,
	}
	return s
}

func (s *Supervisor) IsCanceled() bool {
	if s.canceled {
		return true
	}

	switch {
	case s.inner.IsCanceled():
		s.cancel("inner monitor canceled")
	case s.Budget > 0:
		now := s.Now()
		if s.lastWork.IsZero() {
			s.lastWork = now
		} else if now.Sub(s.lastWork) > s.Budget {
			s.cancel("work item exceeded time budget of " + s.Budget.String())
		}
	}

	if !s.canceled && s.MinFreeMemory > 0 && s.FreeMemory() < s.MinFreeMemory {
		s.cancel("available memory below threshold")
	}

	return s.canceled
}

func (s *Supervisor) cancel(reason string) {
	s.canceled = true
	s.reason = reason
}

// Reason describes why the supervisor canceled, or is empty.
func (s *Supervisor) Reason() string { return s.reason }

func (s *Supervisor) Worked(n int) {
	s.lastWork = s.Now()
	s.inner.Worked(n)
}

// FreeMemory estimates the number of bytes that can still be allocated: the
// smaller of the headroom below the runtime's soft memory limit and the memory
// the operating system reports as available. It returns math.MaxUint64 when
// neither is known.
func FreeMemory() uint64 {
	free := systemMemory()

	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		used := stats.Sys - stats.HeapReleased
		if uint64(limit) <= used {
			return 0
		} else if headroom := uint64(limit) - used; headroom < free {
			free = headroom
		}
	}
	return free
}

const meminfo = "/proc/meminfo"

func systemMemory() uint64 {
	f, err := os.Open(meminfo)
	if err != nil {
		return math.MaxUint64
	}
	defer f.Close()

	if avail, ok := parseMemAvailable(f); ok {
		return avail
	}
	return math.MaxUint64
}

// parseMemAvailable extracts the MemAvailable entry of a meminfo listing.
func parseMemAvailable(r io.Reader) (uint64, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "MemAvailable:" {
			continue
		}

		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb << 10, true
	}
	return 0, false
}
