package pta

import (
	"errors"
	"fmt"

	"github.com/BarrensZeppelin/pta/ir"
)

var (
	// ErrBuildCanceled is returned when the monitor cancels the analysis.
	// The partial result returned alongside it is unsound.
	ErrBuildCanceled = errors.New("call graph construction canceled")
	// ErrInvariant signals a defect in the analysis itself.
	ErrInvariant = errors.New("analysis invariant violated")
)

// ConfigError reports an invalid or contradictory configuration. It is
// returned before any solving takes place.
type ConfigError struct {
	Option string
	Msg    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Msg)
}

func configErrorf(option, format string, args ...any) *ConfigError {
	return &ConfigError{option, fmt.Sprintf(format, args...)}
}

type WarningKind int

const (
	// UnresolvableCall is reported for a call that has no target for some
	// receiver type.
	UnresolvableCall WarningKind = iota
	// MissingBody is reported for reachable methods without IR that were not
	// excluded by configuration.
	MissingBody
)

func (k WarningKind) String() string {
	switch k {
	case UnresolvableCall:
		return "unresolvable call"
	case MissingBody:
		return "missing body"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

// Warning is a soundness gap found during the analysis. Warnings never stop
// the analysis.
type Warning struct {
	Kind   WarningKind
	Method ir.Method
	Site   *ir.Call
	// Type is the receiver type for which resolution failed, or nil.
	Type ir.Type
}

func (w Warning) String() string {
	switch w.Kind {
	case UnresolvableCall:
		if w.Type == nil {
			return fmt.Sprintf("%v in %v: %v", w.Kind, w.Method, w.Site)
		}
		return fmt.Sprintf("%v in %v: %v on %v", w.Kind, w.Method, w.Site, w.Type)
	default:
		return fmt.Sprintf("%v: %v", w.Kind, w.Method)
	}
}
