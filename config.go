package pta

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"time"

	"github.com/BarrensZeppelin/pta/contexts"
	"github.com/BarrensZeppelin/pta/heap"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/monitor"
	"github.com/BarrensZeppelin/pta/solver"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Options are the user-facing analysis options. They can be loaded from a
// YAML file with LoadOptions.
type Options struct {
	// Context is one of "insensitive", "call-site" or "object".
	Context string `yaml:"context"`
	// Depth is the number of context elements kept by sensitive policies.
	Depth int `yaml:"depth"`
	// HeapDepth is the number of context elements kept in heap contexts.
	HeapDepth int `yaml:"heap-depth"`
	// Smush lists instance key merging flags: many, strings,
	// primitive-holders and throwables.
	Smush []string `yaml:"smush"`
	// Exclude contains regular expressions. Methods whose name matches one of
	// them are added to the call graph but their bodies are not analysed.
	Exclude []string `yaml:"exclude"`
	// Order is the worklist order, "fifo" (default) or "lifo".
	Order           string `yaml:"order"`
	CheckInvariants bool   `yaml:"check-invariants"`

	// WorkItemBudgetMs cancels the analysis when a single work item takes
	// longer than the given number of milliseconds.
	WorkItemBudgetMs int `yaml:"work-item-budget-ms"`
	// MinFreeMemoryMB cancels the analysis when less memory is available.
	MinFreeMemoryMB int `yaml:"min-free-memory-mb"`
}

func DefaultOptions() Options {
	return Options{Context: "insensitive", Order: "fifo"}
}

// LoadOptions reads options from a YAML file. Keys that are absent keep their
// default values.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}

	if err := yaml.UnmarshalStrict(data, &opts); err != nil {
		return opts, &ConfigError{path, err.Error()}
	}
	return opts, opts.Validate()
}

// Validate reports the first problem with the options as a *ConfigError.
func (o Options) Validate() error {
	_, err := o.compile()
	return err
}

// EntryPoint is a method from which the analysis starts. Its receiver and
// parameters are assumed to hold unknown objects of the listed types.
type EntryPoint struct {
	Method   ir.Method
	Receiver []ir.Type
	// Args[i] lists the possible types of the i'th parameter.
	Args [][]ir.Type
}

// Config describes one analysis run.
type Config struct {
	Program     ir.Program
	EntryPoints []EntryPoint
	Options     Options

	// Model resolves calls that cannot be resolved through the hierarchy.
	// Optional.
	Model ir.Model
	// Monitor is polled during the analysis. Optional.
	Monitor monitor.Monitor
	// Many overrides the heuristic used for smushing sites that allocate
	// many objects. Optional.
	Many heap.ManyPredicate
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Logger
}

type settings struct {
	selector contexts.Selector
	flags    heap.Flags
	exclude  []*regexp.Regexp
	order    solver.Order
}

func (o Options) compile() (*settings, error) {
	var s settings
	var err error

	if s.selector, err = contexts.Parse(o.Context, o.Depth); err != nil {
		return nil, &ConfigError{"context", err.Error()}
	}

	if o.HeapDepth < 0 {
		return nil, configErrorf("heap-depth", "must not be negative, got %d", o.HeapDepth)
	}

	if s.flags, err = heap.ParseFlags(o.Smush); err != nil {
		return nil, &ConfigError{"smush", err.Error()}
	}

	if s.selector.NeedsReceiver() && s.flags.ByType() {
		return nil, configErrorf("smush",
			"%v requires receivers with allocation sites, but %v merges objects by type",
			s.selector, s.flags)
	}

	for _, expr := range o.Exclude {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &ConfigError{"exclude", err.Error()}
		}
		s.exclude = append(s.exclude, re)
	}

	switch o.Order {
	case "", "fifo":
		s.order = solver.FIFO
	case "lifo":
		s.order = solver.LIFO
	default:
		return nil, configErrorf("order", "unknown worklist order %q", o.Order)
	}

	if o.WorkItemBudgetMs < 0 {
		return nil, configErrorf("work-item-budget-ms", "must not be negative, got %d", o.WorkItemBudgetMs)
	}
	if o.MinFreeMemoryMB < 0 {
		return nil, configErrorf("min-free-memory-mb", "must not be negative, got %d", o.MinFreeMemoryMB)
	}

	return &s, nil
}

func (cfg *Config) validate() (*settings, error) {
	if cfg.Program == nil {
		return nil, &ConfigError{"program", "no program to analyse"}
	}
	if len(cfg.EntryPoints) == 0 {
		return nil, &ConfigError{"entry-points", "no entry points"}
	}
	for i, ep := range cfg.EntryPoints {
		if ep.Method == nil {
			return nil, configErrorf("entry-points", "entry point %d has no method", i)
		}
	}
	return cfg.Options.compile()
}

func (cfg *Config) logger() *logrus.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logrus.StandardLogger()
}

// supervise wraps the configured monitor in a supervisor when the options ask
// for time or memory bounds.
func (cfg *Config) supervise() monitor.Monitor {
	mon := cfg.Monitor
	if mon == nil {
		mon = monitor.Null
	}

	o := cfg.Options
	if o.MinFreeMemoryMB > 0 && monitor.FreeMemory() == math.MaxUint64 {
		cfg.logger().Warn("Available memory cannot be determined, min-free-memory-mb has no effect")
	}
	if o.WorkItemBudgetMs > 0 || o.MinFreeMemoryMB > 0 {
		mon = monitor.NewSupervisor(mon,
			time.Duration(o.WorkItemBudgetMs)*time.Millisecond,
			uint64(o.MinFreeMemoryMB)<<20)
	}
	return mon
}

func (s *settings) String() string {
	return fmt.Sprintf("context=%v heap=%v order=%v", s.selector, s.flags, s.order)
}
