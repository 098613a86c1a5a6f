// Package pta implements a context-sensitive, propagation-based points-to
// analysis that constructs the call graph on the fly.
//
// Points-to facts and call targets are computed as one fixpoint: objects
// flowing into the receiver of a call reveal new callees, whose bodies add
// new constraints to the same solver. The analysed program is described by
// the interfaces of package ir; package ssair adapts Go SSA programs.
package pta

import (
	"errors"
	"fmt"
	"time"

	"github.com/BarrensZeppelin/pta/monitor"
	"github.com/BarrensZeppelin/pta/solver"
)

// Analyze runs the analysis described by config.
//
// Configuration problems are reported as a *ConfigError before any work is
// done. If the monitor cancels the analysis, the partial result is returned
// together with an error wrapping ErrBuildCanceled.
func Analyze(config Config) (*Result, error) {
	s, err := config.validate()
	if err != nil {
		return nil, err
	}

	log := config.logger()
	log.Debugf("Analyzing %d entry points with %v", len(config.EntryPoints), s)

	start := time.Now()
	b := newBuilder(&config, s)
	err = b.run(config.EntryPoints)

	res := b.result(err == nil)
	res.Stats.Duration = time.Since(start)

	var ierr *solver.InvariantError
	switch {
	case err == nil:
		log.Infof("Analysis done in %v: %d call graph nodes, %d pointer keys, %d instance keys, %d warnings",
			res.Stats.Duration, res.CallGraph.NumNodes(), res.Stats.PointerKeys,
			res.Stats.InstanceKeys, len(res.Warnings))
		return res, nil

	case errors.Is(err, monitor.ErrCanceled):
		if sup, ok := b.mon.(*monitor.Supervisor); ok {
			log.Warnf("Analysis canceled after %d iterations: %s", res.Stats.Iterations, sup.Reason())
		} else {
			log.Warnf("Analysis canceled after %d iterations", res.Stats.Iterations)
		}
		return res, fmt.Errorf("%w: %w", ErrBuildCanceled, err)

	case errors.As(err, &ierr):
		log.Errorf("Aborting analysis: %v", ierr)
		return nil, fmt.Errorf("%w: %w", ErrInvariant, err)

	default:
		return nil, err
	}
}
