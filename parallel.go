package pta

import (
	"context"

	"github.com/BarrensZeppelin/pta/monitor"
	"golang.org/x/sync/errgroup"
)

// AnalyzeAll runs independent analyses concurrently, at most parallelism at
// a time (unbounded if parallelism <= 0). The runs share nothing but the
// program, which must not be mutated while they are in progress.
//
// When a run fails or ctx is done, the remaining runs are canceled. The
// returned slice holds the results that were produced, indexed like configs,
// and the error is the first one encountered.
func AnalyzeAll(ctx context.Context, configs []Config, parallelism int) ([]*Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	results := make([]*Result, len(configs))
	for i, cfg := range configs {
		i, cfg := i, cfg
		cfg.Monitor = monitor.WithContext(ctx, cfg.Monitor)
		g.Go(func() error {
			res, err := Analyze(cfg)
			results[i] = res
			return err
		})
	}

	return results, g.Wait()
}
