package harness

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunAll executes scenarios concurrently, at most limit at a time (no limit
// when limit <= 0). Results are index-aligned with scenarios. The first
// execution error cancels scenarios that have not started yet and is
// returned; failed assertions are not errors.
//
// Observers passed through opts are shared by all runs and must be safe for
// concurrent use.
func RunAll(ctx context.Context, scenarios []*Scenario, limit int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, s := range scenarios {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Run(s, opts...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
