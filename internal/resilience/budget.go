package resilience

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// Guard runs fn, converting a panic, an error, a non-finite result, or an
// exceeded wall-clock budget into a HeuristicFailure for heuristic. A
// budget <= 0 disables the deadline. fn must honour ctx cancellation for the
// budget to stop work early; its result is discarded once the budget passes.
func Guard(ctx context.Context, heuristic string, budget time.Duration, fn func(ctx context.Context) (float64, error)) (float64, error) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	type result struct {
		v   float64
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: eris.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, NewHeuristicFailure(eris.Wrapf(ctx.Err(), "%s: budget %s exceeded", heuristic, budget), heuristic)
	case r := <-done:
		if r.err != nil {
			return 0, NewHeuristicFailure(eris.Wrap(r.err, heuristic), heuristic)
		}
		if math.IsNaN(r.v) || math.IsInf(r.v, 0) {
			return 0, NewHeuristicFailure(eris.Errorf("%s: non-finite result", heuristic), heuristic)
		}
		return r.v, nil
	}
}
