package storage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
)

// sumKind selects which amounts an aggregate query adds up.
type sumKind int

const (
	sumBalance sumKind = iota
	sumIncome
	sumExpenses
)

// summarize runs the three independent aggregate queries concurrently and
// assembles the summary. The first failure cancels the others.
func summarize(ctx context.Context, sum func(ctx context.Context, kind sumKind) (core.Amount, error)) (core.Summary, error) {
	var s core.Summary
	g, ctx := errgroup.WithContext(ctx)

	targets := map[sumKind]*core.Amount{
		sumBalance:  &s.Balance,
		sumIncome:   &s.Income,
		sumExpenses: &s.Expenses,
	}
	for kind, dst := range targets {
		g.Go(func() error {
			v, err := sum(ctx, kind)
			if err != nil {
				return err
			}
			*dst = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}
	return s, nil
}
