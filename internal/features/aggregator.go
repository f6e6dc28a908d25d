package features

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"fundrank/internal/fund"
)

// Aggregator runs every registered calculator and joins the resulting
// columns into one row per fund. The join is an outer join on fund id:
// a fund missing one feature is never dropped, it just carries a null
// cell.
type Aggregator struct {
	calculators []Calculator
	logger      *slog.Logger
}

// NewAggregator creates an aggregator over the given calculators.
// Calculator names must be canonical and unique.
func NewAggregator(calculators []Calculator, logger *slog.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]bool, len(calculators))
	for _, c := range calculators {
		name := c.Name()
		if !IsKnown(name) {
			return nil, fmt.Errorf("unknown feature calculator %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate feature calculator %q", name)
		}
		seen[name] = true
	}

	return &Aggregator{calculators: calculators, logger: logger}, nil
}

// ByName returns the registered calculator with the given canonical
// name, or false when absent.
func (a *Aggregator) ByName(name string) (Calculator, bool) {
	for _, c := range a.calculators {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Merge computes all feature columns data-parallel and joins them into
// rows for the active fund population. A calculator that fails (or
// panics) degrades to a null column with a warning; it never aborts
// the run or blocks the other six features.
func (a *Aggregator) Merge(ctx context.Context, in *Inputs) ([]Row, error) {
	var mu sync.Mutex
	columns := make(map[string]Column, len(a.calculators))

	g, gctx := errgroup.WithContext(ctx)
	for _, calc := range a.calculators {
		g.Go(func() error {
			col, err := a.safeCalculate(gctx, calc, in)
			if err != nil {
				a.logger.Warn("feature calculator failed, column degraded to null",
					"feature", calc.Name(),
					"error", err,
				)
				return nil
			}
			mu.Lock()
			columns[calc.Name()] = col
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("merge features: %w", err)
	}

	population := make([]fund.CNPJ, 0, len(in.Characteristics))
	for id, c := range in.Characteristics {
		if c.IsActive {
			population = append(population, id)
		}
	}
	sort.Slice(population, func(i, j int) bool { return population[i] < population[j] })

	rows := make([]Row, 0, len(population))
	for _, id := range population {
		row := Row{
			FundID:   id,
			Features: make(map[string]fund.Value, len(a.calculators)),
			Aux:      make(map[string]fund.Value),
		}
		for _, calc := range a.calculators {
			name := calc.Name()
			res, ok := columns[name][id]
			if !ok {
				row.Features[name] = fund.Null()
				continue
			}
			row.Features[name] = sanitizeHHI(name, res.Value)
			for auxName, auxVal := range res.Aux {
				row.Aux[auxName] = auxVal
			}
		}
		rows = append(rows, row)
	}

	a.logger.Info("merged feature columns",
		"funds", len(rows),
		"features", len(a.calculators),
	)
	return rows, nil
}

// safeCalculate confines a calculator panic to its own column.
func (a *Aggregator) safeCalculate(ctx context.Context, calc Calculator, in *Inputs) (col Column, err error) {
	defer func() {
		if r := recover(); r != nil {
			col = nil
			err = fmt.Errorf("calculator %s panicked: %v", calc.Name(), r)
		}
	}()
	return calc.Calculate(ctx, in)
}

// sanitizeHHI re-applies the dispersion-index guardrail at the merge
// boundary: HHI cells must lie in (0,1], anything else is a
// data-quality failure and forced to null.
func sanitizeHHI(name string, v fund.Value) fund.Value {
	if name != FeatureConcentration && name != FeatureDiversification {
		return v
	}
	if v.Valid && (v.Float64 > 1.0 || v.Float64 <= 0) {
		return fund.Null()
	}
	return v
}
