package features

import (
	"context"

	"fundrank/internal/fund"
)

const daysPerYear = 365.0

// FundAge computes each fund's age in years as of the run's reference
// date, capped at a configured maximum so very old funds do not
// dominate the normalized range.
type FundAge struct {
	capYears float64
}

// NewFundAge creates the fund age calculator. capYears <= 0 falls back
// to the default cap of 30.
func NewFundAge(capYears float64) *FundAge {
	if capYears <= 0 {
		capYears = 30
	}
	return &FundAge{capYears: capYears}
}

// Name implements Calculator.
func (f *FundAge) Name() string { return FeatureFundAge }

// Calculate implements Calculator. Funds without an inception date, or
// with one after the reference date, get null.
func (f *FundAge) Calculate(_ context.Context, in *Inputs) (Column, error) {
	out := make(Column, len(in.Characteristics))
	for id, c := range in.Characteristics {
		if c.InceptionDate.IsZero() || c.InceptionDate.After(in.AsOf) {
			out[id] = Result{Value: fund.Null()}
			continue
		}

		days := in.AsOf.Sub(c.InceptionDate).Hours() / 24
		years := days / daysPerYear
		if years > f.capYears {
			years = f.capYears
		}

		out[id] = Result{
			Value: fund.Some(years),
			Aux:   map[string]fund.Value{AuxFundAgeDays: fund.Some(days)},
		}
	}
	return out, nil
}
