package features

import (
	"context"

	"fundrank/internal/fund"
)

// Diversification computes the HHI at asset-category granularity: the
// sum of squared category shares over the fund's latest holdings
// snapshot. Categories outside the eight predefined values are
// excluded before shares are computed. HHI above 1.0 is forced to
// null, as for concentration.
type Diversification struct{}

// NewDiversification creates the diversification calculator.
func NewDiversification() *Diversification {
	return &Diversification{}
}

// Name implements Calculator.
func (d *Diversification) Name() string { return FeatureDiversification }

// Calculate implements Calculator. The auxiliary column is the share
// of the largest asset category.
func (d *Diversification) Calculate(_ context.Context, in *Inputs) (Column, error) {
	out := make(Column, len(in.Snapshots))
	for id, snap := range in.Snapshots {
		out[id] = d.fundDiversification(snap)
	}
	return out, nil
}

func (d *Diversification) fundDiversification(snap fund.HoldingsSnapshot) Result {
	nullResult := Result{
		Value: fund.Null(),
		Aux:   map[string]fund.Value{AuxTopCategoryPct: fund.Null()},
	}

	categoryValues := make(map[fund.AssetCategory]float64)
	total := 0.0
	for _, h := range snap.Holdings {
		if !h.Category.IsKnown() {
			continue
		}
		categoryValues[h.Category] += h.PositionValue
		total += h.PositionValue
	}

	if total <= 0 || len(categoryValues) == 0 {
		return nullResult
	}

	hhi := 0.0
	topShare := 0.0
	for _, v := range categoryValues {
		share := v / total
		hhi += share * share
		if share > topShare {
			topShare = share
		}
	}

	if hhi > 1.0 || hhi <= 0 {
		return nullResult
	}

	return Result{
		Value: fund.Some(hhi),
		Aux:   map[string]fund.Value{AuxTopCategoryPct: fund.Some(topShare)},
	}
}
