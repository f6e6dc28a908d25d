package features

import (
	"context"
	"sort"

	"fundrank/internal/fund"
)

// Concentration computes the instrument-level Herfindahl-Hirschman
// Index over each fund's latest holdings snapshot: the sum of squared
// position shares of NAV. A computed HHI above 1.0 indicates a
// holdings-classification leak (accounting entries miscounted as
// positions) and is forced to null rather than clamped, so downstream
// never treats a known-bad measurement as a legitimate extreme.
type Concentration struct{}

// NewConcentration creates the concentration calculator.
func NewConcentration() *Concentration {
	return &Concentration{}
}

// Name implements Calculator.
func (c *Concentration) Name() string { return FeatureConcentration }

// Calculate implements Calculator. Auxiliary columns: share of NAV in
// the top 10 positions and the number of holdings.
func (c *Concentration) Calculate(_ context.Context, in *Inputs) (Column, error) {
	out := make(Column, len(in.Snapshots))
	for id, snap := range in.Snapshots {
		out[id] = c.fundConcentration(snap)
	}
	return out, nil
}

func (c *Concentration) fundConcentration(snap fund.HoldingsSnapshot) Result {
	nullResult := Result{
		Value: fund.Null(),
		Aux: map[string]fund.Value{
			AuxTop10Pct:    fund.Null(),
			AuxNumHoldings: fund.Null(),
		},
	}

	if snap.NAV <= 0 || len(snap.Holdings) == 0 {
		return nullResult
	}

	shares := make([]float64, 0, len(snap.Holdings))
	hhi := 0.0
	for _, h := range snap.Holdings {
		share := h.PositionValue / snap.NAV
		shares = append(shares, share)
		hhi += share * share
	}

	if hhi > 1.0 || hhi <= 0 {
		// Known-bad measurement: null, not a clamp. The holdings count
		// is still reported for auditing.
		nullResult.Aux[AuxNumHoldings] = fund.Some(float64(len(snap.Holdings)))
		return nullResult
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(shares)))
	top10 := 0.0
	for i, s := range shares {
		if i >= 10 {
			break
		}
		top10 += s
	}

	return Result{
		Value: fund.Some(hhi),
		Aux: map[string]fund.Value{
			AuxTop10Pct:    fund.Some(top10),
			AuxNumHoldings: fund.Some(float64(len(snap.Holdings))),
		},
	}
}
