package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundrank/internal/fund"
)

func snapshot(id fund.CNPJ, nav float64, holdings ...fund.Holding) map[fund.CNPJ]fund.HoldingsSnapshot {
	return map[fund.CNPJ]fund.HoldingsSnapshot{
		id: {FundID: id, Period: 202401, NAV: nav, Holdings: holdings},
	}
}

func TestConcentrationHHI(t *testing.T) {
	calc := NewConcentration()

	// Four equal positions covering the whole NAV: HHI = 4 * 0.25^2.
	snaps := snapshot(1, 1000,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryGovernment, PositionValue: 250},
		fund.Holding{InstrumentID: "b", Category: fund.CategoryGovernment, PositionValue: 250},
		fund.Holding{InstrumentID: "c", Category: fund.CategoryFixedIncome, PositionValue: 250},
		fund.Holding{InstrumentID: "d", Category: fund.CategoryFixedIncome, PositionValue: 250},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res := col[1]
	require.True(t, res.Value.Valid)
	assert.InDelta(t, 0.25, res.Value.Float64, 1e-12)
	assert.InDelta(t, 1.0, res.Aux[AuxTop10Pct].Float64, 1e-12)
	assert.Equal(t, 4.0, res.Aux[AuxNumHoldings].Float64)
}

func TestConcentrationLeakForcedToNull(t *testing.T) {
	calc := NewConcentration()

	// Position values exceeding NAV simulate the accounting-entry
	// leak: HHI computes above 1.0 and must be forced to null, not
	// clamped or passed downstream.
	snaps := snapshot(1, 100,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryGovernment, PositionValue: 150},
		fund.Holding{InstrumentID: "b", Category: fund.CategoryGovernment, PositionValue: 80},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res := col[1]
	assert.False(t, res.Value.Valid)
	assert.False(t, res.Aux[AuxTop10Pct].Valid)
	// The count survives for auditing.
	assert.Equal(t, 2.0, res.Aux[AuxNumHoldings].Float64)
}

func TestConcentrationBadNAVIsNull(t *testing.T) {
	calc := NewConcentration()

	for _, nav := range []float64{0, -500} {
		snaps := snapshot(1, nav,
			fund.Holding{InstrumentID: "a", Category: fund.CategoryGovernment, PositionValue: 100},
		)
		col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
		require.NoError(t, err)
		assert.False(t, col[1].Value.Valid)
	}
}

func TestConcentrationTop10(t *testing.T) {
	calc := NewConcentration()

	holdings := make([]fund.Holding, 0, 12)
	for i := 0; i < 12; i++ {
		holdings = append(holdings, fund.Holding{
			InstrumentID:  string(rune('a' + i)),
			Category:      fund.CategoryFixedIncome,
			PositionValue: 50,
		})
	}
	snaps := snapshot(1, 1000, holdings...)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res := col[1]
	// 10 of 12 equal positions of 5% each.
	assert.InDelta(t, 0.5, res.Aux[AuxTop10Pct].Float64, 1e-12)
}

func TestDiversificationCategoryHHI(t *testing.T) {
	calc := NewDiversification()

	// 60/40 split across two categories: HHI = 0.36 + 0.16.
	snaps := snapshot(1, 1000,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryGovernment, PositionValue: 300},
		fund.Holding{InstrumentID: "b", Category: fund.CategoryGovernment, PositionValue: 300},
		fund.Holding{InstrumentID: "c", Category: fund.CategoryPrivateCredit, PositionValue: 400},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res := col[1]
	require.True(t, res.Value.Valid)
	assert.InDelta(t, 0.52, res.Value.Float64, 1e-12)
	assert.InDelta(t, 0.6, res.Aux[AuxTopCategoryPct].Float64, 1e-12)
}

func TestDiversificationIgnoresUnknownCategories(t *testing.T) {
	calc := NewDiversification()

	snaps := snapshot(1, 1000,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryGovernment, PositionValue: 500},
		fund.Holding{InstrumentID: "b", Category: fund.AssetCategory("Mystery"), PositionValue: 500},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res := col[1]
	require.True(t, res.Value.Valid)
	// Only the known category remains: a single-category portfolio.
	assert.InDelta(t, 1.0, res.Value.Float64, 1e-12)
}

func TestDiversificationEmptyPortfolioIsNull(t *testing.T) {
	calc := NewDiversification()

	snaps := snapshot(1, 1000)
	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)
	assert.False(t, col[1].Value.Valid)
}

func TestCreditQualityBlend(t *testing.T) {
	calc, err := NewCreditQuality(DefaultCreditParams())
	require.NoError(t, err)

	// Two rated private credit positions (best rating and one unknown
	// string), one unrated, plus a government position that must be
	// ignored entirely.
	snaps := snapshot(1, 1000,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryPrivateCredit, PositionValue: 100, CreditRating: "brAAA"},
		fund.Holding{InstrumentID: "b", Category: fund.CategoryPrivateCredit, PositionValue: 100, CreditRating: "weird"},
		fund.Holding{InstrumentID: "c", Category: fund.CategoryPrivateCredit, PositionValue: 100},
		fund.Holding{InstrumentID: "d", Category: fund.CategoryGovernment, PositionValue: 700},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res, ok := col[1]
	require.True(t, ok)
	require.True(t, res.Value.Valid)

	// pct_rated = 1/3, avg score = 1.0 (brAAA is rank 1 of 20),
	// pct investment grade = 1.0 over the rated subset.
	assert.InDelta(t, 1.0/3.0, res.Aux[AuxPctRated].Float64, 1e-12)
	assert.InDelta(t, 1.0, res.Aux[AuxAvgRatingScore].Float64, 1e-12)
	assert.InDelta(t, 1.0, res.Aux[AuxPctInvestGrade].Float64, 1e-12)
	assert.InDelta(t, 0.4*(1.0/3.0)+0.4*1.0+0.2*1.0, res.Value.Float64, 1e-12)
}

func TestCreditQualityNotApplicableWithoutPrivateCredit(t *testing.T) {
	calc, err := NewCreditQuality(DefaultCreditParams())
	require.NoError(t, err)

	snaps := snapshot(1, 1000,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryGovernment, PositionValue: 1000},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	_, ok := col[1]
	assert.False(t, ok, "funds without private credit must not get a credit cell")
}

func TestCreditQualityBelowInvestmentGrade(t *testing.T) {
	params := DefaultCreditParams()
	calc, err := NewCreditQuality(params)
	require.NoError(t, err)

	snaps := snapshot(1, 1000,
		fund.Holding{InstrumentID: "a", Category: fund.CategoryPrivateCredit, PositionValue: 100, CreditRating: "brBB"},
	)

	col, err := calc.Calculate(context.Background(), &Inputs{Snapshots: snaps})
	require.NoError(t, err)

	res := col[1]
	assert.InDelta(t, 0.0, res.Aux[AuxPctInvestGrade].Float64, 1e-12)
}

func TestCreditParamsValidate(t *testing.T) {
	t.Run("bad threshold", func(t *testing.T) {
		p := DefaultCreditParams()
		p.InvestmentGradeThreshold = "AAA" // global scale, not in order
		_, err := NewCreditQuality(p)
		require.Error(t, err)
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		p := DefaultCreditParams()
		p.WeightPctRated = 0.9
		_, err := NewCreditQuality(p)
		require.Error(t, err)
	})
}
