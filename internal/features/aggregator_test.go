package features

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundrank/internal/fund"
)

// stubCalculator returns a fixed column under a canonical name.
type stubCalculator struct {
	name string
	col  Column
	err  error
	boom bool
}

func (s *stubCalculator) Name() string { return s.name }

func (s *stubCalculator) Calculate(context.Context, *Inputs) (Column, error) {
	if s.boom {
		panic("corrupt snapshot")
	}
	return s.col, s.err
}

func activeFunds(ids ...fund.CNPJ) map[fund.CNPJ]fund.Characteristics {
	out := make(map[fund.CNPJ]fund.Characteristics, len(ids))
	for _, id := range ids {
		out[id] = fund.Characteristics{FundID: id, IsActive: true}
	}
	return out
}

func TestAggregatorOuterJoin(t *testing.T) {
	agg, err := NewAggregator([]Calculator{
		&stubCalculator{name: FeatureVolatility, col: Column{
			1: {Value: fund.Some(0.1)},
			2: {Value: fund.Some(0.2)},
		}},
		&stubCalculator{name: FeatureLiquidity, col: Column{
			1: {Value: fund.Some(0.9)},
			// fund 2 has no liquidity cell
		}},
	}, nil)
	require.NoError(t, err)

	rows, err := agg.Merge(context.Background(), &Inputs{
		AsOf:            time.Now(),
		Characteristics: activeFunds(2, 1),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Deterministic order by fund id.
	assert.Equal(t, fund.CNPJ(1), rows[0].FundID)
	assert.Equal(t, fund.CNPJ(2), rows[1].FundID)

	// Fund 2 keeps its volatility despite the missing liquidity cell.
	assert.True(t, rows[1].Feature(FeatureVolatility).Valid)
	assert.False(t, rows[1].Feature(FeatureLiquidity).Valid)
}

func TestAggregatorExcludesInactiveFunds(t *testing.T) {
	agg, err := NewAggregator([]Calculator{
		&stubCalculator{name: FeatureVolatility, col: Column{1: {Value: fund.Some(0.1)}}},
	}, nil)
	require.NoError(t, err)

	chars := activeFunds(1)
	chars[2] = fund.Characteristics{FundID: 2, IsActive: false}

	rows, err := agg.Merge(context.Background(), &Inputs{Characteristics: chars})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fund.CNPJ(1), rows[0].FundID)
}

func TestAggregatorPanicDegradesToNullColumn(t *testing.T) {
	agg, err := NewAggregator([]Calculator{
		&stubCalculator{name: FeatureConcentration, boom: true},
		&stubCalculator{name: FeatureVolatility, col: Column{1: {Value: fund.Some(0.1)}}},
	}, nil)
	require.NoError(t, err)

	rows, err := agg.Merge(context.Background(), &Inputs{Characteristics: activeFunds(1)})
	require.NoError(t, err, "a panicking calculator must not abort the run")
	require.Len(t, rows, 1)

	assert.False(t, rows[0].Feature(FeatureConcentration).Valid)
	assert.True(t, rows[0].Feature(FeatureVolatility).Valid)
}

func TestAggregatorHHISanitizedAtMerge(t *testing.T) {
	// A misbehaving calculator emitting HHI > 1 must be caught at the
	// merge boundary even if its own guardrail failed.
	agg, err := NewAggregator([]Calculator{
		&stubCalculator{name: FeatureConcentration, col: Column{1: {Value: fund.Value{Float64: 1.7, Valid: true}}}},
		&stubCalculator{name: FeatureDiversification, col: Column{1: {Value: fund.Value{Float64: -0.2, Valid: true}}}},
		&stubCalculator{name: FeatureSharpe, col: Column{1: {Value: fund.Some(1.7)}}},
	}, nil)
	require.NoError(t, err)

	rows, err := agg.Merge(context.Background(), &Inputs{Characteristics: activeFunds(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.False(t, rows[0].Feature(FeatureConcentration).Valid)
	assert.False(t, rows[0].Feature(FeatureDiversification).Valid)
	// Non-HHI features above 1.0 are legitimate.
	assert.True(t, rows[0].Feature(FeatureSharpe).Valid)
}

func TestNewAggregatorRejectsBadRegistrations(t *testing.T) {
	_, err := NewAggregator([]Calculator{&stubCalculator{name: "momentum"}}, nil)
	require.Error(t, err, "unknown feature name")

	_, err = NewAggregator([]Calculator{
		&stubCalculator{name: FeatureSharpe},
		&stubCalculator{name: FeatureSharpe},
	}, nil)
	require.Error(t, err, "duplicate feature name")
}

func TestAggregatorByName(t *testing.T) {
	vol := &stubCalculator{name: FeatureVolatility}
	agg, err := NewAggregator([]Calculator{vol}, nil)
	require.NoError(t, err)

	got, ok := agg.ByName(FeatureVolatility)
	require.True(t, ok)
	assert.Equal(t, vol, got)

	_, ok = agg.ByName(FeatureSharpe)
	assert.False(t, ok)
}
