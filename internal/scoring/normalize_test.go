package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundrank/internal/features"
	"fundrank/internal/fund"
)

func featureRows(name string, values ...fund.Value) []features.Row {
	rows := make([]features.Row, len(values))
	for i, v := range values {
		rows[i] = features.Row{
			FundID:   fund.CNPJ(i + 1),
			Features: map[string]fund.Value{name: v},
		}
	}
	return rows
}

func defaultNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(NormalizeParams{LowerPercentile: 0.05, UpperPercentile: 0.95}, nil)
	require.NoError(t, err)
	return n
}

func TestNormalizeBoundsAndDirection(t *testing.T) {
	n := defaultNormalizer(t)

	values := make([]fund.Value, 0, 100)
	for i := 1; i <= 100; i++ {
		values = append(values, fund.Some(float64(i)))
	}

	t.Run("higher is better", func(t *testing.T) {
		rows := featureRows(features.FeatureSharpe, values...)
		out := n.Normalize(rows)

		for _, row := range out {
			v := row.Score(features.FeatureSharpe)
			require.True(t, v.Valid)
			assert.GreaterOrEqual(t, v.Float64, 0.0)
			assert.LessOrEqual(t, v.Float64, 1.0)
		}
		// The largest raw value maps to 1.0 (clipped at the upper
		// percentile), the smallest to 0.0.
		assert.Equal(t, 0.0, out[0].Score(features.FeatureSharpe).Float64)
		assert.Equal(t, 1.0, out[99].Score(features.FeatureSharpe).Float64)
	})

	t.Run("lower is better is inverted", func(t *testing.T) {
		rows := featureRows(features.FeatureVolatility, values...)
		out := n.Normalize(rows)

		assert.Equal(t, 1.0, out[0].Score(features.FeatureVolatility).Float64,
			"lowest volatility must score best")
		assert.Equal(t, 0.0, out[99].Score(features.FeatureVolatility).Float64)
	})
}

func TestNormalizeClipsOutliers(t *testing.T) {
	n := defaultNormalizer(t)

	values := make([]fund.Value, 0, 101)
	for i := 0; i < 100; i++ {
		values = append(values, fund.Some(float64(i)))
	}
	// An extreme outlier far above the 95th percentile.
	values = append(values, fund.Some(1e9))

	rows := featureRows(features.FeatureSharpe, values...)
	out := n.Normalize(rows)

	outlier := out[100].Score(features.FeatureSharpe)
	require.True(t, outlier.Valid)
	assert.Equal(t, 1.0, outlier.Float64, "outlier clips to the bound, it does not stretch the scale")

	// A mid-population value keeps a sensible mid score rather than
	// collapsing toward zero.
	mid := out[50].Score(features.FeatureSharpe)
	assert.Greater(t, mid.Float64, 0.3)
	assert.Less(t, mid.Float64, 0.7)
}

func TestNormalizeNullStaysNull(t *testing.T) {
	n := defaultNormalizer(t)

	rows := featureRows(features.FeatureSharpe,
		fund.Some(1), fund.Null(), fund.Some(2), fund.Some(3))
	out := n.Normalize(rows)

	assert.False(t, out[1].Score(features.FeatureSharpe).Valid,
		"nulls are never imputed to zero or the mean")
	assert.True(t, out[0].Score(features.FeatureSharpe).Valid)
}

func TestNormalizeDegenerateSpread(t *testing.T) {
	n := defaultNormalizer(t)

	rows := featureRows(features.FeatureLiquidity,
		fund.Some(0.7), fund.Some(0.7), fund.Some(0.7), fund.Null())
	out := n.Normalize(rows)

	for i := 0; i < 3; i++ {
		v := out[i].Score(features.FeatureLiquidity)
		require.True(t, v.Valid)
		assert.Equal(t, 0.5, v.Float64)
	}
	assert.False(t, out[3].Score(features.FeatureLiquidity).Valid)
}

func TestNormalizeLogVolatility(t *testing.T) {
	params := NormalizeParams{LowerPercentile: 0.0, UpperPercentile: 1.0, UseLogVolatility: true}
	n, err := NewNormalizer(params, nil)
	require.NoError(t, err)

	rows := featureRows(features.FeatureVolatility,
		fund.Some(0.0), fund.Some(math.E-1))
	out := n.Normalize(rows)

	// log1p maps the inputs to 0 and 1; after inversion the low
	// volatility fund scores 1.0.
	assert.Equal(t, 1.0, out[0].Score(features.FeatureVolatility).Float64)
	assert.Equal(t, 0.0, out[1].Score(features.FeatureVolatility).Float64)
}

func TestNormalizeAllNullColumn(t *testing.T) {
	n := defaultNormalizer(t)

	rows := featureRows(features.FeatureCreditQuality, fund.Null(), fund.Null())
	out := n.Normalize(rows)

	for _, row := range out {
		assert.False(t, row.Score(features.FeatureCreditQuality).Valid)
	}
}

func TestNormalizeParamsValidate(t *testing.T) {
	assert.Error(t, NormalizeParams{LowerPercentile: 0.95, UpperPercentile: 0.05}.Validate())
	assert.Error(t, NormalizeParams{LowerPercentile: -0.1, UpperPercentile: 0.95}.Validate())
	assert.Error(t, NormalizeParams{LowerPercentile: 0.05, UpperPercentile: 1.5}.Validate())
	assert.NoError(t, NormalizeParams{LowerPercentile: 0.05, UpperPercentile: 0.95}.Validate())
}
