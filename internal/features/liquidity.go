package features

import (
	"context"
	"fmt"
	"sort"

	"fundrank/internal/fund"
)

// LiquidityBucket maps a redemption settlement lag range to a score.
// A bucket covers lags up to and including MaxDays.
type LiquidityBucket struct {
	MaxDays int     `yaml:"max_days" json:"max_days"`
	Score   float64 `yaml:"score" json:"score"`
}

// DefaultLiquidityBuckets is the step function used when no buckets
// are configured: same-day settlement scores 1.0, the score decreases
// monotonically with the lag.
func DefaultLiquidityBuckets() []LiquidityBucket {
	return []LiquidityBucket{
		{MaxDays: 0, Score: 1.0},
		{MaxDays: 1, Score: 0.9},
		{MaxDays: 5, Score: 0.7},
		{MaxDays: 15, Score: 0.5},
		{MaxDays: 30, Score: 0.3},
		{MaxDays: 90, Score: 0.1},
	}
}

// Liquidity maps each fund's redemption settlement lag to a score via
// a configured step function over day buckets. Lags beyond the last
// bucket score 0.
type Liquidity struct {
	buckets []LiquidityBucket
}

// NewLiquidity creates the liquidity calculator. Buckets must be
// strictly increasing in MaxDays and strictly decreasing in Score.
func NewLiquidity(buckets []LiquidityBucket) (*Liquidity, error) {
	if len(buckets) == 0 {
		buckets = DefaultLiquidityBuckets()
	}

	sorted := make([]LiquidityBucket, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MaxDays < sorted[j].MaxDays })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].MaxDays == sorted[i-1].MaxDays {
			return nil, fmt.Errorf("duplicate liquidity bucket at %d days", sorted[i].MaxDays)
		}
		if sorted[i].Score >= sorted[i-1].Score {
			return nil, fmt.Errorf("liquidity buckets must be monotonically decreasing: bucket %d days has score %.2f >= %.2f",
				sorted[i].MaxDays, sorted[i].Score, sorted[i-1].Score)
		}
	}
	for _, b := range sorted {
		if b.Score < 0 || b.Score > 1 {
			return nil, fmt.Errorf("liquidity bucket score %.2f outside [0,1]", b.Score)
		}
	}

	return &Liquidity{buckets: sorted}, nil
}

// Name implements Calculator.
func (l *Liquidity) Name() string { return FeatureLiquidity }

// Calculate implements Calculator. Funds without characteristics or
// with a negative redemption lag get a null cell.
func (l *Liquidity) Calculate(_ context.Context, in *Inputs) (Column, error) {
	out := make(Column, len(in.Characteristics))
	for id, c := range in.Characteristics {
		out[id] = Result{Value: l.score(c.RedemptionDays)}
	}
	return out, nil
}

// score resolves the bucket for a redemption lag.
func (l *Liquidity) score(redemptionDays int) fund.Value {
	if redemptionDays < 0 {
		return fund.Null()
	}
	for _, b := range l.buckets {
		if redemptionDays <= b.MaxDays {
			return fund.Some(b.Score)
		}
	}
	return fund.Some(0)
}
