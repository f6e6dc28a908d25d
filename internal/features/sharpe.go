package features

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"fundrank/internal/fund"
)

// SharpeParams configures the Sharpe calculator. The clipping band and
// the volatility epsilon are modeling choices and deliberately live in
// configuration rather than as hidden constants.
type SharpeParams struct {
	RiskFreeAnnual    float64 // annual risk-free rate (e.g., 0.1371 for CDI)
	Window12M         int     // trading days in the long window
	Window3M          int     // trading days in the short window
	AnnualizationDays int     // trading-day convention
	EpsilonVolatility float64 // below this volatility the ratio is null
	Cap               float64 // symmetric clipping band, e.g., 20 for [-20, +20]
}

// Sharpe computes annualized Sharpe ratios per window using that
// window's own volatility. Near-zero volatility (common for sovereign
// trackers) yields null instead of a near-infinite ratio; finite
// ratios are clipped to the configured band.
type Sharpe struct {
	params SharpeParams
}

// NewSharpe creates the Sharpe calculator.
func NewSharpe(params SharpeParams) *Sharpe {
	return &Sharpe{params: params}
}

// Name implements Calculator.
func (s *Sharpe) Name() string { return FeatureSharpe }

// Calculate implements Calculator. The canonical value is the 12-month
// Sharpe with 3-month fallback when the long window is null; both raw
// windows and their coverage ratios are auxiliary columns.
func (s *Sharpe) Calculate(_ context.Context, in *Inputs) (Column, error) {
	byFund := groupDailyReturns(in.Daily, in.AsOf)
	rfDaily := math.Pow(1+s.params.RiskFreeAnnual, 1/float64(s.params.AnnualizationDays)) - 1

	out := make(Column, len(byFund))
	for id, rets := range byFund {
		sharpe12, cov12 := s.windowSharpe(rets, s.params.Window12M, rfDaily)
		sharpe3, cov3 := s.windowSharpe(rets, s.params.Window3M, rfDaily)

		selected := sharpe12
		if !selected.Valid {
			selected = sharpe3
		}

		out[id] = Result{
			Value: selected,
			Aux: map[string]fund.Value{
				AuxSharpe12M:   sharpe12,
				AuxSharpe3M:    sharpe3,
				AuxCoverage12M: fund.Some(cov12),
				AuxCoverage3M:  fund.Some(cov3),
			},
		}
	}
	return out, nil
}

// windowSharpe computes the clipped Sharpe ratio for the trailing n
// returns, plus the observed-day coverage ratio.
func (s *Sharpe) windowSharpe(rets []float64, n int, rfDaily float64) (fund.Value, float64) {
	window := lastN(rets, n)
	coverage := float64(len(window)) / float64(n)

	if len(window) < 2 {
		return fund.Null(), coverage
	}

	excess := make([]float64, len(window))
	for i, r := range window {
		excess[i] = r - rfDaily
	}

	annualized := float64(s.params.AnnualizationDays)
	meanExcess := stat.Mean(excess, nil) * annualized
	vol := stat.StdDev(window, nil) * math.Sqrt(annualized)

	if math.IsNaN(vol) || math.IsInf(vol, 0) || vol <= s.params.EpsilonVolatility {
		return fund.Null(), coverage
	}
	if math.IsNaN(meanExcess) || math.IsInf(meanExcess, 0) {
		return fund.Null(), coverage
	}

	ratio := meanExcess / vol
	if ratio > s.params.Cap {
		ratio = s.params.Cap
	}
	if ratio < -s.params.Cap {
		ratio = -s.params.Cap
	}
	return fund.Some(ratio), coverage
}
