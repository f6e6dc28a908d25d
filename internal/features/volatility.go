package features

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"fundrank/internal/fund"
	"fundrank/internal/returns"
)

// VolatilityParams configures the volatility calculator. Windows are
// fixed trading-day counts, not calendar months, so weekends and
// holidays do not skew the estimate.
type VolatilityParams struct {
	Window12M         int     // trading days in the long window (e.g., 252)
	Window3M          int     // trading days in the short window (e.g., 63)
	AnnualizationDays int     // trading-day convention for sqrt() annualization
	MinCoverage       float64 // minimum observed-day ratio within a window
}

// Volatility computes the annualized standard deviation of daily
// returns over trailing trading-day windows. Below the coverage
// threshold the value is null (insufficient data), not zero.
type Volatility struct {
	params VolatilityParams
}

// NewVolatility creates the volatility calculator.
func NewVolatility(params VolatilityParams) *Volatility {
	return &Volatility{params: params}
}

// Name implements Calculator.
func (v *Volatility) Name() string { return FeatureVolatility }

// Calculate implements Calculator. The canonical value is the 12-month
// window volatility; the 3-month value and both coverage ratios are
// emitted as auxiliary columns.
func (v *Volatility) Calculate(_ context.Context, in *Inputs) (Column, error) {
	byFund := groupDailyReturns(in.Daily, in.AsOf)

	out := make(Column, len(byFund))
	for id, rets := range byFund {
		vol12, cov12 := v.windowVolatility(rets, v.params.Window12M)
		vol3, cov3 := v.windowVolatility(rets, v.params.Window3M)

		out[id] = Result{
			Value: vol12,
			Aux: map[string]fund.Value{
				AuxVolatility3M: vol3,
				AuxCoverage12M:  fund.Some(cov12),
				AuxCoverage3M:   fund.Some(cov3),
			},
		}
	}
	return out, nil
}

// windowVolatility computes annualized volatility over the last n
// returns and the observed-day coverage ratio for that window.
func (v *Volatility) windowVolatility(rets []float64, n int) (fund.Value, float64) {
	window := lastN(rets, n)
	coverage := float64(len(window)) / float64(n)

	if len(window) < 2 || coverage < v.params.MinCoverage {
		return fund.Null(), coverage
	}

	sd := stat.StdDev(window, nil)
	return fund.Some(sd * math.Sqrt(float64(v.params.AnnualizationDays))), coverage
}

// groupDailyReturns buckets daily returns per fund, restricted to
// dates at or before asOf, in chronological order.
func groupDailyReturns(daily []returns.DailyReturn, asOf time.Time) map[fund.CNPJ][]float64 {
	cutoff := asOf.Format("2006-01-02")

	type dated struct {
		date string
		ret  float64
	}
	tmp := make(map[fund.CNPJ][]dated)
	for _, r := range daily {
		if r.Date > cutoff {
			continue
		}
		tmp[r.FundID] = append(tmp[r.FundID], dated{date: r.Date, ret: r.Return})
	}

	out := make(map[fund.CNPJ][]float64, len(tmp))
	for id, rows := range tmp {
		sort.Slice(rows, func(i, j int) bool { return rows[i].date < rows[j].date })
		rets := make([]float64, len(rows))
		for i, row := range rows {
			rets[i] = row.ret
		}
		out[id] = rets
	}
	return out
}

// lastN returns the trailing n elements, or all of them when fewer
// exist.
func lastN(s []float64, n int) []float64 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
