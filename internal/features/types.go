// Package features holds the seven per-fund feature calculators and
// the aggregator that merges their columns into one row per fund.
// Every calculator is a pure function of its inputs; one fund's bad
// data degrades to a null cell, never an aborted run.
package features

import (
	"context"
	"time"

	"fundrank/internal/fund"
	"fundrank/internal/returns"
)

// Canonical feature names. Profiles and guardrails reference features
// by these identifiers; they are part of the configuration surface.
const (
	FeatureVolatility      = "volatility"
	FeatureSharpe          = "sharpe"
	FeatureLiquidity       = "liquidity"
	FeatureConcentration   = "concentration"
	FeatureDiversification = "asset_diversification"
	FeatureCreditQuality   = "credit_quality"
	FeatureFundAge         = "fund_age"
)

// Names lists the canonical feature names in stable order.
func Names() []string {
	return []string{
		FeatureVolatility,
		FeatureSharpe,
		FeatureLiquidity,
		FeatureConcentration,
		FeatureDiversification,
		FeatureCreditQuality,
		FeatureFundAge,
	}
}

// IsKnown reports whether name is a canonical feature name.
func IsKnown(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Auxiliary column names emitted alongside the canonical features.
// Guardrails may reference these (e.g., minimum 12-month Sharpe).
const (
	AuxVolatility3M   = "volatility_3m"
	AuxSharpe12M      = "sharpe_12m"
	AuxSharpe3M       = "sharpe_3m"
	AuxCoverage12M    = "pct_cov_12m"
	AuxCoverage3M     = "pct_cov_3m"
	AuxTop10Pct       = "concentration_top10_pct"
	AuxNumHoldings    = "concentration_num_holdings"
	AuxTopCategoryPct = "top_category_pct"
	AuxPctRated       = "pct_rated"
	AuxAvgRatingScore = "avg_rating_score"
	AuxPctInvestGrade = "pct_investment_grade"
	AuxFundAgeDays    = "fund_age_days"
)

// AuxNames lists the auxiliary column names in stable order.
func AuxNames() []string {
	return []string{
		AuxVolatility3M,
		AuxSharpe12M,
		AuxSharpe3M,
		AuxCoverage12M,
		AuxCoverage3M,
		AuxTop10Pct,
		AuxNumHoldings,
		AuxTopCategoryPct,
		AuxPctRated,
		AuxAvgRatingScore,
		AuxPctInvestGrade,
		AuxFundAgeDays,
	}
}

// IsKnownMetric reports whether name is a canonical feature or an
// auxiliary column name.
func IsKnownMetric(name string) bool {
	if IsKnown(name) {
		return true
	}
	for _, n := range AuxNames() {
		if n == name {
			return true
		}
	}
	return false
}

// Inputs is the read-only table bundle every calculator consumes.
// Each calculator uses the subset it needs.
type Inputs struct {
	AsOf            time.Time
	Daily           []returns.DailyReturn
	Monthly         []returns.MonthlyReturn
	Snapshots       map[fund.CNPJ]fund.HoldingsSnapshot
	Characteristics map[fund.CNPJ]fund.Characteristics
}

// Result is one calculator's output for one fund: the canonical
// feature value plus named auxiliary columns.
type Result struct {
	Value fund.Value
	Aux   map[string]fund.Value
}

// Column maps fund id to a calculator result.
type Column map[fund.CNPJ]Result

// Calculator computes one feature column for the whole population.
// Implementations are registered by canonical name and must not mutate
// their inputs.
type Calculator interface {
	Name() string
	Calculate(ctx context.Context, in *Inputs) (Column, error)
}

// Row is the merged feature record for one fund. Features holds the
// seven canonical columns; Aux holds the audit sub-metrics. Any cell
// may be null.
type Row struct {
	FundID   fund.CNPJ             `json:"cnpj"`
	Features map[string]fund.Value `json:"features"`
	Aux      map[string]fund.Value `json:"aux,omitempty"`
}

// Feature returns the named canonical feature cell, null for unknown
// names.
func (r Row) Feature(name string) fund.Value {
	return r.Features[name]
}

// AuxValue returns the named auxiliary cell, null when absent.
func (r Row) AuxValue(name string) fund.Value {
	return r.Aux[name]
}

// Metric returns the named cell, checking canonical features first and
// auxiliary columns second.
func (r Row) Metric(name string) fund.Value {
	if v, ok := r.Features[name]; ok {
		return v
	}
	return r.Aux[name]
}
