// Package scoring rescales merged feature rows into bounded [0,1]
// scores and combines them into per-profile composite scores.
package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fundrank/internal/features"
	"fundrank/internal/fund"
)

// NormalizeParams configures percentile-based normalization.
type NormalizeParams struct {
	LowerPercentile  float64 // e.g., 0.05
	UpperPercentile  float64 // e.g., 0.95
	UseLogVolatility bool    // apply log1p to volatility before scaling
}

// Validate checks the percentile bounds.
func (p NormalizeParams) Validate() error {
	if p.LowerPercentile < 0 || p.UpperPercentile > 1 || p.LowerPercentile >= p.UpperPercentile {
		return fmt.Errorf("invalid percentile bounds [%.3f, %.3f]", p.LowerPercentile, p.UpperPercentile)
	}
	return nil
}

// lowerIsBetter lists the features inverted after rescaling so that
// 1.0 always means "preferred by any profile that weights it".
var lowerIsBetter = map[string]bool{
	features.FeatureVolatility:      true,
	features.FeatureConcentration:   true,
	features.FeatureDiversification: true,
}

// NormalizedRow is a feature row after percentile clipping, rescaling
// to [0,1], and direction inversion. Null cells stay null — never
// imputed, since that would silently penalize funds with legitimately
// missing data.
type NormalizedRow struct {
	FundID fund.CNPJ             `json:"cnpj"`
	Scores map[string]fund.Value `json:"scores"`
}

// Score returns the named normalized cell, null for unknown names.
func (r NormalizedRow) Score(name string) fund.Value {
	return r.Scores[name]
}

// Normalizer rescales each feature column independently using
// empirical percentile bounds computed once per run over the full
// eligible population.
type Normalizer struct {
	params NormalizeParams
	logger *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(params NormalizeParams, logger *slog.Logger) (*Normalizer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("normalize params: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{params: params, logger: logger}, nil
}

// Normalize produces one normalized row per input row. The percentile
// bounds for every feature are computed over the whole population
// before any fund's value is finalized.
func (n *Normalizer) Normalize(rows []features.Row) []NormalizedRow {
	out := make([]NormalizedRow, len(rows))
	for i, row := range rows {
		out[i] = NormalizedRow{
			FundID: row.FundID,
			Scores: make(map[string]fund.Value, len(features.Names())),
		}
	}

	for _, name := range features.Names() {
		column := make([]fund.Value, len(rows))
		for i, row := range rows {
			column[i] = n.transform(name, row.Feature(name))
		}

		scaled := n.scaleColumn(name, column)
		for i := range rows {
			out[i].Scores[name] = scaled[i]
		}
	}
	return out
}

// transform applies the configured pre-scaling transform for a
// feature.
func (n *Normalizer) transform(name string, v fund.Value) fund.Value {
	if !v.Valid {
		return v
	}
	if name == features.FeatureVolatility && n.params.UseLogVolatility {
		return fund.Some(math.Log1p(v.Float64))
	}
	return v
}

// scaleColumn clips one feature column to its empirical percentile
// bounds, rescales to [0,1], and inverts lower-is-better features.
func (n *Normalizer) scaleColumn(name string, column []fund.Value) []fund.Value {
	observed := make([]float64, 0, len(column))
	for _, v := range column {
		if v.Valid {
			observed = append(observed, v.Float64)
		}
	}

	out := make([]fund.Value, len(column))
	if len(observed) == 0 {
		for i := range out {
			out[i] = fund.Null()
		}
		return out
	}

	sort.Float64s(observed)
	lower := stat.Quantile(n.params.LowerPercentile, stat.LinInterp, observed, nil)
	upper := stat.Quantile(n.params.UpperPercentile, stat.LinInterp, observed, nil)

	degenerate := math.Abs(upper-lower) < 1e-12
	if degenerate {
		n.logger.Debug("degenerate percentile spread, scoring midpoint",
			"feature", name,
			"bound", lower,
		)
	}

	invert := lowerIsBetter[name]
	for i, v := range column {
		if !v.Valid {
			out[i] = fund.Null()
			continue
		}

		var scaled float64
		if degenerate {
			scaled = 0.5
		} else {
			clipped := math.Min(math.Max(v.Float64, lower), upper)
			scaled = (clipped - lower) / (upper - lower)
			if invert {
				scaled = 1.0 - scaled
			}
		}
		out[i] = fund.Some(scaled)
	}
	return out
}
