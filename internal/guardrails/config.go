package guardrails

import (
	"fmt"

	"fundrank/internal/features"
)

// Toggle enables or disables one parameterless rule.
type Toggle struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// CountRule configures a minimum-count rule.
type CountRule struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	MinFunds int  `yaml:"min_funds" json:"min_funds"`
}

// FloorRule configures a minimum-value rule over a metric.
type FloorRule struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Min     float64 `yaml:"min" json:"min"`
}

// CeilingRule configures a maximum-magnitude rule.
type CeilingRule struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	MaxAbs  float64 `yaml:"max_abs" json:"max_abs"`
}

// Config is the full guardrail section of the run configuration. Each
// rule carries its own activation flag so operators can toggle rules
// without removing their parameters.
type Config struct {
	MinOfferPerIssuer CountRule   `yaml:"min_offer_per_issuer" json:"min_offer_per_issuer"`
	MinSharpe12M      FloorRule   `yaml:"min_sharpe_12m" json:"min_sharpe_12m"`
	MinSharpe3M       FloorRule   `yaml:"min_sharpe_3m" json:"min_sharpe_3m"`
	NoFundsWoManager  Toggle      `yaml:"no_funds_wo_manager" json:"no_funds_wo_manager"`
	OnlyActiveFunds   Toggle      `yaml:"include_only_active_funds" json:"include_only_active_funds"`
	NoExtremeReturns  CeilingRule `yaml:"no_extreme_returns" json:"no_extreme_returns"`
	MinDataCoverage   FloorRule   `yaml:"min_data_coverage" json:"min_data_coverage"`
}

// DefaultConfig returns the guardrail set active out of the box.
func DefaultConfig() Config {
	return Config{
		MinOfferPerIssuer: CountRule{Enabled: true, MinFunds: 5},
		MinSharpe12M:      FloorRule{Enabled: true, Min: 0.0},
		MinSharpe3M:       FloorRule{Enabled: true, Min: 0.0},
		NoFundsWoManager:  Toggle{Enabled: true},
		OnlyActiveFunds:   Toggle{Enabled: true},
		NoExtremeReturns:  CeilingRule{Enabled: true, MaxAbs: 0.2},
		MinDataCoverage:   FloorRule{Enabled: false, Min: 0.8},
	}
}

// Rules materializes the enabled rules in canonical evaluation order.
// Any invalid parameter fails here, before a single fund is touched.
func (c Config) Rules() ([]Rule, error) {
	var rules []Rule

	if c.MinOfferPerIssuer.Enabled {
		r, err := NewManagerFundCount(c.MinOfferPerIssuer.MinFunds)
		if err != nil {
			return nil, fmt.Errorf("build guardrails: %w", err)
		}
		rules = append(rules, r)
	}
	if c.MinSharpe12M.Enabled {
		r, err := NewMetricFloor(NameMinSharpe12M, features.AuxSharpe12M, c.MinSharpe12M.Min)
		if err != nil {
			return nil, fmt.Errorf("build guardrails: %w", err)
		}
		rules = append(rules, r)
	}
	if c.MinSharpe3M.Enabled {
		r, err := NewMetricFloor(NameMinSharpe3M, features.AuxSharpe3M, c.MinSharpe3M.Min)
		if err != nil {
			return nil, fmt.Errorf("build guardrails: %w", err)
		}
		rules = append(rules, r)
	}
	if c.NoFundsWoManager.Enabled {
		rules = append(rules, NewRequireManager())
	}
	if c.OnlyActiveFunds.Enabled {
		rules = append(rules, NewRequireActive())
	}
	if c.NoExtremeReturns.Enabled {
		r, err := NewExtremeReturns(c.NoExtremeReturns.MaxAbs)
		if err != nil {
			return nil, fmt.Errorf("build guardrails: %w", err)
		}
		rules = append(rules, r)
	}
	if c.MinDataCoverage.Enabled {
		r, err := NewMetricFloor(NameMinDataCoverage, features.AuxCoverage12M, c.MinDataCoverage.Min)
		if err != nil {
			return nil, fmt.Errorf("build guardrails: %w", err)
		}
		rules = append(rules, r)
	}

	return rules, nil
}
