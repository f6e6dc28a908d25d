package scoring

import (
	"fmt"
	"log/slog"
	"sort"

	"fundrank/internal/features"
	"fundrank/internal/fund"
)

// Profile is one investor risk appetite: a named weighting over a
// subset of the canonical features, with optional structural
// eligibility filters. Weights over used features must sum to 1.0;
// this is validated once at configuration time, not per fund.
type Profile struct {
	Name            string             `yaml:"name" json:"name" validate:"required"`
	Weights         map[string]float64 `yaml:"weights" json:"weights" validate:"required,min=1"`
	AllowedSubtypes []string           `yaml:"allowed_fund_subtypes,omitempty" json:"allowed_fund_subtypes,omitempty"`
	TargetInvestors []string           `yaml:"target_investor_profile,omitempty" json:"target_investor_profile,omitempty"`
	Gamma           float64            `yaml:"gamma,omitempty" json:"gamma,omitempty"`
}

// Validate fails fast on broken profile configuration: unknown feature
// names, negative weights, or weights not summing to 1.0.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if len(p.Weights) == 0 {
		return fmt.Errorf("profile %s has no weights", p.Name)
	}

	sum := 0.0
	for name, w := range p.Weights {
		if !features.IsKnown(name) {
			return fmt.Errorf("profile %s references unknown feature %q", p.Name, name)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("profile %s: weight for %s is %.4f, want [0,1]", p.Name, name, w)
		}
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("profile %s: weights sum to %.4f, want 1.0", p.Name, sum)
	}

	if p.Gamma < 0 || p.Gamma > 1 {
		return fmt.Errorf("profile %s: gamma %.4f outside [0,1]", p.Name, p.Gamma)
	}
	return nil
}

// gammaOrDefault treats the zero value as "penalty off".
func (p Profile) gammaOrDefault() float64 {
	if p.Gamma == 0 {
		return 1.0
	}
	return p.Gamma
}

// Eligible applies the profile's structural filters. A fund failing
// them never enters scoring for this profile, which is distinct from a
// guardrail failure after scoring.
func (p Profile) Eligible(c fund.Characteristics) bool {
	if len(p.AllowedSubtypes) > 0 && !containsString(p.AllowedSubtypes, c.Subtype) {
		return false
	}
	if len(p.TargetInvestors) > 0 && !containsString(p.TargetInvestors, c.TargetInvestor) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ScoreRow is one fund's composite score for one profile. Score is
// null only when every weighted feature is null for the fund.
type ScoreRow struct {
	FundID                fund.CNPJ          `json:"cnpj"`
	Profile               string             `json:"investor_profile"`
	Score                 fund.Value         `json:"score"`
	WeightsUsed           map[string]float64 `json:"weights_used"`
	PctFeaturesConsidered float64            `json:"pct_features_considered"`
}

// Scorer computes weighted composite scores per fund per profile.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a scorer.
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger}
}

// Score computes one row per structurally eligible fund for the given
// profile. Missing features shed their weight onto the remaining ones
// (renormalized to sum to 1.0); a fund with all weighted features null
// gets a null score.
func (s *Scorer) Score(rows []NormalizedRow, chars map[fund.CNPJ]fund.Characteristics, profile Profile) []ScoreRow {
	gamma := profile.gammaOrDefault()

	out := make([]ScoreRow, 0, len(rows))
	eligible := 0
	for _, row := range rows {
		c, ok := chars[row.FundID]
		if ok && !profile.Eligible(c) {
			continue
		}
		eligible++

		available := make(map[string]float64)
		availableWeight := 0.0
		for name, w := range profile.Weights {
			if w == 0 {
				continue
			}
			if row.Score(name).Valid {
				available[name] = w
				availableWeight += w
			}
		}

		sr := ScoreRow{
			FundID:  row.FundID,
			Profile: profile.Name,
			PctFeaturesConsidered: float64(len(available)) /
				float64(countPositiveWeights(profile.Weights)),
		}

		if availableWeight > 0 {
			weightsUsed := make(map[string]float64, len(available))
			score := 0.0
			for name, w := range available {
				renorm := w / availableWeight
				weightsUsed[name] = renorm
				score += renorm * row.Score(name).Float64
			}
			coverage := sr.PctFeaturesConsidered
			score *= gamma + (1-gamma)*coverage
			sr.Score = fund.Some(score)
			sr.WeightsUsed = weightsUsed
		}

		out = append(out, sr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FundID < out[j].FundID })

	s.logger.Info("scored profile",
		"profile", profile.Name,
		"eligible_funds", eligible,
		"scored_funds", len(out),
	)
	return out
}

func countPositiveWeights(weights map[string]float64) int {
	n := 0
	for _, w := range weights {
		if w > 0 {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// ScoreAll evaluates every profile against the same normalized table.
func (s *Scorer) ScoreAll(rows []NormalizedRow, chars map[fund.CNPJ]fund.Characteristics, profiles []Profile) []ScoreRow {
	out := make([]ScoreRow, 0, len(rows)*len(profiles))
	for _, p := range profiles {
		out = append(out, s.Score(rows, chars, p)...)
	}
	return out
}
