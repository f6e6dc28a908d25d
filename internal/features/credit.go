package features

import (
	"context"
	"fmt"

	"fundrank/internal/fund"
)

// CreditParams configures the credit quality calculator. RatingOrder
// lists Brazilian national scale ratings best to worst; the aggregation
// blend weights are a modeling choice fixed here, not an implementation
// detail (weighted blend was chosen over worst-case; see DESIGN.md).
type CreditParams struct {
	RatingOrder              []string // e.g., brAAA .. brD, best first
	InvestmentGradeThreshold string   // worst rating still counted as investment grade
	WeightPctRated           float64  // blend weight for the rated share
	WeightAvgScore           float64  // blend weight for the mean ordinal score
	WeightInvestmentGrade    float64  // blend weight for the investment-grade share
}

// DefaultCreditParams returns the Brazilian national scale order with
// the 0.4/0.4/0.2 blend.
func DefaultCreditParams() CreditParams {
	return CreditParams{
		RatingOrder: []string{
			"brAAA", "brAA+", "brAA", "brAA-", "brA+", "brA", "brA-",
			"brBBB+", "brBBB", "brBBB-", "brBB+", "brBB", "brBB-",
			"brB+", "brB", "brB-", "brCCC", "brCC", "brC", "brD",
		},
		InvestmentGradeThreshold: "brBBB-",
		WeightPctRated:           0.4,
		WeightAvgScore:           0.4,
		WeightInvestmentGrade:    0.2,
	}
}

// Validate checks the rating order and blend weights.
func (p CreditParams) Validate() error {
	if len(p.RatingOrder) == 0 {
		return fmt.Errorf("credit rating order is empty")
	}
	if p.thresholdIndex() < 0 {
		return fmt.Errorf("investment grade threshold %q not in rating order", p.InvestmentGradeThreshold)
	}
	sum := p.WeightPctRated + p.WeightAvgScore + p.WeightInvestmentGrade
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("credit blend weights sum to %.4f, want 1.0", sum)
	}
	return nil
}

func (p CreditParams) thresholdIndex() int {
	for i, r := range p.RatingOrder {
		if r == p.InvestmentGradeThreshold {
			return i
		}
	}
	return -1
}

// CreditQuality maps private-credit instrument ratings to an ordinal
// score and blends rated share, mean score, and investment-grade share
// into one feature. Funds without private credit holdings get null —
// the feature does not apply, which is distinct from poor quality.
type CreditQuality struct {
	params      CreditParams
	ratingScore map[string]float64
	igRatings   map[string]bool
}

// NewCreditQuality creates the credit quality calculator.
func NewCreditQuality(params CreditParams) (*CreditQuality, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("credit params: %w", err)
	}

	n := len(params.RatingOrder)
	scores := make(map[string]float64, n)
	ig := make(map[string]bool, n)
	threshold := params.thresholdIndex()
	for i, rating := range params.RatingOrder {
		scores[rating] = float64(n-i) / float64(n)
		ig[rating] = i <= threshold
	}

	return &CreditQuality{params: params, ratingScore: scores, igRatings: ig}, nil
}

// Name implements Calculator.
func (c *CreditQuality) Name() string { return FeatureCreditQuality }

// Calculate implements Calculator. Only PrivateCredit holdings from
// the latest snapshot are considered; unknown rating strings count as
// unrated.
func (c *CreditQuality) Calculate(_ context.Context, in *Inputs) (Column, error) {
	out := make(Column, len(in.Snapshots))
	for id, snap := range in.Snapshots {
		res, applicable := c.fundCredit(snap)
		if !applicable {
			continue
		}
		out[id] = res
	}
	return out, nil
}

// fundCredit returns the blended credit score for one fund, or
// applicable=false when the fund holds no private credit.
func (c *CreditQuality) fundCredit(snap fund.HoldingsSnapshot) (Result, bool) {
	total := 0
	rated := 0
	investmentGrade := 0
	scoreSum := 0.0

	for _, h := range snap.Holdings {
		if h.Category != fund.CategoryPrivateCredit {
			continue
		}
		total++
		score, known := c.ratingScore[h.CreditRating]
		if !known {
			continue
		}
		rated++
		scoreSum += score
		if c.igRatings[h.CreditRating] {
			investmentGrade++
		}
	}

	if total == 0 {
		return Result{}, false
	}

	pctRated := float64(rated) / float64(total)

	avgScore := 0.0
	pctIG := 0.0
	if rated > 0 {
		avgScore = scoreSum / float64(rated)
		pctIG = float64(investmentGrade) / float64(rated)
	}

	blended := c.params.WeightPctRated*pctRated +
		c.params.WeightAvgScore*avgScore +
		c.params.WeightInvestmentGrade*pctIG

	return Result{
		Value: fund.Some(blended),
		Aux: map[string]fund.Value{
			AuxPctRated:       fund.Some(pctRated),
			AuxAvgRatingScore: fund.Some(avgScore),
			AuxPctInvestGrade: fund.Some(pctIG),
		},
	}, true
}
