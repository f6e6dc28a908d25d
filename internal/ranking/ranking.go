// Package ranking orders scored funds per profile and selects the
// shortlist. Ordering is total and deterministic so that re-runs on
// identical input produce byte-identical output.
package ranking

import (
	"fmt"
	"log/slog"
	"sort"

	"fundrank/internal/fund"
	"fundrank/internal/scoring"
)

// ShortlistEntry is one ranked fund for one profile. Rank is
// profile-local, dense, starting at 1.
type ShortlistEntry struct {
	FundID   fund.CNPJ `json:"cnpj"`
	Profile  string    `json:"profile"`
	Rank     int       `json:"rank"`
	Score    float64   `json:"score"`
	FundName string    `json:"fund_name"`
}

// Ranker produces per-profile rankings from the score table.
type Ranker struct {
	topN   int
	logger *slog.Logger
}

// NewRanker builds a ranker selecting the top n funds per profile.
func NewRanker(topN int, logger *slog.Logger) (*Ranker, error) {
	if topN < 1 {
		return nil, fmt.Errorf("ranker: top N %d must be >= 1", topN)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{topN: topN, logger: logger}, nil
}

// Rank orders one profile's scored funds, excluding null scores and
// funds with any guardrail failure, and returns the complete ranked
// table. Ties on score break by fund id ascending so the order is
// total.
func (r *Ranker) Rank(scores []scoring.ScoreRow, failures map[fund.CNPJ][]string, chars map[fund.CNPJ]fund.Characteristics) []ShortlistEntry {
	survivors := make([]scoring.ScoreRow, 0, len(scores))
	for _, s := range scores {
		if !s.Score.Valid {
			continue
		}
		if len(failures[s.FundID]) > 0 {
			continue
		}
		survivors = append(survivors, s)
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].Score.Float64 != survivors[j].Score.Float64 {
			return survivors[i].Score.Float64 > survivors[j].Score.Float64
		}
		return survivors[i].FundID < survivors[j].FundID
	})

	out := make([]ShortlistEntry, 0, len(survivors))
	for i, s := range survivors {
		out = append(out, ShortlistEntry{
			FundID:   s.FundID,
			Profile:  s.Profile,
			Rank:     i + 1,
			Score:    s.Score.Float64,
			FundName: displayName(chars, s.FundID),
		})
	}

	if len(scores) > 0 {
		r.logger.Info("ranked profile",
			"profile", scores[0].Profile,
			"scored", len(scores),
			"ranked", len(out),
		)
	}
	return out
}

// Shortlist returns the top N entries of a ranked table.
func (r *Ranker) Shortlist(ranked []ShortlistEntry) []ShortlistEntry {
	if len(ranked) <= r.topN {
		return ranked
	}
	return ranked[:r.topN]
}

func displayName(chars map[fund.CNPJ]fund.Characteristics, id fund.CNPJ) string {
	if c, ok := chars[id]; ok && c.CommercialName != "" {
		return c.CommercialName
	}
	return id.String()
}
