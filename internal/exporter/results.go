package exporter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fundrank/internal/features"
	"fundrank/internal/fund"
	"fundrank/internal/guardrails"
	"fundrank/internal/ranking"
	"fundrank/internal/scoring"
)

// Output file names under the output directory.
const (
	ShortlistFile = "shortlist.csv"
	ScoresFile    = "scores.csv"
	AuditFile     = "guardrail_audit.csv"
	FeaturesFile  = "features.csv"
)

// WriteShortlist writes the combined per-profile shortlist table.
func (w *CSVWriter) WriteShortlist(entries []ranking.ShortlistEntry) error {
	headers := []string{"profile", "rank", "cnpj", "fund_name", "score"}
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			e.Profile,
			strconv.Itoa(e.Rank),
			e.FundID.String(),
			e.FundName,
			formatScore(e.Score),
		})
	}
	return w.WriteCSV(ShortlistFile, headers, records)
}

// WriteScores writes the complete score table, including funds that a
// guardrail later excluded from ranking.
func (w *CSVWriter) WriteScores(scores []scoring.ScoreRow) error {
	headers := []string{"profile", "cnpj", "score", "pct_features_considered", "weights_used"}
	records := make([][]string, 0, len(scores))
	for _, s := range scores {
		records = append(records, []string{
			s.Profile,
			s.FundID.String(),
			formatCell(s.Score),
			fmt.Sprintf("%.4f", s.PctFeaturesConsidered),
			formatWeights(s.WeightsUsed),
		})
	}
	return w.WriteCSV(ScoresFile, headers, records)
}

// WriteGuardrailAudit writes the audit table: every scored fund with
// its pass flag and ordered failure tags.
func (w *CSVWriter) WriteGuardrailAudit(results []guardrails.Result) error {
	headers := []string{"profile", "cnpj", "passed", "failed_guardrails"}
	records := make([][]string, 0, len(results))
	for _, r := range results {
		records = append(records, []string{
			r.Profile,
			r.FundID.String(),
			strconv.FormatBool(r.Passed),
			strings.Join(r.FailedGuardrails, "|"),
		})
	}
	return w.WriteCSV(AuditFile, headers, records)
}

// WriteFeatures writes the merged feature table, canonical columns in
// stable order.
func (w *CSVWriter) WriteFeatures(rows []features.Row) error {
	names := features.Names()
	headers := append([]string{"cnpj"}, names...)

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, 0, len(headers))
		record = append(record, row.FundID.String())
		for _, name := range names {
			record = append(record, formatCell(row.Feature(name)))
		}
		records = append(records, record)
	}
	return w.WriteCSV(FeaturesFile, headers, records)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// formatCell renders a nullable cell, empty for null so spreadsheet
// tools distinguish missing from zero.
func formatCell(v fund.Value) string {
	if !v.Valid {
		return ""
	}
	return formatScore(v.Float64)
}

func formatWeights(weights map[string]float64) string {
	if len(weights) == 0 {
		return ""
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%.4f", name, weights[name]))
	}
	return strings.Join(parts, "|")
}
