package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"fundrank/internal/config"
	"fundrank/internal/exporter"
	"fundrank/internal/features"
	"fundrank/internal/fetch"
	"fundrank/internal/fund"
	"fundrank/internal/guardrails"
	"fundrank/internal/ingest"
	"fundrank/internal/ranking"
	"fundrank/internal/returns"
	"fundrank/internal/scoring"
)

// Stage ids, in pipeline order.
const (
	StageFetch      = "fetch"
	StageLoad       = "load"
	StageReturns    = "returns"
	StageFeatures   = "features"
	StageNormalize  = "normalize"
	StageScore      = "score"
	StageGuardrails = "guardrails"
	StageRank       = "rank"
	StageExport     = "export"
)

// FetchStage downloads the CVM dataset months preceding the reference
// date. It is registered only for runs that refresh data before
// ranking.
type FetchStage struct {
	fetcher *fetch.Fetcher
	months  int
	dataDir string
}

// NewFetchStage builds the dataset download stage.
func NewFetchStage(fetcher *fetch.Fetcher, months int, dataDir string) *FetchStage {
	return &FetchStage{fetcher: fetcher, months: months, dataDir: dataDir}
}

func (s *FetchStage) ID() string   { return StageFetch }
func (s *FetchStage) Name() string { return "Fetch CVM dataset" }

func (s *FetchStage) Run(ctx context.Context, state *State) error {
	months := fetch.MonthsBack(state.AsOf, s.months)
	if err := s.fetcher.FetchDaily(ctx, months, s.dataDir); err != nil {
		return fmt.Errorf("fetch daily informes: %w", err)
	}
	if err := s.fetcher.FetchHoldings(ctx, months, s.dataDir); err != nil {
		return fmt.Errorf("fetch holdings: %w", err)
	}
	return nil
}

// LoadStage reads the on-disk dataset into memory.
type LoadStage struct {
	loader *ingest.Loader
}

// NewLoadStage builds the dataset ingest stage.
func NewLoadStage(loader *ingest.Loader) *LoadStage {
	return &LoadStage{loader: loader}
}

func (s *LoadStage) ID() string   { return StageLoad }
func (s *LoadStage) Name() string { return "Load dataset" }

func (s *LoadStage) Run(ctx context.Context, state *State) error {
	dataset, err := s.loader.Load()
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	state.Dataset = dataset
	return nil
}

// ReturnsStage derives the daily and monthly return tables from the
// quota series.
type ReturnsStage struct {
	engine *returns.Engine
}

// NewReturnsStage builds the return derivation stage.
func NewReturnsStage(engine *returns.Engine) *ReturnsStage {
	return &ReturnsStage{engine: engine}
}

func (s *ReturnsStage) ID() string   { return StageReturns }
func (s *ReturnsStage) Name() string { return "Compute returns" }

func (s *ReturnsStage) Run(ctx context.Context, state *State) error {
	if state.Dataset == nil {
		return fmt.Errorf("compute returns: dataset not loaded")
	}
	state.Daily = s.engine.Daily(state.Dataset.Series)
	state.Monthly = s.engine.Monthly(state.Dataset.Series)
	return nil
}

// FeaturesStage runs every calculator and merges the columns into the
// canonical feature table.
type FeaturesStage struct {
	aggregator *features.Aggregator
}

// NewFeaturesStage builds the feature calculation stage from the run
// configuration.
func NewFeaturesStage(run config.RunConfig, logger *slog.Logger) (*FeaturesStage, error) {
	liquidity, err := features.NewLiquidity(nil)
	if err != nil {
		return nil, fmt.Errorf("build liquidity calculator: %w", err)
	}
	credit, err := features.NewCreditQuality(features.DefaultCreditParams())
	if err != nil {
		return nil, fmt.Errorf("build credit calculator: %w", err)
	}

	aggregator, err := features.NewAggregator([]features.Calculator{
		features.NewVolatility(run.VolatilityParams()),
		features.NewSharpe(run.SharpeParams()),
		liquidity,
		features.NewConcentration(),
		features.NewDiversification(),
		credit,
		features.NewFundAge(run.FundAgeCapYears),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build feature aggregator: %w", err)
	}
	return &FeaturesStage{aggregator: aggregator}, nil
}

func (s *FeaturesStage) ID() string   { return StageFeatures }
func (s *FeaturesStage) Name() string { return "Calculate features" }

func (s *FeaturesStage) Run(ctx context.Context, state *State) error {
	if state.Dataset == nil {
		return fmt.Errorf("calculate features: dataset not loaded")
	}
	rows, err := s.aggregator.Merge(ctx, &features.Inputs{
		AsOf:            state.AsOf,
		Daily:           state.Daily,
		Monthly:         state.Monthly,
		Snapshots:       state.Dataset.Snapshots,
		Characteristics: state.Dataset.Characteristics,
	})
	if err != nil {
		return fmt.Errorf("calculate features: %w", err)
	}
	state.Features = rows
	return nil
}

// NormalizeStage rescales every feature column to [0, 1].
type NormalizeStage struct {
	normalizer *scoring.Normalizer
}

// NewNormalizeStage builds the normalization stage.
func NewNormalizeStage(normalizer *scoring.Normalizer) *NormalizeStage {
	return &NormalizeStage{normalizer: normalizer}
}

func (s *NormalizeStage) ID() string   { return StageNormalize }
func (s *NormalizeStage) Name() string { return "Normalize features" }

func (s *NormalizeStage) Run(ctx context.Context, state *State) error {
	state.Normalized = s.normalizer.Normalize(state.Features)
	return nil
}

// ScoreStage computes the composite score table across all profiles.
type ScoreStage struct {
	scorer   *scoring.Scorer
	profiles []scoring.Profile
}

// NewScoreStage builds the scoring stage.
func NewScoreStage(scorer *scoring.Scorer, profiles []scoring.Profile) *ScoreStage {
	return &ScoreStage{scorer: scorer, profiles: profiles}
}

func (s *ScoreStage) ID() string   { return StageScore }
func (s *ScoreStage) Name() string { return "Score profiles" }

func (s *ScoreStage) Run(ctx context.Context, state *State) error {
	if state.Dataset == nil {
		return fmt.Errorf("score profiles: dataset not loaded")
	}
	state.Scores = s.scorer.ScoreAll(state.Normalized, state.Dataset.Characteristics, s.profiles)
	return nil
}

// GuardrailStage evaluates the guardrail rules over the population and
// records the audit trail per profile.
type GuardrailStage struct {
	filter *guardrails.Filter
}

// NewGuardrailStage builds the guardrail stage from its rule
// configuration.
func NewGuardrailStage(cfg guardrails.Config, logger *slog.Logger) (*GuardrailStage, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	filter, err := guardrails.NewFilter(rules, logger)
	if err != nil {
		return nil, fmt.Errorf("build guardrail filter: %w", err)
	}
	return &GuardrailStage{filter: filter}, nil
}

func (s *GuardrailStage) ID() string   { return StageGuardrails }
func (s *GuardrailStage) Name() string { return "Apply guardrails" }

func (s *GuardrailStage) Run(ctx context.Context, state *State) error {
	if state.Dataset == nil {
		return fmt.Errorf("apply guardrails: dataset not loaded")
	}
	state.Failures = s.filter.Evaluate(&guardrails.Inputs{
		Rows:            state.FeatureRowIndex(),
		Characteristics: state.Dataset.Characteristics,
		Monthly:         state.Monthly,
	})

	state.Audit = state.Audit[:0]
	for _, profile := range scoreProfiles(state.Scores) {
		ids := profileFundIDs(state.Scores, profile)
		state.Audit = append(state.Audit, guardrails.Mark(profile, ids, state.Failures)...)
	}
	return nil
}

// RankStage orders each profile's survivors and selects the
// shortlists.
type RankStage struct {
	ranker  *ranking.Ranker
	metrics *Metrics
}

// NewRankStage builds the ranking stage.
func NewRankStage(ranker *ranking.Ranker, metrics *Metrics) *RankStage {
	return &RankStage{ranker: ranker, metrics: metrics}
}

func (s *RankStage) ID() string   { return StageRank }
func (s *RankStage) Name() string { return "Rank funds" }

func (s *RankStage) Run(ctx context.Context, state *State) error {
	if state.Dataset == nil {
		return fmt.Errorf("rank funds: dataset not loaded")
	}

	state.Ranked = state.Ranked[:0]
	state.Shortlist = state.Shortlist[:0]
	for _, profile := range scoreProfiles(state.Scores) {
		scores := profileScores(state.Scores, profile)
		ranked := s.ranker.Rank(scores, state.Failures, state.Dataset.Characteristics)
		state.Ranked = append(state.Ranked, ranked...)
		state.Shortlist = append(state.Shortlist, s.ranker.Shortlist(ranked)...)
		s.metrics.RecordRanked(ctx, profile, len(ranked))
	}
	return nil
}

// ExportStage writes the run's result tables to the output directory.
type ExportStage struct {
	csv    *exporter.CSVWriter
	report *exporter.ReportWriter
}

// NewExportStage builds the export stage.
func NewExportStage(csv *exporter.CSVWriter, report *exporter.ReportWriter) *ExportStage {
	return &ExportStage{csv: csv, report: report}
}

func (s *ExportStage) ID() string   { return StageExport }
func (s *ExportStage) Name() string { return "Export results" }

func (s *ExportStage) Run(ctx context.Context, state *State) error {
	if err := s.csv.WriteShortlist(state.Shortlist); err != nil {
		return err
	}
	if err := s.csv.WriteScores(state.Scores); err != nil {
		return err
	}
	if err := s.csv.WriteGuardrailAudit(state.Audit); err != nil {
		return err
	}
	if err := s.csv.WriteFeatures(state.Features); err != nil {
		return err
	}
	return s.report.Write(state.Shortlist, state.Audit)
}

// scoreProfiles returns the distinct profile names present in the
// score table, sorted for deterministic output.
func scoreProfiles(scores []scoring.ScoreRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range scores {
		if !seen[s.Profile] {
			seen[s.Profile] = true
			out = append(out, s.Profile)
		}
	}
	sort.Strings(out)
	return out
}

func profileScores(scores []scoring.ScoreRow, profile string) []scoring.ScoreRow {
	var out []scoring.ScoreRow
	for _, s := range scores {
		if s.Profile == profile {
			out = append(out, s)
		}
	}
	return out
}

func profileFundIDs(scores []scoring.ScoreRow, profile string) []fund.CNPJ {
	var out []fund.CNPJ
	for _, s := range scores {
		if s.Profile == profile {
			out = append(out, s.FundID)
		}
	}
	return out
}
