// Package ingest turns raw CVM and ANBIMA extracts into the clean
// tabular records the scoring pipeline consumes: per-fund series,
// latest holdings snapshots, and characteristic records. Malformed
// rows are skipped and counted; only a missing or unreadable input
// file is fatal.
package ingest

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"fundrank/internal/fund"
)

// Layout of the data directory, one subdirectory per source.
const (
	DailyDir    = "inf_diario"
	HoldingsDir = "cda"
	RegistryDir = "registry"
)

// Dataset is the assembled input for one scoring run.
type Dataset struct {
	Series          []fund.Series
	Snapshots       map[fund.CNPJ]fund.HoldingsSnapshot
	Characteristics map[fund.CNPJ]fund.Characteristics
}

// Loader reads a data directory into a Dataset.
type Loader struct {
	dataDir string
	logger  *slog.Logger
}

// NewLoader creates a loader rooted at dataDir.
func NewLoader(dataDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dataDir: dataDir, logger: logger}
}

// Load reads every extract under the data directory. Daily informes
// are required; holdings and registry files are optional, since a run
// without them still produces return-based features.
func (l *Loader) Load() (*Dataset, error) {
	dailyFiles, err := sortedGlob(filepath.Join(l.dataDir, DailyDir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(dailyFiles) == 0 {
		return nil, fmt.Errorf("no daily informe files under %s", filepath.Join(l.dataDir, DailyDir))
	}

	var records []DailyRecord
	for _, path := range dailyFiles {
		recs, err := ReadDailyInforme(path, l.logger)
		if err != nil {
			return nil, fmt.Errorf("load daily informes: %w", err)
		}
		records = append(records, recs...)
	}
	series := BuildSeries(records)

	holdingsFiles, err := sortedGlob(filepath.Join(l.dataDir, HoldingsDir, "*.csv"))
	if err != nil {
		return nil, err
	}
	var holdings []fund.Holding
	for _, path := range holdingsFiles {
		hs, err := ReadHoldings(path, l.logger)
		if err != nil {
			return nil, fmt.Errorf("load holdings: %w", err)
		}
		holdings = append(holdings, hs...)
	}

	registryFiles, err := sortedGlob(filepath.Join(l.dataDir, RegistryDir, "*.xlsx"))
	if err != nil {
		return nil, err
	}
	chars := make(map[fund.CNPJ]fund.Characteristics)
	for _, path := range registryFiles {
		cs, err := ReadCharacteristics(path, l.logger)
		if err != nil {
			return nil, fmt.Errorf("load registry: %w", err)
		}
		for id, c := range cs {
			chars[id] = c
		}
	}

	// Funds filing daily informes but absent from the registry still
	// enter the population, with an empty characteristics record. The
	// manager guardrail marks them.
	for _, s := range series {
		if _, ok := chars[s.FundID]; !ok {
			chars[s.FundID] = fund.Characteristics{FundID: s.FundID, IsActive: true}
		}
	}

	ds := &Dataset{
		Series:          series,
		Snapshots:       BuildSnapshots(holdings, series),
		Characteristics: chars,
	}
	l.logger.Info("dataset assembled",
		"funds", len(ds.Series),
		"snapshots", len(ds.Snapshots),
		"registry_records", len(ds.Characteristics),
	)
	return ds, nil
}

func sortedGlob(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(files)
	return files, nil
}
