// Package fetch downloads CVM dataset archives over plain HTTP and
// unpacks them into the ingest layout. The open-data portal throttles
// aggressive clients, so all requests go through a shared rate
// limiter.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fundrank/internal/errors"
	"fundrank/internal/fund"
	"fundrank/internal/ingest"
)

// Dataset archive locations under the CVM open-data portal.
const (
	dailyArchivePath    = "FI/DOC/INF_DIARIO/DADOS/inf_diario_fi_%s.zip"
	holdingsArchivePath = "FI/DOC/CDA/DADOS/cda_fi_%s.zip"
)

// Fetcher downloads and unpacks CVM dataset archives.
type Fetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewFetcher creates a fetcher against baseURL, limited to rps
// requests per second.
func NewFetcher(baseURL string, rps float64, burst int, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// MonthsBack lists the n calendar months ending at asOf's month, oldest
// first.
func MonthsBack(asOf time.Time, n int) []fund.Period {
	periods := make([]fund.Period, n)
	p := fund.Period(asOf.Year()*100 + int(asOf.Month()))
	for i := n - 1; i >= 0; i-- {
		periods[i] = p
		p = p.Prev()
	}
	return periods
}

// FetchDaily downloads the daily informe archives for the given months
// into dataDir's inf_diario directory. Months whose CSVs are already
// present are skipped; a month missing on the portal (current month is
// often not published yet) is logged and skipped, not fatal.
func (f *Fetcher) FetchDaily(ctx context.Context, months []fund.Period, dataDir string) error {
	return f.fetchArchives(ctx, months, dailyArchivePath, filepath.Join(dataDir, ingest.DailyDir))
}

// FetchHoldings downloads the CDA portfolio archives for the given
// months into dataDir's cda directory.
func (f *Fetcher) FetchHoldings(ctx context.Context, months []fund.Period, dataDir string) error {
	return f.fetchArchives(ctx, months, holdingsArchivePath, filepath.Join(dataDir, ingest.HoldingsDir))
}

func (f *Fetcher) fetchArchives(ctx context.Context, months []fund.Period, archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.NewStorageError("create dataset directory", err)
	}

	for _, month := range months {
		if f.monthPresent(destDir, month) {
			f.logger.Debug("dataset month already present", "month", month.String(), "dir", destDir)
			continue
		}

		url := fmt.Sprintf("%s/%s", f.baseURL, fmt.Sprintf(archivePath, month.String()))
		extracted, err := f.downloadAndUnpack(ctx, url, destDir)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeNotFound) {
				f.logger.Warn("dataset month not published", "month", month.String(), "url", url)
				continue
			}
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		f.logger.Info("fetched dataset archive",
			"month", month.String(),
			"url", url,
			"files", extracted,
		)
	}
	return nil
}

// monthPresent reports whether any extracted CSV for the month already
// exists, so re-runs do not re-download history.
func (f *Fetcher) monthPresent(destDir string, month fund.Period) bool {
	matches, err := filepath.Glob(filepath.Join(destDir, "*"+month.String()+"*.csv"))
	return err == nil && len(matches) > 0
}

func (f *Fetcher) downloadAndUnpack(ctx context.Context, url, destDir string) (int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.NewNetworkError("build request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errors.NewNetworkError("download archive", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, errors.NewNotFoundError("archive not published")
	case resp.StatusCode != http.StatusOK:
		return 0, errors.NewNetworkError(fmt.Sprintf("portal returned status %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp("", "fundrank-archive-*.zip")
	if err != nil {
		return 0, errors.NewStorageError("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return 0, errors.NewNetworkError("read archive body", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.NewStorageError("flush temp file", err)
	}

	return extractCSVs(tmp.Name(), destDir)
}

// extractCSVs unpacks every CSV in the archive into destDir, flattening
// paths and refusing entries that would escape it.
func extractCSVs(zipPath, destDir string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, errors.NewParsingError("open archive", err)
	}
	defer zr.Close()

	extracted := 0
	for _, entry := range zr.File {
		name := filepath.Base(entry.Name)
		if entry.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if strings.Contains(name, "..") {
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return extracted, errors.NewParsingError("open archive entry", err)
		}

		destPath := filepath.Join(destDir, name)
		dest, err := os.Create(destPath)
		if err != nil {
			src.Close()
			return extracted, errors.NewStorageError("create extracted file", err)
		}
		if _, err := io.Copy(dest, src); err != nil {
			src.Close()
			dest.Close()
			return extracted, errors.NewStorageError("write extracted file", err)
		}
		src.Close()
		if err := dest.Close(); err != nil {
			return extracted, errors.NewStorageError("close extracted file", err)
		}
		extracted++
	}

	if extracted == 0 {
		return 0, errors.NewParsingError("archive contains no CSV files", nil)
	}
	return extracted, nil
}
