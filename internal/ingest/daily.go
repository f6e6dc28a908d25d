package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"fundrank/internal/fund"
)

// DailyRecord is one row of a CVM daily informe file: one fund, one
// day, quota value and NAV.
type DailyRecord struct {
	FundID fund.CNPJ
	Date   time.Time
	Quota  float64
	NAV    float64
}

// ReadDailyInforme parses one inf_diario monthly extract. Rows with an
// unparseable CNPJ, date, or quota are skipped and counted, never
// fatal: one bad filing must not lose the rest of the month.
func ReadDailyInforme(path string, logger *slog.Logger) ([]DailyRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := openCVMCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cnpjIdx, ok := f.column("CNPJ_FUNDO_CLASSE", "CNPJ_FUNDO")
	if !ok {
		return nil, fmt.Errorf("%s: no CNPJ column", path)
	}
	dateIdx, ok := f.column("DT_COMPTC")
	if !ok {
		return nil, fmt.Errorf("%s: no DT_COMPTC column", path)
	}
	quotaIdx, ok := f.column("VL_QUOTA")
	if !ok {
		return nil, fmt.Errorf("%s: no VL_QUOTA column", path)
	}
	navIdx, hasNAV := f.column("VL_PATRIM_LIQ")

	var records []DailyRecord
	skipped := 0
	for {
		row, err := f.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		id, err := fund.ParseCNPJ(field(row, cnpjIdx))
		if err != nil {
			skipped++
			continue
		}
		date, err := time.Parse("2006-01-02", field(row, dateIdx))
		if err != nil {
			skipped++
			continue
		}
		quota, err := parseDecimal(field(row, quotaIdx))
		if err != nil || quota <= 0 {
			skipped++
			continue
		}

		rec := DailyRecord{FundID: id, Date: date, Quota: quota}
		if hasNAV {
			if nav, err := parseDecimal(field(row, navIdx)); err == nil {
				rec.NAV = nav
			}
		}
		records = append(records, rec)
	}

	logger.Info("parsed daily informe",
		"file", path,
		"rows", len(records),
		"skipped", skipped,
	)
	return records, nil
}

// BuildSeries assembles per-fund series from daily records across any
// number of files: daily quota observations in date order, plus one
// monthly NAV observation per calendar month taken from the month's
// last filing. Duplicate (fund, date) rows keep the last occurrence.
func BuildSeries(records []DailyRecord) []fund.Series {
	type monthEnd struct {
		date time.Time
		nav  float64
	}

	daily := make(map[fund.CNPJ]map[time.Time]float64)
	monthly := make(map[fund.CNPJ]map[fund.Period]monthEnd)

	for _, rec := range records {
		day := rec.Date.Truncate(24 * time.Hour)
		if daily[rec.FundID] == nil {
			daily[rec.FundID] = make(map[time.Time]float64)
		}
		daily[rec.FundID][day] = rec.Quota

		if rec.NAV <= 0 {
			continue
		}
		period := fund.Period(rec.Date.Year()*100 + int(rec.Date.Month()))
		if monthly[rec.FundID] == nil {
			monthly[rec.FundID] = make(map[fund.Period]monthEnd)
		}
		if prev, ok := monthly[rec.FundID][period]; !ok || day.After(prev.date) {
			monthly[rec.FundID][period] = monthEnd{date: day, nav: rec.NAV}
		}
	}

	ids := make([]fund.CNPJ, 0, len(daily))
	for id := range daily {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]fund.Series, 0, len(ids))
	for _, id := range ids {
		s := fund.Series{FundID: id}

		days := make([]time.Time, 0, len(daily[id]))
		for d := range daily[id] {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
		for _, d := range days {
			s.Daily = append(s.Daily, fund.DailyObservation{Date: d, Quota: daily[id][d]})
		}

		periods := make([]fund.Period, 0, len(monthly[id]))
		for p := range monthly[id] {
			periods = append(periods, p)
		}
		sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
		for _, p := range periods {
			s.Monthly = append(s.Monthly, fund.MonthlyObservation{Period: p, NAV: monthly[id][p].nav})
		}

		out = append(out, s)
	}
	return out
}
