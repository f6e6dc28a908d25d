// Package returns derives per-fund periodic returns from quota and NAV
// series. Monthly returns are joined against the previous calendar
// month, not the previous observed row, so a missed filing yields a
// null return instead of a silently compounded multi-month value.
package returns

import (
	"log/slog"
	"sort"

	"fundrank/internal/fund"
)

// Fidelity marks the source a return was computed from. Quota-based
// returns measure true investment performance; NAV-based returns also
// reflect subscriptions and redemptions and are the lower-fidelity
// fallback.
type Fidelity string

const (
	FidelityQuota Fidelity = "quota"
	FidelityNAV   Fidelity = "nav"
)

// DailyReturn is one fund's return between two consecutive observed
// trading days. Weekends and holidays are naturally excluded because no
// observation exists for them.
type DailyReturn struct {
	FundID fund.CNPJ `json:"cnpj"`
	Date   string    `json:"date"` // ISO date of the later observation
	Return float64   `json:"daily_return"`
}

// MonthlyReturn is one fund's return for a calendar month. Return is
// null when the preceding calendar month has no observation.
type MonthlyReturn struct {
	FundID   fund.CNPJ   `json:"cnpj"`
	Period   fund.Period `json:"period"`
	NAV      float64     `json:"nav"`
	PrevNAV  fund.Value  `json:"prev_nav"`
	Return   fund.Value  `json:"monthly_return"`
	Fidelity Fidelity    `json:"fidelity"`
}

// Engine computes return tables from fund series.
type Engine struct {
	numPeriodMonths int
	logger          *slog.Logger
}

// NewEngine creates a return engine keeping the most recent
// numPeriodMonths calendar months per fund in the monthly table.
// numPeriodMonths <= 0 keeps all periods.
func NewEngine(numPeriodMonths int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{numPeriodMonths: numPeriodMonths, logger: logger}
}

// Daily computes quota-based daily returns for every fund in the input.
// Only transitions between two consecutive observed rows with a
// positive previous quota produce a value; anything else is dropped at
// the smallest granularity (that one transition).
func (e *Engine) Daily(series []fund.Series) []DailyReturn {
	out := make([]DailyReturn, 0)
	skippedFunds := 0

	for _, s := range series {
		if !s.IsOrdered() {
			e.logger.Warn("fund series out of order, skipping daily returns",
				"cnpj", s.FundID.String())
			skippedFunds++
			continue
		}
		for i := 1; i < len(s.Daily); i++ {
			prev := s.Daily[i-1].Quota
			cur := s.Daily[i].Quota
			if prev <= 0 {
				continue
			}
			r := fund.Some((cur - prev) / prev)
			if !r.Valid {
				continue
			}
			out = append(out, DailyReturn{
				FundID: s.FundID,
				Date:   s.Daily[i].Date.Format("2006-01-02"),
				Return: r.Float64,
			})
		}
	}

	if skippedFunds > 0 {
		e.logger.Warn("daily return computation skipped unordered funds",
			"skipped", skippedFunds)
	}
	return out
}

// Monthly computes NAV-based monthly returns with calendar-month
// alignment. A period whose previous calendar month is absent gets a
// null return; the row is kept so downstream sees the gap explicitly.
func (e *Engine) Monthly(series []fund.Series) []MonthlyReturn {
	out := make([]MonthlyReturn, 0)

	for _, s := range series {
		if !s.IsOrdered() {
			e.logger.Warn("fund series out of order, skipping monthly returns",
				"cnpj", s.FundID.String())
			continue
		}

		navByPeriod := make(map[fund.Period]float64, len(s.Monthly))
		for _, obs := range s.Monthly {
			navByPeriod[obs.Period] = obs.NAV
		}

		rows := make([]MonthlyReturn, 0, len(s.Monthly))
		for _, obs := range s.Monthly {
			row := MonthlyReturn{
				FundID:   s.FundID,
				Period:   obs.Period,
				NAV:      obs.NAV,
				Fidelity: FidelityNAV,
			}
			if prevNAV, ok := navByPeriod[obs.Period.Prev()]; ok && prevNAV > 0 {
				row.PrevNAV = fund.Some(prevNAV)
				row.Return = fund.Some((obs.NAV - prevNAV) / prevNAV)
			}
			rows = append(rows, row)
		}

		// Most recent periods first for the window cut, then restore
		// chronological order.
		sort.Slice(rows, func(i, j int) bool { return rows[i].Period > rows[j].Period })
		if e.numPeriodMonths > 0 && len(rows) > e.numPeriodMonths {
			rows = rows[:e.numPeriodMonths]
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Period < rows[j].Period })

		out = append(out, rows...)
	}

	return out
}

// LatestPeriod returns the most recent period present in a monthly
// return table, or false when the table is empty.
func LatestPeriod(rows []MonthlyReturn) (fund.Period, bool) {
	var max fund.Period
	for _, r := range rows {
		if r.Period > max {
			max = r.Period
		}
	}
	return max, max != 0
}
