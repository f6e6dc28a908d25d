package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"fundrank/internal/fund"
)

// ReadHoldings parses one CDA portfolio composition extract into
// holdings rows. Position rows that cannot be attributed to a fund,
// period, or value are skipped and counted.
func ReadHoldings(path string, logger *slog.Logger) ([]fund.Holding, error) {
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
	applIdx, ok := f.column("TP_APLIC")
	if !ok {
		return nil, fmt.Errorf("%s: no TP_APLIC column", path)
	}
	valueIdx, ok := f.column("VL_MERC_POS_FINAL")
	if !ok {
		return nil, fmt.Errorf("%s: no VL_MERC_POS_FINAL column", path)
	}
	instrIdx, hasInstr := f.column("CD_ATIVO", "CD_ISIN", "DS_ATIVO")
	ratingIdx, hasRating := f.column("CLASSE_RISCO", "RATING")

	var holdings []fund.Holding
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
		value, err := parseDecimal(field(row, valueIdx))
		if err != nil {
			skipped++
			continue
		}

		h := fund.Holding{
			FundID:        id,
			Period:        fund.Period(date.Year()*100 + int(date.Month())),
			Category:      CategoryFromTipoAplicacao(field(row, applIdx)),
			PositionValue: value,
		}
		if hasInstr {
			h.InstrumentID = field(row, instrIdx)
		}
		if h.InstrumentID == "" {
			h.InstrumentID = field(row, applIdx)
		}
		if hasRating {
			h.CreditRating = field(row, ratingIdx)
		}
		holdings = append(holdings, h)
	}

	logger.Info("parsed holdings extract",
		"file", path,
		"positions", len(holdings),
		"skipped", skipped,
	)
	return holdings, nil
}

// BuildSnapshots keeps the latest reported period per fund and attaches
// the NAV of that same period from the fund's series. Funds whose
// snapshot period has no NAV are emitted with a zero NAV; the
// concentration calculator degrades those to null.
func BuildSnapshots(holdings []fund.Holding, series []fund.Series) map[fund.CNPJ]fund.HoldingsSnapshot {
	navByFundPeriod := make(map[fund.CNPJ]map[fund.Period]float64, len(series))
	for _, s := range series {
		m := make(map[fund.Period]float64, len(s.Monthly))
		for _, obs := range s.Monthly {
			m[obs.Period] = obs.NAV
		}
		navByFundPeriod[s.FundID] = m
	}

	latest := make(map[fund.CNPJ]fund.Period)
	for _, h := range holdings {
		if h.Period > latest[h.FundID] {
			latest[h.FundID] = h.Period
		}
	}

	out := make(map[fund.CNPJ]fund.HoldingsSnapshot, len(latest))
	for _, h := range holdings {
		if h.Period != latest[h.FundID] {
			continue
		}
		snap, ok := out[h.FundID]
		if !ok {
			snap = fund.HoldingsSnapshot{
				FundID: h.FundID,
				Period: h.Period,
				NAV:    navByFundPeriod[h.FundID][h.Period],
			}
		}
		snap.Holdings = append(snap.Holdings, h)
		out[h.FundID] = snap
	}

	for id, snap := range out {
		sort.Slice(snap.Holdings, func(i, j int) bool {
			return snap.Holdings[i].InstrumentID < snap.Holdings[j].InstrumentID
		})
		out[id] = snap
	}
	return out
}

// CategoryFromTipoAplicacao maps a CDA TP_APLIC description onto the
// eight coarse asset categories. Matching is accent- and
// case-insensitive; unrecognized descriptions land in OtherAssets.
func CategoryFromTipoAplicacao(tpAplic string) fund.AssetCategory {
	s := normalizeDescription(tpAplic)

	switch {
	case contains(s, "titulos publicos", "tesouro", "operacoes compromissadas"):
		return fund.CategoryGovernment
	case contains(s, "cotas de fundos", "fundo de investimento"):
		return fund.CategoryFundQuotas
	case contains(s, "swap", "futuro", "opcoes", "termo", "derivativ"):
		return fund.CategoryDerivatives
	case contains(s, "debenture", "nota promissoria", "cri", "cra", "fidc", "credito privado"):
		return fund.CategoryPrivateCredit
	case contains(s, "cdb", "rdb", "dpge", "letras financeiras", "deposito"):
		return fund.CategoryBankDeposits
	case contains(s, "exterior"):
		return fund.CategoryForeignAssets
	case contains(s, "renda fixa", "titulos privados", "letra de cambio"):
		return fund.CategoryFixedIncome
	default:
		return fund.CategoryOtherAssets
	}
}

// normalizeDescription lowercases and strips combining accents, so
// "Debêntures" and "DEBENTURES" compare equal.
func normalizeDescription(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	return strings.ToLower(strings.TrimSpace(plain))
}

func contains(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
