package ingest

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fundrank/internal/fund"
)

// characteristic column keys resolved from the workbook header.
const (
	colCNPJ      = "cnpj"
	colName      = "name"
	colManager   = "manager"
	colRedempt   = "redemption"
	colInception = "inception"
	colSubtype   = "subtype"
	colInvestor  = "investor"
)

// ReadCharacteristics parses the ANBIMA fund registry workbook into
// per-fund characteristic records. The sheet and header row are located
// by content, since ANBIMA moves both between releases.
func ReadCharacteristics(path string, logger *slog.Logger) (map[fund.CNPJ]fund.Characteristics, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, sheet, headerRow, columns := findCharacteristicsSheet(f)
	if rows == nil {
		return nil, fmt.Errorf("%s: no sheet with a CNPJ column", path)
	}
	logger.Info("found fund registry sheet",
		"file", path,
		"sheet", sheet,
		"header_row", headerRow,
	)

	out := make(map[fund.CNPJ]fund.Characteristics)
	skipped := 0
	for _, row := range rows[headerRow+1:] {
		id, err := fund.ParseCNPJ(cell(row, columns[colCNPJ]))
		if err != nil {
			skipped++
			continue
		}

		c := fund.Characteristics{
			FundID:         id,
			CommercialName: lookup(row, columns, colName),
			Manager:        lookup(row, columns, colManager),
			Subtype:        lookup(row, columns, colSubtype),
			TargetInvestor: lookup(row, columns, colInvestor),
			IsActive:       true,
		}
		if idx, ok := columns[colRedempt]; ok {
			if days, err := strconv.Atoi(cell(row, idx)); err == nil && days >= 0 {
				c.RedemptionDays = days
			}
		}
		if idx, ok := columns[colInception]; ok {
			c.InceptionDate = parseWorkbookDate(cell(row, idx))
		}

		out[id] = c
	}

	logger.Info("parsed fund registry",
		"file", path,
		"funds", len(out),
		"skipped", skipped,
	)
	return out, nil
}

// findCharacteristicsSheet scans every sheet for a header row carrying
// a CNPJ column and maps the columns of interest by header text.
func findCharacteristicsSheet(f *excelize.File) ([][]string, string, int, map[string]int) {
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for i, row := range rows {
			if i > 10 {
				break
			}
			columns := mapHeaderColumns(row)
			if _, ok := columns[colCNPJ]; ok {
				return rows, sheet, i, columns
			}
		}
	}
	return nil, "", 0, nil
}

func mapHeaderColumns(row []string) map[string]int {
	columns := make(map[string]int)
	for j, header := range row {
		h := normalizeDescription(header)
		switch {
		case strings.Contains(h, "cnpj"):
			mapOnce(columns, colCNPJ, j)
		case contains(h, "nome comercial", "nome fantasia", "denominacao"):
			mapOnce(columns, colName, j)
		case strings.Contains(h, "gestor"):
			mapOnce(columns, colManager, j)
		case contains(h, "prazo", "resgate"):
			mapOnce(columns, colRedempt, j)
		case contains(h, "data de inicio", "inicio do fundo", "constituicao"):
			mapOnce(columns, colInception, j)
		case contains(h, "subtipo", "categoria anbima", "tipo anbima"):
			mapOnce(columns, colSubtype, j)
		case contains(h, "publico alvo", "investidor"):
			mapOnce(columns, colInvestor, j)
		}
	}
	return columns
}

// mapOnce keeps the first matching column so later look-alike headers
// (e.g., "CNPJ do Gestor") do not steal an already-mapped slot.
func mapOnce(columns map[string]int, key string, idx int) {
	if _, ok := columns[key]; !ok {
		columns[key] = idx
	}
}

func lookup(row []string, columns map[string]int, key string) string {
	idx, ok := columns[key]
	if !ok {
		return ""
	}
	return cell(row, idx)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseWorkbookDate accepts the date renditions seen across registry
// releases.
func parseWorkbookDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
