package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"fundrank/internal/guardrails"
	"fundrank/internal/ranking"
)

// ReportFile is the formatted workbook name under the output directory.
const ReportFile = "fundrank_report.xlsx"

// ReportWriter builds the analyst-facing XLSX report: one sheet per
// profile shortlist plus a guardrail audit sheet.
type ReportWriter struct {
	outputDir string
	logger    *slog.Logger
}

// NewReportWriter creates a report writer rooted at outputDir.
func NewReportWriter(outputDir string, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{outputDir: outputDir, logger: logger}
}

// Write renders the workbook. Shortlist entries are grouped by profile
// in their ranked order.
func (w *ReportWriter) Write(shortlists []ranking.ShortlistEntry, audit []guardrails.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	byProfile := make(map[string][]ranking.ShortlistEntry)
	var profiles []string
	for _, e := range shortlists {
		if _, ok := byProfile[e.Profile]; !ok {
			profiles = append(profiles, e.Profile)
		}
		byProfile[e.Profile] = append(byProfile[e.Profile], e)
	}

	for _, profile := range profiles {
		if err := w.writeShortlistSheet(f, headerStyle, profile, byProfile[profile]); err != nil {
			return err
		}
	}
	if err := w.writeAuditSheet(f, headerStyle, audit); err != nil {
		return err
	}

	// Drop the default empty sheet once real sheets exist.
	if len(profiles) > 0 {
		f.DeleteSheet("Sheet1")
	}

	path := filepath.Join(w.outputDir, ReportFile)
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Info("wrote XLSX report",
		"path", path,
		"profiles", len(profiles),
		"audit_rows", len(audit),
	)
	return nil
}

func (w *ReportWriter) writeShortlistSheet(f *excelize.File, headerStyle int, profile string, entries []ranking.ShortlistEntry) error {
	sheet := sheetName(profile)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Rank", "CNPJ", "Fundo", "Score"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{e.Rank, e.FundID.String(), e.FundName, e.Score}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write shortlist row: %w", err)
		}
	}

	if err := f.SetColWidth(sheet, "B", "B", 22); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "C", 48)
}

func (w *ReportWriter) writeAuditSheet(f *excelize.File, headerStyle int, audit []guardrails.Result) error {
	const sheet = "Auditoria"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Perfil", "CNPJ", "Aprovado", "Guardrails reprovados"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range audit {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Profile, r.FundID.String(), r.Passed, strings.Join(r.FailedGuardrails, ", ")}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write audit row: %w", err)
		}
	}

	if err := f.SetColWidth(sheet, "B", "B", 22); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "D", "D", 40)
}

// sheetName renders a profile name as a valid sheet title. Excel caps
// titles at 31 characters.
func sheetName(profile string) string {
	s := profile
	if s == "" {
		s = "Perfil"
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if len(s) > 31 {
		s = s[:31]
	}
	return s
}
