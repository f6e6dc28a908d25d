package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundrank/internal/fund"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestReadDailyInformeOldLayout(t *testing.T) {
	content := []byte("TP_FUNDO;CNPJ_FUNDO;DT_COMPTC;VL_TOTAL;VL_QUOTA;VL_PATRIM_LIQ\n" +
		"FI;00.000.000/0001-91;2024-07-30;1000;1.523456;980000.50\n" +
		"FI;00.000.000/0001-91;2024-07-31;1010;1.524000;985000.00\n")
	path := writeFile(t, t.TempDir(), "inf_diario_202407.csv", content)

	records, err := ReadDailyInforme(path, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, fund.CNPJ(191), records[0].FundID)
	assert.Equal(t, time.Date(2024, 7, 30, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, 1.523456, records[0].Quota)
	assert.Equal(t, 980000.50, records[0].NAV)
}

func TestReadDailyInformeNewLayout(t *testing.T) {
	content := []byte("TP_FUNDO_CLASSE;CNPJ_FUNDO_CLASSE;ID_SUBCLASSE;DT_COMPTC;VL_QUOTA;VL_PATRIM_LIQ\n" +
		"CLASSES;11.222.333/0001-81;;2024-07-31;2.5;500000\n")
	path := writeFile(t, t.TempDir(), "inf_diario_202407.csv", content)

	records, err := ReadDailyInforme(path, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "11.222.333/0001-81", records[0].FundID.String())
}

func TestReadDailyInformeSkipsMalformedRows(t *testing.T) {
	content := []byte("CNPJ_FUNDO;DT_COMPTC;VL_QUOTA\n" +
		"not-a-cnpj;2024-07-31;1.5\n" +
		"00.000.000/0001-91;31/07/2024;1.5\n" +
		"00.000.000/0001-91;2024-07-31;zero\n" +
		"00.000.000/0001-91;2024-07-31;-1.5\n" +
		"00.000.000/0001-91;2024-07-31;1.5\n")
	path := writeFile(t, t.TempDir(), "inf_diario.csv", content)

	records, err := ReadDailyInforme(path, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestReadDailyInformeMissingColumnFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.csv", []byte("A;B;C\n1;2;3\n"))
	_, err := ReadDailyInforme(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CNPJ")
}

func TestBuildSeries(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC) }
	records := []DailyRecord{
		{FundID: 191, Date: day(31), Quota: 1.6, NAV: 1100},
		{FundID: 191, Date: day(30), Quota: 1.5, NAV: 1000},
		{FundID: 191, Date: time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), Quota: 1.4, NAV: 900},
	}

	series := BuildSeries(records)
	require.Len(t, series, 1)
	s := series[0]

	require.Len(t, s.Daily, 3)
	assert.True(t, s.IsOrdered())
	assert.Equal(t, 1.4, s.Daily[0].Quota)

	// Monthly NAV comes from each month's last filing.
	require.Len(t, s.Monthly, 2)
	assert.Equal(t, fund.Period(202406), s.Monthly[0].Period)
	assert.Equal(t, 900.0, s.Monthly[0].NAV)
	assert.Equal(t, fund.Period(202407), s.Monthly[1].Period)
	assert.Equal(t, 1100.0, s.Monthly[1].NAV)
}

func TestBuildSeriesDeduplicatesDays(t *testing.T) {
	date := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	records := []DailyRecord{
		{FundID: 191, Date: date, Quota: 1.5, NAV: 1000},
		{FundID: 191, Date: date, Quota: 1.6, NAV: 1010}, // restated filing wins
	}

	series := BuildSeries(records)
	require.Len(t, series, 1)
	require.Len(t, series[0].Daily, 1)
	assert.Equal(t, 1.6, series[0].Daily[0].Quota)
}

func TestReadHoldingsDecodesLatin1(t *testing.T) {
	// "Debêntures" in ISO-8859-1: ê is the single byte 0xEA.
	content := append([]byte("CNPJ_FUNDO;DT_COMPTC;TP_APLIC;CD_ATIVO;VL_MERC_POS_FINAL\n"),
		[]byte("00.000.000/0001-91;2024-07-31;Deb\xEAntures;DEB-X1;2500.75\n")...)
	path := writeFile(t, t.TempDir(), "cda_fi_BLC_202407.csv", content)

	holdings, err := ReadHoldings(path, nil)
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	assert.Equal(t, fund.CategoryPrivateCredit, holdings[0].Category)
	assert.Equal(t, "DEB-X1", holdings[0].InstrumentID)
	assert.Equal(t, 2500.75, holdings[0].PositionValue)
	assert.Equal(t, fund.Period(202407), holdings[0].Period)
}

func TestCategoryFromTipoAplicacao(t *testing.T) {
	tests := []struct {
		tpAplic string
		want    fund.AssetCategory
	}{
		{"Títulos Públicos", fund.CategoryGovernment},
		{"Operações Compromissadas", fund.CategoryGovernment},
		{"Cotas de Fundos", fund.CategoryFundQuotas},
		{"Mercado Futuro - Posições compradas", fund.CategoryDerivatives},
		{"Debêntures", fund.CategoryPrivateCredit},
		{"DEPÓSITOS A PRAZO E OUTROS TÍTULOS DE IF", fund.CategoryBankDeposits},
		{"Investimento no Exterior", fund.CategoryForeignAssets},
		{"Outros títulos de renda fixa", fund.CategoryFixedIncome},
		{"Ações", fund.CategoryOtherAssets},
		{"", fund.CategoryOtherAssets},
	}

	for _, tt := range tests {
		t.Run(tt.tpAplic, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryFromTipoAplicacao(tt.tpAplic))
		})
	}
}

func TestBuildSnapshotsKeepsLatestPeriodOnly(t *testing.T) {
	holdings := []fund.Holding{
		{FundID: 191, Period: 202406, InstrumentID: "OLD", PositionValue: 100},
		{FundID: 191, Period: 202407, InstrumentID: "B", PositionValue: 400},
		{FundID: 191, Period: 202407, InstrumentID: "A", PositionValue: 600},
	}
	series := []fund.Series{{
		FundID: 191,
		Monthly: []fund.MonthlyObservation{
			{Period: 202406, NAV: 900},
			{Period: 202407, NAV: 1000},
		},
	}}

	snaps := BuildSnapshots(holdings, series)
	require.Len(t, snaps, 1)

	snap := snaps[191]
	assert.Equal(t, fund.Period(202407), snap.Period)
	assert.Equal(t, 1000.0, snap.NAV)
	require.Len(t, snap.Holdings, 2)
	// Sorted by instrument id for deterministic downstream iteration.
	assert.Equal(t, "A", snap.Holdings[0].InstrumentID)
	assert.Equal(t, "B", snap.Holdings[1].InstrumentID)
}

func TestBuildSnapshotsWithoutNAV(t *testing.T) {
	holdings := []fund.Holding{
		{FundID: 191, Period: 202407, InstrumentID: "A", PositionValue: 600},
	}

	snaps := BuildSnapshots(holdings, nil)
	require.Len(t, snaps, 1)
	assert.Equal(t, 0.0, snaps[191].NAV)
}

func writeRegistryWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := "Dados"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)

	rows := [][]interface{}{
		{"Relatório de Fundos"},
		{"CNPJ do Fundo", "Nome Comercial", "Gestor", "Prazo para Resgate", "Data de Início", "Subtipo ANBIMA", "Público Alvo"},
		{"00.000.000/0001-91", "Fundo Alfa RF", "Gestora Alfa", "5", "2015-03-10", "Soberano", "Varejo"},
		{"11.222.333/0001-81", "Fundo Beta CP", "Gestora Beta", "30", "10/01/2020", "Crédito Livre", "Qualificado"},
		{"not-a-cnpj", "Broken", "", "", "", "", ""},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	path := filepath.Join(dir, "registry.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadCharacteristics(t *testing.T) {
	path := writeRegistryWorkbook(t, t.TempDir())

	chars, err := ReadCharacteristics(path, nil)
	require.NoError(t, err)
	require.Len(t, chars, 2)

	alfa := chars[191]
	assert.Equal(t, "Fundo Alfa RF", alfa.CommercialName)
	assert.Equal(t, "Gestora Alfa", alfa.Manager)
	assert.Equal(t, 5, alfa.RedemptionDays)
	assert.Equal(t, time.Date(2015, 3, 10, 0, 0, 0, 0, time.UTC), alfa.InceptionDate)
	assert.Equal(t, "Soberano", alfa.Subtype)
	assert.Equal(t, "Varejo", alfa.TargetInvestor)
	assert.True(t, alfa.IsActive)

	beta, err2 := fund.ParseCNPJ("11.222.333/0001-81")
	require.NoError(t, err2)
	assert.Equal(t, time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC), chars[beta].InceptionDate)
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, filepath.Join(DailyDir, "inf_diario_202406.csv"),
		[]byte("CNPJ_FUNDO;DT_COMPTC;VL_QUOTA;VL_PATRIM_LIQ\n"+
			"00.000.000/0001-91;2024-06-28;1.40;900\n"))
	writeFile(t, dir, filepath.Join(DailyDir, "inf_diario_202407.csv"),
		[]byte("CNPJ_FUNDO;DT_COMPTC;VL_QUOTA;VL_PATRIM_LIQ\n"+
			"00.000.000/0001-91;2024-07-30;1.50;1000\n"+
			"00.000.000/0001-91;2024-07-31;1.51;1010\n"))
	writeFile(t, dir, filepath.Join(HoldingsDir, "cda_202407.csv"),
		[]byte("CNPJ_FUNDO;DT_COMPTC;TP_APLIC;CD_ATIVO;VL_MERC_POS_FINAL\n"+
			"00.000.000/0001-91;2024-07-31;Titulos Publicos;LFT-1;1010\n"))
	writeRegistryMinimal(t, filepath.Join(dir, RegistryDir))

	ds, err := NewLoader(dir, nil).Load()
	require.NoError(t, err)

	require.Len(t, ds.Series, 1)
	assert.Len(t, ds.Series[0].Daily, 3)
	assert.Len(t, ds.Series[0].Monthly, 2)

	require.Contains(t, ds.Snapshots, fund.CNPJ(191))
	assert.Equal(t, 1010.0, ds.Snapshots[191].NAV)

	require.Contains(t, ds.Characteristics, fund.CNPJ(191))
	assert.Equal(t, "Gestora Alfa", ds.Characteristics[191].Manager)
}

func writeRegistryMinimal(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"CNPJ", "Nome Comercial", "Gestor"},
		{"00.000.000/0001-91", "Fundo Alfa RF", "Gestora Alfa"},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, "registry.xlsx")))
}

func TestLoaderFailsWithoutDailyFiles(t *testing.T) {
	_, err := NewLoader(t.TempDir(), nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no daily informe")
}
