package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Profiles, 3)
	assert.Equal(t, 252, cfg.Run.AnnualizationDays)
	assert.Equal(t, 0.05, cfg.Run.LowerPercentile)
	assert.Equal(t, 0.95, cfg.Run.UpperPercentile)
}

func TestDefaultProfileWeightsSumToOne(t *testing.T) {
	for _, p := range DefaultProfiles() {
		sum := 0.0
		for _, w := range p.Weights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "profile %s", p.Name)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Run, cfg.Run)
}

func TestLoadMergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fundrank.yaml")
	content := `
run:
  risk_free_annual: 0.1325
  top_n: 10
profiles:
  - name: custom
    weights:
      volatility: 0.5
      sharpe: 0.5
guardrails:
  min_offer_per_issuer:
    enabled: true
    min_funds: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1325, cfg.Run.RiskFreeAnnual)
	assert.Equal(t, 10, cfg.Run.TopN)
	// Untouched keys keep their defaults.
	assert.Equal(t, 252, cfg.Run.AnnualizationDays)

	require.Len(t, cfg.Profiles, 1)
	assert.Equal(t, "custom", cfg.Profiles[0].Name)

	assert.Equal(t, 3, cfg.Guardrails.MinOfferPerIssuer.MinFunds)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("FUNDRANK_RUN_TOP_N", "7")
	t.Setenv("FUNDRANK_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Run.TopN)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadRejectsBrokenProfileWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fundrank.yaml")
	content := `
profiles:
  - name: broken
    weights:
      volatility: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestValidateRejectsPercentileInversion(t *testing.T) {
	cfg := Default()
	cfg.Run.LowerPercentile = 0.95
	cfg.Run.UpperPercentile = 0.05
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsWindowInversion(t *testing.T) {
	cfg := Default()
	cfg.Run.Window3M = 300
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateProfiles(t *testing.T) {
	cfg := Default()
	cfg.Profiles = append(cfg.Profiles, cfg.Profiles[0])
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadGuardrailParams(t *testing.T) {
	cfg := Default()
	cfg.Guardrails.NoExtremeReturns.MaxAbs = -0.5
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadAsOf(t *testing.T) {
	cfg := Default()
	cfg.Run.AsOf = "31/12/2024"
	require.Error(t, cfg.Validate())
}

func TestAsOfDate(t *testing.T) {
	r := RunConfig{AsOf: "2024-07-31"}
	got, err := r.AsOfDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC), got)

	r.AsOf = ""
	today, err := r.AsOfDate()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, today.Location())
}

func TestRunConfigParamMapping(t *testing.T) {
	cfg := Default()

	vp := cfg.Run.VolatilityParams()
	assert.Equal(t, 252, vp.Window12M)
	assert.Equal(t, 63, vp.Window3M)

	sp := cfg.Run.SharpeParams()
	assert.Equal(t, cfg.Run.RiskFreeAnnual, sp.RiskFreeAnnual)
	assert.Equal(t, cfg.Run.SharpeCap, sp.Cap)

	np := cfg.Run.NormalizeParams()
	assert.Equal(t, 0.05, np.LowerPercentile)
	assert.Equal(t, 0.95, np.UpperPercentile)
}
