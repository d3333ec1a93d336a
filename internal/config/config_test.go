package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/config"
)

func baseConfig() config.Config {
	var cfg config.Config
	cfg.Sources.Careers.Enabled = true
	cfg.Sources.Careers.Companies = []config.Company{
		{Name: "Netflix", URL: "https://explore.jobs.netflix.net/careers", ATS: "lever"},
		{Name: "Airbnb", URL: "https://careers.airbnb.com", ATS: "greenhouse"},
	}
	return cfg
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  batch_size: 5
filters:
  role_keywords: [engineer, developer]
sources:
  github:
    enabled: true
    repos:
      - owner: SimplifyJobs
        repo: New-Grad-Positions
        file: README.md
    aliases:
      Meta: [facebook]
health:
  failure_alert_thresholds:
    - tier: warning
      after: 2
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.App.BatchSize)
	assert.Equal(t, []string{"engineer", "developer"}, cfg.Filters.RoleKeywords)
	require.Len(t, cfg.Sources.GitHub.Repos, 1)
	assert.Equal(t, "SimplifyJobs", cfg.Sources.GitHub.Repos[0].Owner)
	assert.Equal(t, []string{"facebook"}, cfg.Sources.GitHub.Aliases["Meta"])
	require.Len(t, cfg.Health.FailureAlertThresholds, 1)
	assert.Equal(t, 2, cfg.Health.FailureAlertThresholds[0].After)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestTargetCompanies(t *testing.T) {
	cfg := baseConfig()
	cfg.Sources.Careers.Companies = append(cfg.Sources.Careers.Companies,
		config.Company{Name: " Airbnb ", URL: "https://careers.airbnb.com"}, // dup after trim
	)
	cfg.Sources.GitHub.Aliases = map[string][]string{
		"Meta":    {"facebook", "Meta Platforms"},
		"Netflix": {},
	}

	got := cfg.TargetCompanies()
	assert.Equal(t, []string{"airbnb", "facebook", "meta", "meta platforms", "netflix"}, got)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg, v := config.NormalizeAndValidate(baseConfig())
	require.True(t, v.OK(), "errors: %v", v.Errors)

	assert.Equal(t, 10, cfg.App.BatchSize)
	assert.Equal(t, 3, cfg.HTTP.Retries)
	assert.InDelta(t, 0.5, cfg.HTTP.BackoffSeconds, 1e-9)
	assert.Equal(t, 6, cfg.Sources.Careers.Workers)
	assert.InDelta(t, 0.5, cfg.Sources.Careers.MinHealthySuccessRate, 1e-9)

	require.Len(t, cfg.Health.FailureAlertThresholds, 2)
	assert.Equal(t, config.AlertTier{Tier: "warning", After: 3}, cfg.Health.FailureAlertThresholds[0])
	assert.Equal(t, config.AlertTier{Tier: "critical", After: 5}, cfg.Health.FailureAlertThresholds[1])
	assert.Equal(t, 5, cfg.Health.RecoveryWindow)
	assert.Equal(t, 3, cfg.Health.MinRecoverySuccesses)
	assert.InDelta(t, 0.8, cfg.Health.MinRecoverySuccessRate, 1e-9)
}

func TestNormalizeCleansKeywordLists(t *testing.T) {
	cfg := baseConfig()
	cfg.Filters.RoleKeywords = []string{" Engineer ", "engineer", "", "Developer"}
	cfg.Filters.BlockedLocations = []string{"London", "london "}

	out, v := config.NormalizeAndValidate(cfg)
	require.True(t, v.OK())
	assert.Equal(t, []string{"engineer", "developer"}, out.Filters.RoleKeywords)
	assert.Equal(t, []string{"london"}, out.Filters.BlockedLocations)
}

func TestNormalizeSortsTiers(t *testing.T) {
	cfg := baseConfig()
	cfg.Health.FailureAlertThresholds = []config.AlertTier{
		{Tier: "critical", After: 5},
		{Tier: "warning", After: 2},
	}
	out, v := config.NormalizeAndValidate(cfg)
	require.True(t, v.OK())
	assert.Equal(t, "warning", out.Health.FailureAlertThresholds[0].Tier)
	assert.Equal(t, "critical", out.Health.FailureAlertThresholds[1].Tier)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "no sources enabled",
			mutate:  func(c *config.Config) { c.Sources.Careers.Enabled = false },
			wantErr: "no sources enabled",
		},
		{
			name: "github enabled without repos",
			mutate: func(c *config.Config) {
				c.Sources.GitHub.Enabled = true
			},
			wantErr: "no repos configured",
		},
		{
			name: "careers enabled without companies",
			mutate: func(c *config.Config) {
				c.Sources.Careers.Companies = nil
			},
			wantErr: "no companies configured",
		},
		{
			name: "unknown ats",
			mutate: func(c *config.Config) {
				c.Sources.Careers.Companies[0].ATS = "taleo"
			},
			wantErr: `unknown ats "taleo"`,
		},
		{
			name: "company missing url",
			mutate: func(c *config.Config) {
				c.Sources.Careers.Companies[0].URL = ""
			},
			wantErr: "missing url",
		},
		{
			name: "duplicate tier thresholds",
			mutate: func(c *config.Config) {
				c.Health.FailureAlertThresholds = []config.AlertTier{
					{Tier: "warning", After: 3},
					{Tier: "critical", After: 3},
				}
			},
			wantErr: "share threshold",
		},
		{
			name: "recovery rate above one",
			mutate: func(c *config.Config) {
				c.Health.MinRecoverySuccessRate = 1.5
			},
			wantErr: "min_recovery_success_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			_, v := config.NormalizeAndValidate(cfg)
			require.False(t, v.OK())
			found := false
			for _, e := range v.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "want error containing %q, got %v", tt.wantErr, v.Errors)
		})
	}
}

func TestValidateWarnsOnOrphanAlias(t *testing.T) {
	cfg := baseConfig()
	cfg.Sources.GitHub.Aliases = map[string][]string{"Google": {"alphabet"}}
	_, v := config.NormalizeAndValidate(cfg)
	require.True(t, v.OK())
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "Google")
}
