package config

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Repo struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	File  string `yaml:"file"`
}

type Company struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	ATS  string `yaml:"ats"` // greenhouse | lever | workday | internal
}

type AlertTier struct {
	Tier  string `yaml:"tier"`  // warning | critical
	After int    `yaml:"after"` // consecutive failures before the alert fires
}

type Config struct {
	App struct {
		DataDir   string `yaml:"data_dir"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"app"`

	HTTP struct {
		Retries        int     `yaml:"retries"`
		BackoffSeconds float64 `yaml:"backoff_seconds"`
		ReqPerSec      float64 `yaml:"req_per_sec"`
		Burst          int     `yaml:"burst"`
	} `yaml:"http"`

	Filters struct {
		TitleKeywords       []string `yaml:"title_keywords"` // new-grad indicators
		RoleKeywords        []string `yaml:"role_keywords"`
		SeniorityExclusions []string `yaml:"seniority_exclusions"`
		SeniorityPatterns   []string `yaml:"seniority_patterns"`
		TitleExclusions     []string `yaml:"title_exclusions"`
		TitleExclusionAllow []string `yaml:"title_exclusion_allow"`
		BlockedLocations    []string `yaml:"blocked_locations"`
		PreferredLocations  []string `yaml:"preferred_locations"`
	} `yaml:"filters"`

	Sources struct {
		GitHub struct {
			Enabled bool                `yaml:"enabled"`
			Repos   []Repo              `yaml:"repos"`
			Aliases map[string][]string `yaml:"aliases"` // company -> name variants
		} `yaml:"github"`
		Careers struct {
			Enabled               bool      `yaml:"enabled"`
			Companies             []Company `yaml:"companies"`
			Workers               int       `yaml:"workers"`
			MinHealthySuccessRate float64   `yaml:"min_healthy_success_rate"`
			MinHealthySuccesses   int       `yaml:"min_healthy_successes"`
		} `yaml:"careers"`
	} `yaml:"sources"`

	Health struct {
		FailureAlertThresholds []AlertTier `yaml:"failure_alert_thresholds"`
		RecoveryWindow         int         `yaml:"recovery_window"`
		MinRecoverySuccesses   int         `yaml:"min_recovery_successes"`
		MinRecoverySuccessRate float64     `yaml:"min_recovery_success_rate"`
	} `yaml:"health"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// TargetCompanies derives the GitHub-source company allowlist from the
// configured career-page companies plus every alias, lower-cased, deduped
// and sorted. Keeping one source of truth avoids the lists drifting apart.
func (c Config) TargetCompanies() []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, co := range c.Sources.Careers.Companies {
		add(co.Name)
	}
	for name, aliases := range c.Sources.GitHub.Aliases {
		add(name)
		for _, a := range aliases {
			add(a)
		}
	}
	sort.Strings(out)
	return out
}
