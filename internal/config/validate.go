package config

import (
	"fmt"
	"sort"
	"strings"
)

type Validation struct {
	Errors   []string
	Warnings []string
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy: keyword lists trimmed,
// lower-cased and deduped, defaults filled in, plus any validation findings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.ToLower(strings.TrimSpace(x))
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.TitleKeywords = trimList(out.Filters.TitleKeywords)
	out.Filters.RoleKeywords = trimList(out.Filters.RoleKeywords)
	out.Filters.SeniorityExclusions = trimList(out.Filters.SeniorityExclusions)
	out.Filters.TitleExclusions = trimList(out.Filters.TitleExclusions)
	out.Filters.TitleExclusionAllow = trimList(out.Filters.TitleExclusionAllow)
	out.Filters.BlockedLocations = trimList(out.Filters.BlockedLocations)
	out.Filters.PreferredLocations = trimList(out.Filters.PreferredLocations)

	// ---- defaults ----

	if out.App.BatchSize <= 0 {
		out.App.BatchSize = 10
	}
	if out.HTTP.Retries <= 0 {
		out.HTTP.Retries = 3
	}
	if out.HTTP.BackoffSeconds <= 0 {
		out.HTTP.BackoffSeconds = 0.5
	}
	if out.HTTP.ReqPerSec <= 0 {
		out.HTTP.ReqPerSec = 2
	}
	if out.HTTP.Burst <= 0 {
		out.HTTP.Burst = 4
	}
	if out.Sources.Careers.Workers <= 0 {
		out.Sources.Careers.Workers = 6
	}
	if out.Sources.Careers.MinHealthySuccessRate <= 0 {
		out.Sources.Careers.MinHealthySuccessRate = 0.5
	}
	if out.Sources.Careers.MinHealthySuccesses <= 0 {
		out.Sources.Careers.MinHealthySuccesses = 2
	}
	if len(out.Health.FailureAlertThresholds) == 0 {
		out.Health.FailureAlertThresholds = []AlertTier{
			{Tier: "warning", After: 3},
			{Tier: "critical", After: 5},
		}
	}
	if out.Health.RecoveryWindow <= 0 {
		out.Health.RecoveryWindow = 5
	}
	if out.Health.MinRecoverySuccesses <= 0 {
		out.Health.MinRecoverySuccesses = 3
	}
	if out.Health.MinRecoverySuccessRate <= 0 {
		out.Health.MinRecoverySuccessRate = 0.8
	}

	// Tiers must escalate; the tracker walks them in threshold order.
	sort.Slice(out.Health.FailureAlertThresholds, func(i, j int) bool {
		return out.Health.FailureAlertThresholds[i].After < out.Health.FailureAlertThresholds[j].After
	})

	// ---- validation ----

	if !out.Sources.GitHub.Enabled && !out.Sources.Careers.Enabled {
		res.addErr("no sources enabled: enable sources.github or sources.careers")
	}
	if out.Sources.GitHub.Enabled && len(out.Sources.GitHub.Repos) == 0 {
		res.addErr("sources.github enabled but no repos configured")
	}
	if out.Sources.Careers.Enabled && len(out.Sources.Careers.Companies) == 0 {
		res.addErr("sources.careers enabled but no companies configured")
	}
	for _, co := range out.Sources.Careers.Companies {
		switch co.ATS {
		case "", "internal", "greenhouse", "lever", "workday":
		default:
			res.addErr("company %q: unknown ats %q", co.Name, co.ATS)
		}
		if co.URL == "" {
			res.addErr("company %q: missing url", co.Name)
		}
	}
	for name := range out.Sources.GitHub.Aliases {
		found := false
		for _, co := range out.Sources.Careers.Companies {
			if strings.EqualFold(co.Name, name) {
				found = true
				break
			}
		}
		if !found {
			res.addWarn("aliases key %q does not match any configured company", name)
		}
	}
	if out.Sources.Careers.MinHealthySuccessRate > 1 {
		res.addErr("sources.careers.min_healthy_success_rate must be <= 1")
	}
	if out.Health.MinRecoverySuccessRate > 1 {
		res.addErr("health.min_recovery_success_rate must be <= 1")
	}
	seenAfter := map[int]bool{}
	for _, t := range out.Health.FailureAlertThresholds {
		if t.After <= 0 {
			res.addErr("health tier %q: after must be positive", t.Tier)
		}
		if seenAfter[t.After] {
			res.addErr("health tiers share threshold %d", t.After)
		}
		seenAfter[t.After] = true
	}

	return out, res
}
