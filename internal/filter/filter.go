// Package filter decides whether a scraped posting qualifies: not senior,
// not an excluded role, not in a blocked region, and (for sources with clean
// location data) in a preferred region. All keyword matching is word-boundary
// based so short tokens like "us" never match inside words like "campus".
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
)

// Options selects per-source strictness for the shared predicate.
type Options struct {
	// RequireLocation enforces the preferred-location list when a location
	// is present. An empty location never disqualifies: some sources simply
	// omit it, and "unknown" is not "out of region".
	RequireLocation bool
}

type Rules struct {
	newGradKeywords []string
	roleKeywords    []string

	seniorKeywords []*regexp.Regexp
	seniorPatterns []*regexp.Regexp
	titleExclude   []*regexp.Regexp
	titleAllow     []*regexp.Regexp
	blocked        []*regexp.Regexp
	preferred      []*regexp.Regexp

	targetCompanies []string
}

// Matches titles like "SDE I" / "Engineer 1" — explicit entry-level markers
// that rescue an otherwise senior-looking new-grad title.
var levelOneRe = regexp.MustCompile(`\b(?:sde|swe|engineer|developer)\s*(?:i|1)\b`)

// US spellings vary a lot ("US", "U.S.", "U.S.A."); one pattern covers them.
var usRe = regexp.MustCompile(`\bu\.?s\.?(?:a\.?)?\b`)

func New(cfg config.Config) (*Rules, error) {
	r := &Rules{
		newGradKeywords: lowerAll(cfg.Filters.TitleKeywords),
		roleKeywords:    lowerAll(cfg.Filters.RoleKeywords),
		targetCompanies: cfg.TargetCompanies(),
	}

	var err error
	if r.seniorKeywords, err = compileTokens(cfg.Filters.SeniorityExclusions); err != nil {
		return nil, fmt.Errorf("seniority_exclusions: %w", err)
	}
	for _, p := range cfg.Filters.SeniorityPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("seniority_patterns %q: %w", p, err)
		}
		r.seniorPatterns = append(r.seniorPatterns, re)
	}
	if r.titleExclude, err = compileTokens(cfg.Filters.TitleExclusions); err != nil {
		return nil, fmt.Errorf("title_exclusions: %w", err)
	}
	if r.titleAllow, err = compileTokens(cfg.Filters.TitleExclusionAllow); err != nil {
		return nil, fmt.Errorf("title_exclusion_allow: %w", err)
	}
	if r.blocked, err = compileTokens(cfg.Filters.BlockedLocations); err != nil {
		return nil, fmt.Errorf("blocked_locations: %w", err)
	}
	if r.preferred, err = compileTokens(cfg.Filters.PreferredLocations); err != nil {
		return nil, fmt.Errorf("preferred_locations: %w", err)
	}
	return r, nil
}

// Qualifies runs the shared AND'ed checks. Source-specific pre-filters
// (company allowlist, role keywords) run before this in the adapters.
func (r *Rules) Qualifies(j domain.JobRecord, opts Options) bool {
	title := strings.ToLower(j.Title)

	if r.HasExcludedTitle(title) {
		return false
	}

	if r.IsSeniorLevel(title) {
		// "SDE I - New Grad" carries a roman-numeral pattern hit but is
		// entry level; keep it only with both a new-grad keyword and an
		// explicit level-one marker.
		if !(r.HasNewGradIndicator(title) && levelOneRe.MatchString(title)) {
			return false
		}
	}

	if r.HasBlockedLocation(j.Location) {
		return false
	}

	if opts.RequireLocation && j.Location != "" && !r.MatchesPreferredLocation(j.Location) {
		return false
	}

	return true
}

// IsSeniorLevel reports whether the title carries a senior keyword or a
// seniority pattern (roman numerals II+, SDE 2, L4, "3+ years", ...).
// Graduation years like 2026 don't trip the numeric patterns: the digit
// needs a word boundary right after it.
func (r *Rules) IsSeniorLevel(title string) bool {
	title = strings.ToLower(title)
	return matchAny(r.seniorKeywords, title) || matchAny(r.seniorPatterns, title)
}

// HasExcludedTitle reports whether the title names a non-target role
// (sales, QA, mobile, ...). An allow pattern overrides the exclusion.
func (r *Rules) HasExcludedTitle(title string) bool {
	title = strings.ToLower(title)
	if matchAny(r.titleAllow, title) {
		return false
	}
	return matchAny(r.titleExclude, title)
}

// HasBlockedLocation reports whether the location names a non-target region.
// "Remote" gets special treatment: a US qualifier allows it, a blocked region
// or no qualifier at all blocks it (bare "Remote" usually means worldwide).
func (r *Rules) HasBlockedLocation(location string) bool {
	if location == "" {
		return false
	}
	loc := strings.ToLower(location)

	if strings.Contains(loc, "remote") {
		if usRe.MatchString(loc) || strings.Contains(loc, "united states") || strings.Contains(loc, "america") {
			return false
		}
		if matchAny(r.blocked, loc) {
			return true
		}
		stripped := strings.Trim(strings.ReplaceAll(loc, "remote", ""), " -,/")
		return stripped == ""
	}

	return matchAny(r.blocked, loc)
}

// MatchesPreferredLocation reports whether the location hits the preferred
// list. An empty list or an empty location always matches.
func (r *Rules) MatchesPreferredLocation(location string) bool {
	if len(r.preferred) == 0 || location == "" {
		return true
	}
	return matchAny(r.preferred, strings.ToLower(location))
}

// HasNewGradIndicator reports whether the title is explicitly aimed at new
// grads ("new grad", "entry level", a graduation year, ...).
func (r *Rules) HasNewGradIndicator(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range r.newGradKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// HasRoleKeyword reports whether the title looks like a software role at all.
// The careers source pre-filters on this before the shared predicate.
func (r *Rules) HasRoleKeyword(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range r.roleKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// MatchesTargetCompany resolves the GitHub-source company allowlist with
// alias variants. Short targets (<= 2 chars, e.g. "f5") only match the whole
// company name so they never pick out substrings of longer names.
func (r *Rules) MatchesTargetCompany(company string) bool {
	name := strings.ToLower(strings.TrimSpace(company))
	for _, target := range r.targetCompanies {
		if len(target) <= 2 {
			if name == target {
				return true
			}
			continue
		}
		if strings.Contains(name, target) {
			return true
		}
	}
	return false
}

// compileTokens turns plain config tokens into case-insensitive
// word-boundary patterns. "us" gets the dotted-variant pattern.
func compileTokens(tokens []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if tok == "us" {
			out = append(out, usRe)
			continue
		}
		expr := `\b` + regexp.QuoteMeta(tok)
		// A trailing \b after a non-word rune (e.g. "sr.") never matches;
		// only close the boundary when the token ends in a word rune.
		if isWordByte(tok[len(tok)-1]) {
			expr += `\b`
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("token %q: %w", tok, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func lowerAll(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		x = strings.ToLower(strings.TrimSpace(x))
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
