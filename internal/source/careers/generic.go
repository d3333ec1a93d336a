package careers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
)

var skipLinkWords = []string{"login", "sign", "about", "contact", "privacy", "terms", "blog"}

var jobURLHints = []string{"/job", "/position", "/opening", "/career", "/apply"}

// scrapeGeneric is the best-effort HTML path for career pages without a
// known ATS: walk every anchor and keep the ones that look like postings.
// Locations rarely survive this path, which is fine — the shared predicate
// treats a missing location as unknown.
func (s *Scraper) scrapeGeneric(ctx context.Context, co config.Company) ([]domain.JobRecord, error) {
	resp, err := s.hc.Get(ctx, co.URL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", co.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", co.URL, err)
	}

	base, err := url.Parse(co.URL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []domain.JobRecord

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		text := cleanText(a.Text())
		if href == "" || text == "" {
			return
		}
		if !s.looksLikeJobLink(href, text) {
			return
		}

		abs := href
		if ref, err := url.Parse(href); err == nil {
			abs = base.ResolveReference(ref).String()
		}
		if seen[abs] {
			return
		}
		seen[abs] = true

		job := domain.JobRecord{
			Company:  co.Name,
			Title:    text,
			URL:      abs,
			Location: "", // not reliably extractable from arbitrary pages
			Source:   domain.SourceCareers,
		}
		if s.keep(job) {
			out = append(out, job)
		}
	})

	return out, nil
}

func (s *Scraper) looksLikeJobLink(href, text string) bool {
	h := strings.ToLower(href)
	t := strings.ToLower(text)

	for _, w := range skipLinkWords {
		if strings.Contains(h, w) || strings.Contains(t, w) {
			return false
		}
	}
	for _, hint := range jobURLHints {
		if strings.Contains(h, hint) {
			return true
		}
	}
	return s.rules.HasRoleKeyword(t)
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
