package careers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
)

var leverSlugRes = []*regexp.Regexp{
	regexp.MustCompile(`jobs\.lever\.co/(\w+)`),
	regexp.MustCompile(`lever\.co/(\w+)`),
}

type leverPosting struct {
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	Categories struct {
		Location string `json:"location"`
	} `json:"categories"`
}

func (s *Scraper) scrapeLever(ctx context.Context, co config.Company) ([]domain.JobRecord, error) {
	slug := ""
	for _, re := range leverSlugRes {
		if m := re.FindStringSubmatch(co.URL); m != nil {
			slug = m[1]
			break
		}
	}
	if slug == "" {
		return s.scrapeGeneric(ctx, co)
	}

	apiURL := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", slug)
	resp, err := s.hc.Get(ctx, apiURL, nil)
	if err == nil && resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
		err = fmt.Errorf("lever %s: status %d", slug, resp.StatusCode)
	}
	if err != nil {
		jobs, gerr := s.scrapeGeneric(ctx, co)
		if gerr != nil || len(jobs) == 0 {
			return nil, err
		}
		return jobs, nil
	}
	defer resp.Body.Close()

	var postings []leverPosting
	if err := json.NewDecoder(resp.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("lever %s: decode: %w", slug, err)
	}

	var out []domain.JobRecord
	for _, p := range postings {
		if p.Text == "" || p.HostedURL == "" {
			continue
		}
		job := domain.JobRecord{
			Company:  co.Name,
			Title:    p.Text,
			URL:      p.HostedURL,
			Location: p.Categories.Location,
			Source:   domain.SourceCareers,
		}
		if s.keep(job) {
			out = append(out, job)
		}
	}
	return out, nil
}
