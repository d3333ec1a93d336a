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

// Embed-style URLs carry the board token in a query parameter and the literal
// path segment "embed"; the specific patterns must win over the generic one.
var greenhouseBoardRes = []*regexp.Regexp{
	regexp.MustCompile(`greenhouse\.io/embed/job_board\?token=(\w+)`),
	regexp.MustCompile(`boards\.greenhouse\.io/embed\?for=(\w+)`),
	regexp.MustCompile(`boards\.greenhouse\.io/(\w+)`),
}

type greenhouseJob struct {
	ID       json.Number `json:"id"`
	Title    string      `json:"title"`
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	AbsoluteURL string `json:"absolute_url"`
}

// scrapeGreenhouse uses the public boards API when a board slug can be
// found, HTML scraping otherwise. If the API fails and the fallback comes
// back empty, the API error stands: an empty fallback is no proof the board
// is actually empty.
func (s *Scraper) scrapeGreenhouse(ctx context.Context, co config.Company) ([]domain.JobRecord, error) {
	board := s.findGreenhouseBoard(ctx, co.URL)
	if board == "" {
		return s.scrapeGeneric(ctx, co)
	}

	apiURL := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs", board)
	resp, err := s.hc.Get(ctx, apiURL, nil)
	if err == nil && resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
		err = fmt.Errorf("greenhouse board %s: status %d", board, resp.StatusCode)
	}
	if err != nil {
		jobs, gerr := s.scrapeGeneric(ctx, co)
		if gerr != nil || len(jobs) == 0 {
			return nil, err
		}
		return jobs, nil
	}
	defer resp.Body.Close()

	var payload struct {
		Jobs []greenhouseJob `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("greenhouse board %s: decode: %w", board, err)
	}

	var out []domain.JobRecord
	for _, gj := range payload.Jobs {
		if gj.Title == "" || gj.ID.String() == "" {
			continue
		}
		url := gj.AbsoluteURL
		if url == "" {
			url = fmt.Sprintf("https://boards.greenhouse.io/%s/jobs/%s", board, gj.ID.String())
		}
		job := domain.JobRecord{
			Company:  co.Name,
			Title:    gj.Title,
			URL:      url,
			Location: gj.Location.Name,
			Source:   domain.SourceCareers,
		}
		if s.keep(job) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *Scraper) findGreenhouseBoard(ctx context.Context, pageURL string) string {
	for _, re := range greenhouseBoardRes {
		if m := re.FindStringSubmatch(pageURL); m != nil && m[1] != "embed" {
			return m[1]
		}
	}

	// Board slug not in the URL; the career page usually embeds it.
	resp, err := s.hc.Get(ctx, pageURL, nil)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}
	for _, re := range greenhouseBoardRes {
		if m := re.FindSubmatch(body); m != nil && string(m[1]) != "embed" {
			return string(m[1])
		}
	}
	return ""
}
