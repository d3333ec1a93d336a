// Package github tracks job listings published as markdown tables in GitHub
// repos (SimplifyJobs-style README lists).
package github

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/filter"
	"jobtrack-engine/internal/health"
	"jobtrack-engine/internal/httpclient"
	"jobtrack-engine/internal/source"
)

type Tracker struct {
	repos []config.Repo
	hc    *httpclient.Client
	rules *filter.Rules
}

func New(repos []config.Repo, hc *httpclient.Client, rules *filter.Rules) *Tracker {
	return &Tracker{repos: repos, hc: hc, rules: rules}
}

func (t *Tracker) Name() string { return domain.SourceGitHub }

// Fetch pulls every configured repo file and keeps the rows that hit the
// target-company allowlist and pass the shared predicate. A repo run is
// binary: any repo fetch failure fails the whole source run.
func (t *Tracker) Fetch(ctx context.Context) (source.Result, error) {
	res := source.Result{Outcome: health.Outcome{Attempts: len(t.repos)}}

	var errs []string
	for _, repo := range t.repos {
		jobs, err := t.fetchRepo(ctx, repo)
		if err != nil {
			log.Printf("[github] %s/%s: %v", repo.Owner, repo.Repo, err)
			errs = append(errs, err.Error())
			continue
		}
		res.Outcome.Successes++
		res.Jobs = append(res.Jobs, jobs...)
	}

	res.Outcome.Success = len(errs) == 0
	res.Outcome.Err = strings.Join(errs, "; ")
	return res, nil
}

func (t *Tracker) fetchRepo(ctx context.Context, repo config.Repo) ([]domain.JobRecord, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/%s", repo.Owner, repo.Repo, repo.File)

	header := http.Header{}
	header.Set("Accept", "application/vnd.github.v3.raw")

	resp, err := t.hc.Get(ctx, url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s/%s: status %d", repo.Owner, repo.Repo, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", repo.Owner, repo.Repo, err)
	}

	return t.parseTable(string(body)), nil
}

// parseTable walks the markdown job table:
// | Company | Role | Location | Application/Link | Date Posted |
func (t *Tracker) parseTable(content string) []domain.JobRecord {
	var jobs []domain.JobRecord
	inTable := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "|--") || strings.HasPrefix(line, "| --") {
			continue
		}
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			continue
		}

		cells := strings.Split(line, "|")
		cells = cells[1 : len(cells)-1]
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if len(cells) < 4 {
			continue
		}

		head := strings.ToLower(cells[0])
		if strings.Contains(head, "company") || strings.Contains(head, "role") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}

		job, ok := parseRow(cells)
		if !ok {
			continue
		}
		if t.keep(job) {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func parseRow(cells []string) (domain.JobRecord, bool) {
	job := domain.JobRecord{
		Company: ExtractText(cells[0]),
		Title:   ExtractText(cells[1]),
		Source:  domain.SourceGitHub,
	}
	if len(cells) > 2 {
		job.Location = ExtractText(cells[2])
	}
	if len(cells) > 3 {
		job.URL = ExtractURL(cells[3])
	}
	if len(cells) > 4 {
		job.DatePosted = ExtractText(cells[4])
	}
	if job.Company == "" || job.URL == "" {
		return domain.JobRecord{}, false
	}
	return job, true
}

// keep applies the github-specific pre-filter (company allowlist with alias
// resolution, preferred locations) before the shared predicate. This source
// has messy location strings, so the predicate runs without RequireLocation.
func (t *Tracker) keep(job domain.JobRecord) bool {
	if !t.rules.MatchesTargetCompany(job.Company) {
		return false
	}
	if job.Location != "" && !t.rules.MatchesPreferredLocation(job.Location) {
		return false
	}
	return t.rules.Qualifies(job, filter.Options{RequireLocation: false})
}
