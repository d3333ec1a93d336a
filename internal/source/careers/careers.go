// Package careers scrapes company career pages directly, going through the
// ATS JSON API (greenhouse, lever, workday) when one is configured and
// falling back to generic HTML link scraping otherwise. One run aggregates
// every per-company attempt into a single health outcome.
package careers

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/filter"
	"jobtrack-engine/internal/health"
	"jobtrack-engine/internal/httpclient"
	"jobtrack-engine/internal/source"
)

type Scraper struct {
	companies      []config.Company
	workers        int
	minSuccessRate float64
	minSuccesses   int
	hc             *httpclient.Client
	rules          *filter.Rules
}

func New(cfg config.Config, hc *httpclient.Client, rules *filter.Rules) *Scraper {
	return &Scraper{
		companies:      cfg.Sources.Careers.Companies,
		workers:        cfg.Sources.Careers.Workers,
		minSuccessRate: cfg.Sources.Careers.MinHealthySuccessRate,
		minSuccesses:   cfg.Sources.Careers.MinHealthySuccesses,
		hc:             hc,
		rules:          rules,
	}
}

func (s *Scraper) Name() string { return domain.SourceCareers }

type companyResult struct {
	company string
	jobs    []domain.JobRecord
	err     error
}

// Fetch scrapes every configured company through a bounded worker pool. The
// run counts as healthy only when enough companies scraped cleanly: a single
// 200 among a sea of timeouts is not a healthy careers run.
func (s *Scraper) Fetch(ctx context.Context) (source.Result, error) {
	workCh := make(chan config.Company)
	resCh := make(chan companyResult, len(s.companies))

	var wg sync.WaitGroup
	wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func() {
			defer wg.Done()
			for co := range workCh {
				cctx, cancel := context.WithTimeout(ctx, 45*time.Second)
				jobs, err := s.scrapeCompany(cctx, co)
				cancel()
				resCh <- companyResult{company: co.Name, jobs: jobs, err: err}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, co := range s.companies {
			select {
			case <-ctx.Done():
				return
			case workCh <- co:
			}
		}
	}()

	wg.Wait()
	close(resCh)

	res := source.Result{Outcome: health.Outcome{Attempts: len(s.companies)}}
	var errs []string
	for r := range resCh {
		if r.err != nil {
			log.Printf("[careers] %s: %v", r.company, r.err)
			errs = append(errs, r.company+": "+r.err.Error())
			continue
		}
		res.Outcome.Successes++
		log.Printf("[careers] %s: %d matching jobs", r.company, len(r.jobs))
		res.Jobs = append(res.Jobs, r.jobs...)
	}

	res.Outcome.Success = s.healthy(res.Outcome)
	res.Outcome.Err = strings.Join(errs, "; ")
	return res, nil
}

func (s *Scraper) healthy(oc health.Outcome) bool {
	if oc.Attempts == 0 {
		return false
	}
	rate := float64(oc.Successes) / float64(oc.Attempts)
	return rate >= s.minSuccessRate && oc.Successes >= s.minSuccesses
}

func (s *Scraper) scrapeCompany(ctx context.Context, co config.Company) ([]domain.JobRecord, error) {
	var (
		jobs []domain.JobRecord
		err  error
	)
	switch co.ATS {
	case "greenhouse":
		jobs, err = s.scrapeGreenhouse(ctx, co)
	case "lever":
		jobs, err = s.scrapeLever(ctx, co)
	case "workday":
		jobs, err = s.scrapeWorkday(ctx, co)
	default:
		jobs, err = s.scrapeGeneric(ctx, co)
	}
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// keep applies the careers pre-filter (role keywords) and the shared
// predicate. Career pages carry clean location data, so RequireLocation
// enforces the preferred-location list here.
func (s *Scraper) keep(job domain.JobRecord) bool {
	if !s.rules.HasRoleKeyword(job.Title) {
		return false
	}
	return s.rules.Qualifies(job, filter.Options{RequireLocation: true})
}
