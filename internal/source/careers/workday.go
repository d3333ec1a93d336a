package careers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
)

type workdayPosting struct {
	Title         string `json:"title"`
	JobTitle      string `json:"jobTitle"`
	ExternalPath  string `json:"externalPath"`
	ExternalURL   string `json:"externalUrl"`
	LocationsText string `json:"locationsText"`
	Location      string `json:"location"`
}

type workdayPage struct {
	JobPostings   []workdayPosting `json:"jobPostings"`
	JobPostingsV2 []workdayPosting `json:"jobPostingsV2"`
	Total         int              `json:"total"`
}

// scrapeWorkday pages through the CXS jobs endpoint:
// POST https://{tenant}.wdN.myworkdayjobs.com/wday/cxs/{tenant}/{site}/jobs
func (s *Scraper) scrapeWorkday(ctx context.Context, co config.Company) ([]domain.JobRecord, error) {
	tenant, site, base, err := workdayTenantSite(co.URL)
	if err != nil {
		return nil, err
	}
	apiURL := fmt.Sprintf("%s/wday/cxs/%s/%s/jobs", base, tenant, site)

	const limit = 50
	var out []domain.JobRecord
	offset := 0
	total := -1

	for {
		resp, err := s.hc.PostJSON(ctx, apiURL, map[string]int{"limit": limit, "offset": offset})
		if err != nil {
			return nil, fmt.Errorf("workday %s: %w", tenant, err)
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			return nil, fmt.Errorf("workday %s: status %d", tenant, resp.StatusCode)
		}

		var page workdayPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("workday %s: decode: %w", tenant, err)
		}

		postings := page.JobPostings
		if len(postings) == 0 {
			postings = page.JobPostingsV2
		}
		if len(postings) == 0 {
			break
		}

		for _, p := range postings {
			job, ok := workdayJob(co.Name, p, base)
			if ok && s.keep(job) {
				out = append(out, job)
			}
		}

		if total < 0 {
			total = page.Total
		}
		offset += len(postings)
		if total >= 0 && offset >= total {
			break
		}
	}
	return out, nil
}

func workdayJob(company string, p workdayPosting, base string) (domain.JobRecord, bool) {
	title := p.Title
	if title == "" {
		title = p.JobTitle
	}
	path := p.ExternalPath
	if path == "" {
		path = p.ExternalURL
	}
	location := p.LocationsText
	if location == "" {
		location = p.Location
	}
	if title == "" || path == "" {
		return domain.JobRecord{}, false
	}

	jobURL := path
	if !strings.HasPrefix(path, "http") {
		jobURL = base + "/" + strings.TrimPrefix(path, "/")
	}
	return domain.JobRecord{
		Company:  company,
		Title:    title,
		URL:      jobURL,
		Location: location,
		Source:   domain.SourceCareers,
	}, true
}

// workdayTenantSite splits e.g.
// https://zillow.wd5.myworkdayjobs.com/Zillow_Group_External
// into (zillow, Zillow_Group_External, https://zillow.wd5.myworkdayjobs.com).
func workdayTenantSite(raw string) (tenant, site, base string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("workday url %q: %w", raw, err)
	}
	host := u.Hostname()
	if !strings.HasSuffix(host, ".myworkdayjobs.com") {
		return "", "", "", fmt.Errorf("workday url %q: not a myworkdayjobs host", raw)
	}
	tenant = strings.Split(host, ".")[0]

	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			site = part
			break
		}
	}
	if site == "" {
		return "", "", "", fmt.Errorf("workday url %q: missing site path", raw)
	}
	return tenant, site, "https://" + u.Host, nil
}
