// Package httpclient is the one retrying transport every outbound caller
// shares: source adapters retry 429/5xx with exponential backoff, while the
// webhook dispatcher runs with status retries disabled so a slow-but-landed
// POST is never sent twice.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Options struct {
	Timeout              time.Duration
	Retries              int // attempts beyond the first
	Backoff              time.Duration
	ReqPerSec            float64
	Burst                int
	UserAgent            string
	DisableStatusRetries bool
}

type Client struct {
	hc            *http.Client
	limiter       *HostLimiter
	retries       int
	backoff       time.Duration
	userAgent     string
	retryStatuses bool
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.ReqPerSec <= 0 {
		opts.ReqPerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "JobTrack/1.0 (+local)"
	}
	return &Client{
		hc:            &http.Client{Timeout: opts.Timeout},
		limiter:       NewHostLimiter(opts.ReqPerSec, opts.Burst),
		retries:       opts.Retries,
		backoff:       opts.Backoff,
		userAgent:     opts.UserAgent,
		retryStatuses: !opts.DisableStatusRetries,
	}
}

// Get fetches the URL with retries and returns the final response. The
// caller owns the body. Non-2xx responses are returned, not turned into
// errors; callers decide what a bad status means for their source.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return c.do(ctx, url, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	})
}

// PostJSON marshals the payload once and rebuilds the request per attempt so
// retries replay the full body.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return c.do(ctx, url, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, url string, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := c.limiter.WaitURL(ctx, url); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		res, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if c.retryStatuses && retryableStatus(res.StatusCode) && attempt < c.retries {
			lastErr = fmt.Errorf("status %d", res.StatusCode)
			io.Copy(io.Discard, res.Body) //nolint:errcheck
			res.Body.Close()
			continue
		}
		return res, nil
	}

	return nil, fmt.Errorf("request %s: %w", url, lastErr)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
