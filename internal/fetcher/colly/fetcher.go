// Package collyfetcher implements outreach.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/fundpilot/outreach/internal/outreach"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Fetcher performs single bounded GETs through a Colly collector.
// Unreachable pages are the expected common case for the site crawler,
// so every failure mode surfaces as an ordinary error for the caller
// to fold into "page unavailable".
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5500 * time.Millisecond
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 512 * 1024
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.MaxBodySize = cfg.MaxBodyBytes
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET and returns the page HTML truncated
// to the configured byte budget.
func (f *Fetcher) Fetch(ctx context.Context, url string) (outreach.FetchResult, error) {
	var (
		result   outreach.FetchResult
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if !isHTML(contentType) {
			fetchErr = fmt.Errorf("unsupported content type %q", contentType)
			return
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			fetchErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		body := r.Body
		if len(body) > f.cfg.MaxBodyBytes {
			body = body[:f.cfg.MaxBodyBytes]
		}
		result = outreach.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       string(body),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := f.visit(ctx, collector, url); err != nil {
		return outreach.FetchResult{}, err
	}
	if fetchErr != nil {
		return outreach.FetchResult{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if result.StatusCode == 0 {
		return outreach.FetchResult{}, fmt.Errorf("fetch %s: no response", url)
	}
	return result, nil
}

// visit runs the collector, honoring context cancellation on top of
// the collector's own request timeout.
func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	}
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
