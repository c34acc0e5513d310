// Package crawler implements the bounded single-target site crawl.
package crawler

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/extract"
	"github.com/fundpilot/outreach/internal/metrics"
	"github.com/fundpilot/outreach/internal/outreach"
)

// seedPaths are tried on every target in addition to the root page.
var seedPaths = []string{
	"/about", "/team", "/contact", "/founders",
	"/portfolio", "/companies", "/apply", "/submit",
}

var (
	formTagPattern   = regexp.MustCompile(`(?i)<form[\s>]`)
	formTextPattern  = regexp.MustCompile(`(?i)(submit your|pitch us|send us your|get in touch|contact us|apply for funding|submission)`)
	formInputPattern = regexp.MustCompile(`(?i)(<input|type="email"|<textarea)`)
	formPathPattern  = regexp.MustCompile(`(?i)/(contact|apply|submit|founders?)`)
)

// Config bounds a crawl session.
type Config struct {
	MaxPages    int
	MaxLinks    int
	MaxTextSize int
}

// Result is the outcome of crawling one target website. A crawl never
// fails; a site with no reachable pages simply yields zero pages.
type Result struct {
	Website      string
	Pages        []outreach.Page
	PagesCrawled int
}

// Text concatenates the extracted text of every crawled page.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// BestFormPage returns the crawled page with the highest form score,
// or false when nothing was crawled.
func (r Result) BestFormPage() (outreach.Page, bool) {
	if len(r.Pages) == 0 {
		return outreach.Page{}, false
	}
	best := r.Pages[0]
	for _, p := range r.Pages[1:] {
		if p.FormScore > best.FormScore {
			best = p
		}
	}
	return best, true
}

// Crawler walks one target website breadth-first within a page budget.
// Pages are processed strictly one at a time so per-target log order
// stays deterministic.
type Crawler struct {
	fetcher outreach.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Crawler.
func New(fetcher outreach.Fetcher, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 6
	}
	if cfg.MaxTextSize <= 0 {
		cfg.MaxTextSize = 40_000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Crawl visits the seed paths plus discovered relevant links, stopping
// at the page budget. Unreachable pages are skipped silently; they are
// the normal case, not an anomaly.
func (c *Crawler) Crawl(ctx context.Context, website string) Result {
	result := Result{Website: website}

	origin, ok := normalizeOrigin(website)
	if !ok {
		c.logger.Warn("unusable target website", zap.String("website", website))
		return result
	}

	queue := []string{origin.String()}
	for _, p := range seedPaths {
		queue = append(queue, origin.String()+p)
	}
	visited := map[string]struct{}{}

	for len(queue) > 0 && result.PagesCrawled < c.cfg.MaxPages {
		pageURL := queue[0]
		queue = queue[1:]
		if _, seen := visited[pageURL]; seen {
			continue
		}
		visited[pageURL] = struct{}{}

		fetched, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			// Transient page failure: fold into "unavailable".
			metrics.PageFetched("unavailable")
			c.logger.Debug("page unavailable", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		metrics.PageFetched("ok")
		result.PagesCrawled++

		text := extract.Text(fetched.HTML, c.cfg.MaxTextSize)
		links := extract.Links(fetched.HTML, fetched.URL)
		page := outreach.Page{
			URL:       fetched.URL,
			Text:      text,
			FormScore: FormScore(fetched.URL, fetched.HTML, text),
			Links:     links,
		}
		result.Pages = append(result.Pages, page)

		queue = c.enqueueLinks(queue, visited, links, origin.Hostname())
	}

	c.logger.Debug("crawl finished",
		zap.String("website", website),
		zap.Int("pages", result.PagesCrawled),
	)
	return result
}

// enqueueLinks adds newly discovered links while keeping the combined
// queued+visited size under twice the page budget. Links are checked
// against the crawl origin's host: after a cross-host redirect the
// page's own links resolve against the redirect target, and those must
// never enter the queue.
func (c *Crawler) enqueueLinks(queue []string, visited map[string]struct{}, links []string, originHost string) []string {
	limit := 2 * c.cfg.MaxPages
	if c.cfg.MaxLinks > 0 && c.cfg.MaxLinks < limit {
		limit = c.cfg.MaxLinks
	}
	for _, link := range links {
		if len(queue)+len(visited) >= limit {
			break
		}
		if !sameHost(link, originHost) {
			continue
		}
		if _, seen := visited[link]; seen {
			continue
		}
		queue = append(queue, link)
	}
	return queue
}

func sameHost(link, host string) bool {
	u, err := url.Parse(link)
	return err == nil && strings.EqualFold(u.Hostname(), host)
}

// FormScore estimates whether a page carries a usable submission form.
// A page "has a form" when the score reaches 4.
func FormScore(pageURL, html, text string) int {
	score := 0
	if formTagPattern.MatchString(html) {
		score += 3
	}
	if formTextPattern.MatchString(text) {
		score += 2
	}
	if formInputPattern.MatchString(html) {
		score++
	}
	if u, err := url.Parse(pageURL); err == nil && formPathPattern.MatchString(u.Path) {
		score++
	}
	return score
}

// normalizeOrigin reduces a website value to its scheme+host origin.
func normalizeOrigin(website string) (*url.URL, bool) {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return nil, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, true
}
