// Package extract turns raw HTML into plain text and crawlable links.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// relevantPathKeywords mark links worth following during a site crawl.
var relevantPathKeywords = []string{
	"contact", "apply", "founder", "pitch", "submission", "submit",
	"invest", "portfolio", "thesis", "about", "team", "companies", "focus",
}

// Text strips markup, script, style, noscript and svg content from the
// document and returns whitespace-collapsed plain text truncated to
// maxChars. Unparseable input degrades to an empty string.
func Text(html string, maxChars int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, svg").Remove()
	text := whitespace.ReplaceAllString(doc.Text(), " ")
	text = strings.TrimSpace(text)
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

// Links extracts same-host anchor targets whose path contains one of
// the relevance keywords, resolved into absolute form against pageURL.
// Fragment-only, mailto, tel and cross-host targets are discarded.
func Links(html string, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !strings.EqualFold(resolved.Hostname(), base.Hostname()) {
			return
		}
		if !RelevantPath(resolved.Path) {
			return
		}
		resolved.Fragment = ""
		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// RelevantPath reports whether a URL path looks related to outreach
// research (contact pages, submission forms, portfolio pages...).
func RelevantPath(path string) bool {
	lower := strings.ToLower(path)
	for _, kw := range relevantPathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
