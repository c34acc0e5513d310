// Package qualify infers target attributes and a fit score from
// crawled website text. Everything here is deterministic: the same
// text and prior attributes always produce the same assessment, and
// missing data degrades to documented fallbacks instead of errors.
package qualify

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/fundpilot/outreach/internal/crawler"
	"github.com/fundpilot/outreach/internal/outreach"
)

// maxTextChars bounds the concatenated crawl text considered by the
// heuristics.
const maxTextChars = 220_000

// Scoring weights. The baseline applies to every target; the remaining
// weights reward overlap with the sender profile.
const (
	scoreBaseline   = 0.24
	scorePerSector  = 0.12
	scoreSectorCap  = 0.36
	scoreStageMatch = 0.28
	scoreStageMiss  = 0.16
	scoreGeoMatch   = 0.18
	scoreGeoMiss    = 0.10
	confidenceFloor = 0.45
	confidencePerPg = 0.07
	confidencePgCap = 0.40
	confidenceForm  = 0.08
)

// Assessment bundles every independently derived qualifier output.
type Assessment struct {
	Geography      string
	Category       string
	Sectors        []string
	StageFocus     []string
	GeographyFocus []string
	CheckSize      string
	FormVerdict    outreach.FormVerdict
	FormURL        string
	Score          float64
	Qualifies      bool
	NextStage      outreach.Stage
	Confidence     float64
}

type keywordSet struct {
	label    string
	patterns []*regexp.Regexp
}

func newKeywordSet(label string, words ...string) keywordSet {
	ks := keywordSet{label: label}
	for _, w := range words {
		ks.patterns = append(ks.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return ks
}

func (ks keywordSet) hits(text string) int {
	total := 0
	for _, p := range ks.patterns {
		total += len(p.FindAllStringIndex(text, -1))
	}
	return total
}

var geographySets = []keywordSet{
	newKeywordSet("USA", "united states", "usa", "silicon valley", "san francisco", "new york", "california", "boston"),
	newKeywordSet("UK", "united kingdom", "london", "england", "british"),
	newKeywordSet("Germany", "germany", "berlin", "munich"),
	newKeywordSet("France", "france", "paris"),
	newKeywordSet("UAE", "dubai", "abu dhabi", "united arab emirates", "uae"),
	newKeywordSet("Saudi Arabia", "saudi arabia", "riyadh"),
	newKeywordSet("India", "india", "bangalore", "mumbai"),
	newKeywordSet("Singapore", "singapore"),
	newKeywordSet("Europe", "europe", "european"),
}

// tldCountries maps website top-level domains to a geography label.
var tldCountries = map[string]string{
	"uk": "UK",
	"de": "Germany",
	"fr": "France",
	"ae": "UAE",
	"sa": "Saudi Arabia",
	"in": "India",
	"sg": "Singapore",
	"us": "USA",
	"eu": "Europe",
}

var sectorSets = []keywordSet{
	newKeywordSet("AI", "artificial intelligence", "machine learning", "ai-powered", "deep learning", "llm"),
	newKeywordSet("MarTech", "martech", "marketing technology", "adtech", "marketing automation"),
	newKeywordSet("HealthTech", "healthtech", "healthcare", "digital health", "medtech", "biotech"),
	newKeywordSet("FinTech", "fintech", "financial technology", "payments", "banking", "insurtech"),
	newKeywordSet("SaaS", "saas", "software as a service", "b2b software", "enterprise software"),
	newKeywordSet("E-commerce", "e-commerce", "ecommerce", "marketplace", "direct-to-consumer", "d2c"),
	newKeywordSet("Climate", "climate", "cleantech", "sustainability", "carbon", "renewable"),
	newKeywordSet("Cybersecurity", "cybersecurity", "security", "infosec", "zero trust"),
	newKeywordSet("EdTech", "edtech", "education technology", "learning platform"),
	newKeywordSet("Mobility", "mobility", "transportation", "logistics", "automotive"),
}

var stageSets = []keywordSet{
	newKeywordSet("Pre-Seed", "pre-seed", "preseed", "pre seed"),
	newKeywordSet("Seed", "seed stage", "seed round", "seed investments", "seed"),
	newKeywordSet("Series A", "series a"),
	newKeywordSet("Series B", "series b"),
	newKeywordSet("Series C", "series c"),
	newKeywordSet("Growth", "growth stage", "growth equity", "late stage"),
}

var geoFocusSets = []keywordSet{
	newKeywordSet("Global", "global", "worldwide", "internationally"),
	newKeywordSet("European Businesses", "european startups", "european founders", "across europe", "europe"),
	newKeywordSet("U.S. Businesses", "us startups", "american startups", "united states", "u.s. companies", "north america"),
	newKeywordSet("Middle East", "middle east", "mena", "gcc", "gulf"),
	newKeywordSet("Asia-Pacific", "asia-pacific", "apac", "southeast asia", "asia"),
}

// geographyToFocus maps a resolved geography to an investment focus
// label so text-free targets still get a sensible default.
var geographyToFocus = map[string]string{
	"USA":          "U.S. Businesses",
	"UK":           "European Businesses",
	"Germany":      "European Businesses",
	"France":       "European Businesses",
	"Europe":       "European Businesses",
	"UAE":          "Middle East",
	"Saudi Arabia": "Middle East",
	"India":        "Asia-Pacific",
	"Singapore":    "Asia-Pacific",
}

// stageCheckSizes maps a detected funding stage to a check bracket.
var stageCheckSizes = map[string]string{
	"Pre-Seed": "$50K-$250K",
	"Seed":     "$100K-$1M",
	"Series A": "$1M-$5M",
	"Series B": "$5M-$15M",
	"Series C": "$10M-$30M",
	"Growth":   "$10M+",
}

var checkSizePattern = regexp.MustCompile(`(?i)([$€£]\s?\d[\d,.]*\s?[kKmM]?)\s*(?:-|–|to)\s*([$€£]?\s?\d[\d,.]*\s?[kKmM])`)

// Qualifier scores targets against a fixed sender profile.
type Qualifier struct {
	sender    outreach.SenderProfile
	threshold float64
}

// New constructs a Qualifier. threshold is the qualification gate the
// orchestrator applies; it is configuration, not a constant.
func New(sender outreach.SenderProfile, threshold float64) *Qualifier {
	if threshold <= 0 {
		threshold = 0.55
	}
	return &Qualifier{sender: sender, threshold: threshold}
}

// Qualify derives every assessment output from the crawl result and
// the target's pre-existing attributes. It never fails.
func (q *Qualifier) Qualify(target outreach.Target, crawl crawler.Result) Assessment {
	text := crawl.Text()
	if len(text) > maxTextChars {
		text = text[:maxTextChars]
	}

	a := Assessment{
		Geography:  q.geography(target, text),
		Category:   q.category(target, text),
		Sectors:    q.sectors(target, text),
		StageFocus: q.stageFocus(target, text),
		CheckSize:  "",
	}
	a.GeographyFocus = q.geographyFocus(text, a.Geography)
	a.CheckSize = q.checkSize(target, text, a.StageFocus)
	a.FormVerdict, a.FormURL = formVerdict(crawl)
	a.Score = q.score(a, text)
	a.Qualifies = a.Score >= q.threshold
	a.NextStage = nextStage(a.Qualifies, a.FormVerdict)
	a.Confidence = confidence(crawl.PagesCrawled, a.FormVerdict)
	return a
}

func (q *Qualifier) geography(target outreach.Target, text string) string {
	existing := strings.TrimSpace(target.Geography)
	if existing != "" && !strings.EqualFold(existing, "unknown") {
		return existing
	}
	if label, ok := bestLabel(geographySets, text); ok {
		return label
	}
	if label, ok := tldGeography(target.Website); ok {
		return label
	}
	return "Unknown"
}

func tldGeography(website string) (string, bool) {
	raw := website
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	dot := strings.LastIndex(host, ".")
	if dot < 0 || dot == len(host)-1 {
		return "", false
	}
	label, ok := tldCountries[strings.ToLower(host[dot+1:])]
	return label, ok
}

func (q *Qualifier) category(target outreach.Target, text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "angel network") || strings.Contains(lower, "angel investors"):
		return "Angel Network"
	case strings.Contains(lower, "syndicate"):
		return "Syndicate"
	case strings.Contains(lower, "venture capital") || strings.Contains(lower, "venture fund") || strings.Contains(lower, "vc fund"):
		return "VC"
	}
	existing := strings.TrimSpace(target.Category)
	if existing == "" || strings.EqualFold(existing, "other") {
		return "VC"
	}
	return existing
}

func (q *Qualifier) sectors(target outreach.Target, text string) []string {
	scored := scoreSets(sectorSets, text)
	if len(scored) > 0 {
		return topLabels(scored, 3)
	}
	if len(target.Sectors) > 0 {
		return dedupTop(target.Sectors, 3)
	}
	return []string{"Generalist"}
}

func (q *Qualifier) stageFocus(target outreach.Target, text string) []string {
	scored := scoreSets(stageSets, text)
	if len(scored) > 0 {
		return topLabels(scored, 3)
	}
	fallback := append([]string{"Seed", "Series A"}, target.StageFocus...)
	return dedupTop(fallback, 3)
}

func (q *Qualifier) geographyFocus(text, geography string) []string {
	scored := scoreSets(geoFocusSets, text)
	labels := topLabels(scored, 3)
	if derived, ok := geographyToFocus[geography]; ok {
		labels = append(labels, derived)
	}
	labels = dedupTop(labels, 3)
	if len(labels) == 0 {
		return []string{"Global"}
	}
	return labels
}

func (q *Qualifier) checkSize(target outreach.Target, text string, stages []string) string {
	existing := strings.TrimSpace(target.CheckSize)
	if existing != "" && !strings.EqualFold(existing, "unknown") {
		return existing
	}
	if m := checkSizePattern.FindStringSubmatch(text); m != nil {
		low := strings.ReplaceAll(m[1], " ", "")
		high := strings.ReplaceAll(m[2], " ", "")
		return strings.ToUpper(low) + "-" + strings.ToUpper(high)
	}
	for _, stage := range stages {
		if bracket, ok := stageCheckSizes[stage]; ok {
			return bracket
		}
	}
	return "Unknown"
}

func formVerdict(crawl crawler.Result) (outreach.FormVerdict, string) {
	best, ok := crawl.BestFormPage()
	if !ok {
		return outreach.FormUnknown, ""
	}
	switch {
	case best.FormScore >= 4:
		return outreach.FormDiscovered, best.URL
	case best.FormScore <= 1:
		return outreach.FormNotFound, ""
	default:
		return outreach.FormUnknown, ""
	}
}

func (q *Qualifier) score(a Assessment, text string) float64 {
	score := scoreBaseline

	profile := strings.ToLower(q.sender.ProfileText)
	sectorBonus := 0.0
	for _, sector := range a.Sectors {
		if sector == "Generalist" {
			continue
		}
		if strings.Contains(profile, strings.ToLower(sector)) {
			sectorBonus += scorePerSector
		}
	}
	score += math.Min(sectorBonus, scoreSectorCap)

	round := strings.ToLower(strings.TrimSpace(q.sender.Round))
	stageMatched := false
	if round != "" {
		for _, stage := range a.StageFocus {
			if strings.Contains(strings.ToLower(stage), round) {
				stageMatched = true
				break
			}
		}
	}
	if stageMatched {
		score += scoreStageMatch
	} else {
		score += scoreStageMiss
	}

	geoMatched := false
	for _, focus := range a.GeographyFocus {
		if focus == "Global" || focus == "U.S. Businesses" {
			geoMatched = true
			break
		}
	}
	if geoMatched {
		score += scoreGeoMatch
	} else {
		score += scoreGeoMiss
	}

	score = math.Max(0, math.Min(1, score))
	return math.Round(score*1000) / 1000
}

func nextStage(qualifies bool, verdict outreach.FormVerdict) outreach.Stage {
	switch {
	case qualifies && verdict == outreach.FormDiscovered:
		return outreach.StageFormDiscovered
	case qualifies:
		return outreach.StageQualified
	default:
		return outreach.StageResearching
	}
}

func confidence(pagesCrawled int, verdict outreach.FormVerdict) float64 {
	c := confidenceFloor + math.Min(confidencePgCap, float64(pagesCrawled)*confidencePerPg)
	if verdict == outreach.FormDiscovered {
		c += confidenceForm
	}
	return math.Round(c*1000) / 1000
}

type labelScore struct {
	label string
	score int
}

// scoreSets returns only the sets with at least one hit.
func scoreSets(sets []keywordSet, text string) []labelScore {
	var out []labelScore
	for _, ks := range sets {
		if n := ks.hits(text); n > 0 {
			out = append(out, labelScore{label: ks.label, score: n})
		}
	}
	return out
}

// topLabels orders by descending hit count; ties keep taxonomy order
// so results stay deterministic.
func topLabels(scored []labelScore, n int) []string {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	labels := make([]string, 0, n)
	for _, ls := range scored {
		labels = append(labels, ls.label)
		if len(labels) == n {
			break
		}
	}
	return labels
}

func dedupTop(labels []string, n int) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, n)
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if len(out) == n {
			break
		}
	}
	return out
}

// bestLabel picks the label with the most hits, requiring at least one.
func bestLabel(sets []keywordSet, text string) (string, bool) {
	bestScore := 0
	best := ""
	for _, ks := range sets {
		if n := ks.hits(text); n > bestScore {
			bestScore = n
			best = ks.label
		}
	}
	return best, bestScore > 0
}
