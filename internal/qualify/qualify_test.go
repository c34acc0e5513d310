package qualify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fundpilot/outreach/internal/crawler"
	"github.com/fundpilot/outreach/internal/outreach"
)

var testSender = outreach.SenderProfile{
	CompanyName: "Acme Robotics",
	Round:       "Seed",
	ProfileText: "We build an AI SaaS platform for warehouse robotics.",
}

func richCrawl() crawler.Result {
	return crawler.Result{
		Website: "https://fund.example",
		Pages: []outreach.Page{
			{
				URL:  "https://fund.example",
				Text: "We invest worldwide in machine learning and SaaS companies at the seed stage, from our San Francisco office.",
			},
			{
				URL:  "https://fund.example/about",
				Text: "A venture capital firm backing seed stage founders.",
			},
			{
				URL:       "https://fund.example/contact",
				Text:      "Get in touch and submit your pitch.",
				FormScore: 7,
			},
		},
		PagesCrawled: 3,
	}
}

func TestQualify_IsDeterministic(t *testing.T) {
	t.Parallel()

	q := New(testSender, 0)
	target := outreach.Target{ID: "t1", Website: "https://fund.example"}
	crawl := richCrawl()

	first := q.Qualify(target, crawl)
	second := q.Qualify(target, crawl)
	require.Equal(t, first, second)
}

func TestQualify_MatchingProfileScoresHigh(t *testing.T) {
	t.Parallel()

	q := New(testSender, 0)
	a := q.Qualify(outreach.Target{Website: "https://fund.example"}, richCrawl())

	require.Contains(t, a.Sectors, "AI")
	require.Contains(t, a.Sectors, "SaaS")
	require.Contains(t, a.StageFocus, "Seed")
	require.Equal(t, "USA", a.Geography)
	require.Equal(t, "VC", a.Category)
	require.Contains(t, a.GeographyFocus, "Global")

	// baseline 0.24 + two sector matches 0.24 + stage 0.28 + geo 0.18
	require.InDelta(t, 0.94, a.Score, 0.0001)
	require.True(t, a.Qualifies)
	require.Equal(t, outreach.FormDiscovered, a.FormVerdict)
	require.Equal(t, "https://fund.example/contact", a.FormURL)
	require.Equal(t, outreach.StageFormDiscovered, a.NextStage)

	// floor 0.45 + 3 pages at 0.07 + form bonus 0.08
	require.InDelta(t, 0.74, a.Confidence, 0.0001)
}

func TestQualify_EmptyCrawlFallsBackDeterministically(t *testing.T) {
	t.Parallel()

	sender := outreach.SenderProfile{Round: "Series B", ProfileText: "Robotics."}
	q := New(sender, 0)
	target := outreach.Target{Website: "https://fund.de"}

	a := q.Qualify(target, crawler.Result{Website: target.Website})

	require.Equal(t, "Germany", a.Geography)
	require.Equal(t, "VC", a.Category)
	require.Equal(t, []string{"Generalist"}, a.Sectors)
	require.Equal(t, []string{"Seed", "Series A"}, a.StageFocus)
	require.Equal(t, []string{"European Businesses"}, a.GeographyFocus)
	require.Equal(t, "$100K-$1M", a.CheckSize)
	require.Equal(t, outreach.FormUnknown, a.FormVerdict)
	require.Empty(t, a.FormURL)

	// baseline 0.24 + stage miss 0.16 + geo miss 0.10
	require.InDelta(t, 0.50, a.Score, 0.0001)
	require.False(t, a.Qualifies)
	require.Equal(t, outreach.StageResearching, a.NextStage)
	require.InDelta(t, 0.45, a.Confidence, 0.0001)
}

func TestQualify_ExistingAttributesAreRetained(t *testing.T) {
	t.Parallel()

	q := New(testSender, 0)
	target := outreach.Target{
		Website:   "https://fund.example",
		Geography: "USA",
		CheckSize: "$2M-$8M",
	}
	crawl := crawler.Result{
		Pages: []outreach.Page{
			{URL: "https://fund.example", Text: "A London based venture fund."},
		},
		PagesCrawled: 1,
	}

	a := q.Qualify(target, crawl)
	require.Equal(t, "USA", a.Geography)
	require.Equal(t, "$2M-$8M", a.CheckSize)
}

func TestQualify_CheckSizeParsedFromText(t *testing.T) {
	t.Parallel()

	q := New(testSender, 0)
	crawl := crawler.Result{
		Pages: []outreach.Page{
			{URL: "https://fund.example", Text: "We write checks of $250K to $1M into seed rounds."},
		},
		PagesCrawled: 1,
	}

	a := q.Qualify(outreach.Target{Website: "https://fund.example"}, crawl)
	require.Equal(t, "$250K-$1M", a.CheckSize)
}

func TestQualify_CategoryDetection(t *testing.T) {
	t.Parallel()

	q := New(testSender, 0)
	tests := []struct {
		text string
		want string
	}{
		{"Our angel network spans three cities.", "Angel Network"},
		{"Join the syndicate.", "Syndicate"},
		{"A venture capital partnership.", "VC"},
		{"We love startups.", "VC"},
	}
	for _, tc := range tests {
		crawl := crawler.Result{
			Pages:        []outreach.Page{{URL: "https://x.example", Text: tc.text}},
			PagesCrawled: 1,
		}
		a := q.Qualify(outreach.Target{Website: "https://x.example"}, crawl)
		require.Equal(t, tc.want, a.Category, tc.text)
	}
}

func TestQualify_ThresholdComesFromConfiguration(t *testing.T) {
	t.Parallel()

	strict := New(testSender, 0.99)
	a := strict.Qualify(outreach.Target{Website: "https://fund.example"}, richCrawl())
	require.False(t, a.Qualifies)
	require.Equal(t, outreach.StageResearching, a.NextStage)
}

func TestFormVerdict_MiddleScoresStayUnknown(t *testing.T) {
	t.Parallel()

	crawl := crawler.Result{
		Pages: []outreach.Page{
			{URL: "https://fund.example/about", Text: "Submit your pitch by email.", FormScore: 2},
		},
		PagesCrawled: 1,
	}
	verdict, formURL := formVerdict(crawl)
	require.Equal(t, outreach.FormUnknown, verdict)
	require.Empty(t, formURL)
}
