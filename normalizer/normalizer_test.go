package normalizer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-insights/models"
)

const productPage = `<!doctype html>
<html><head>
<title> Trail Runner 2 | Acme </title>
<meta property="og:title" content="Trail Runner 2">
<meta property="og:type" content="product">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"FAQPage","mainEntity":[
 {"@type":"Question","name":"Is it waterproof?","acceptedAnswer":{"@type":"Answer","text":"<p>Yes, fully <b>waterproof</b> &amp; breathable.</p>"}}
]}
</script>
<script>var tracking = "ignore me";</script>
<style>.x{color:red}</style>
</head>
<body>
<header><a href="/">Home</a><h2>Site menu</h2></header>
<nav><a href="/a">A</a><a href="/b">B</a></nav>
<main>
<h1>Trail Runner 2</h1>
<p>Lightweight trail shoes<br>built for mud.</p>
<h2>Grip</h2><p>Deep lugs give grip on wet rock.</p>
<img src="a.jpg"><img src="b.jpg">
<a href="/products/trail-runner-3">Next model</a>
</main>
<footer>Copyright Acme</footer>
</body></html>`

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestNormalize_ExtractsCanonicalRecord(t *testing.T) {
	n := New(WithClock(fixedClock), WithCrawlerID("test-crawler"))
	rec, err := n.Normalize(models.RawPage{
		URL:          "https://acme.example/products/trail-runner-2",
		StatusCode:   200,
		Body:         []byte(productPage),
		ResponseTime: 120 * time.Millisecond,
	}, models.EntityOwnedBrand, "Acme")
	require.NoError(t, err)

	assert.Equal(t, DocID("https://acme.example/products/trail-runner-2"), rec.DocID)
	assert.Equal(t, "acme.example", rec.Domain)
	assert.Equal(t, "Trail Runner 2 | Acme", rec.Title)
	assert.Equal(t, models.EntityOwnedBrand, rec.EntityType)
	assert.Equal(t, "Acme", rec.EntityName)
	assert.Equal(t, "Trail Runner 2 Lightweight trail shoes built for mud. Grip Deep lugs give grip on wet rock. Next model", rec.CleanText)
	assert.NotContains(t, rec.CleanText, "ignore me")
	assert.NotContains(t, rec.CleanText, "Copyright")

	assert.Equal(t, []models.Heading{
		{Level: "h1", Text: "Trail Runner 2"},
		{Level: "h2", Text: "Grip"},
	}, rec.Headings)

	assert.Equal(t, "FAQPage", rec.StructuredData.SchemaType)
	require.Len(t, rec.StructuredData.FAQItems, 1)
	assert.Equal(t, "Is it waterproof?", rec.StructuredData.FAQItems[0].Question)
	assert.Equal(t, "Yes, fully waterproof & breathable.", rec.StructuredData.FAQItems[0].Answer)
	assert.Equal(t, "product", rec.StructuredData.OpenGraph["og:type"])
	assert.Equal(t, models.ContentFAQ, rec.ContentType)

	assert.Equal(t, models.ContentMetrics{
		WordCount:    19,
		HeadingCount: 2,
		ImageCount:   2,
		LinkCount:    1,
		HasFAQ:       true,
		HasSchema:    true,
	}, rec.Metrics)

	assert.Equal(t, fixedClock(), rec.CrawlMetadata.CrawledAt)
	assert.Equal(t, "test-crawler", rec.CrawlMetadata.CrawlerID)
	assert.Equal(t, int64(120), rec.CrawlMetadata.ResponseTimeMS)
	assert.Equal(t, Fingerprint(rec.CleanText), rec.Fingerprint)

	require.NotEmpty(t, rec.Keywords)
	assert.LessOrEqual(t, len(rec.Keywords), DefaultKeywordLimit)
	assert.Equal(t, "trail", rec.Keywords[0].Term)
	for i := 1; i < len(rec.Keywords); i++ {
		assert.GreaterOrEqual(t, rec.Keywords[i-1].Weight, rec.Keywords[i].Weight)
	}
}

func TestNormalize_KeywordsDeterministic(t *testing.T) {
	n := New(WithClock(fixedClock))
	page := models.RawPage{URL: "https://acme.example/blog/mud", Body: []byte(productPage)}

	first, err := n.Normalize(page, models.EntityCompetitor, "Rival")
	require.NoError(t, err)
	second, err := n.Normalize(page, models.EntityCompetitor, "Rival")
	require.NoError(t, err)

	if diff := cmp.Diff(first.Keywords, second.Keywords); diff != "" {
		t.Fatalf("keywords differ between runs (-first +second):\n%s", diff)
	}
}

func TestNormalize_EmptyTextYieldsNoKeywords(t *testing.T) {
	n := New(WithClock(fixedClock))
	rec, err := n.Normalize(models.RawPage{
		URL:  "https://acme.example/",
		Body: []byte(`<html><head><title>Empty</title></head><body><script>x()</script></body></html>`),
	}, models.EntityOwnedBrand, "Acme")
	require.NoError(t, err)
	assert.Empty(t, rec.CleanText)
	assert.NotNil(t, rec.Keywords)
	assert.Empty(t, rec.Keywords)
	assert.Empty(t, rec.Fingerprint)
	assert.Equal(t, models.ContentLandingPage, rec.ContentType)
}

func TestNormalize_RejectsInvalidInput(t *testing.T) {
	n := New()
	_, err := n.Normalize(models.RawPage{Body: []byte("<p>x</p>")}, models.EntityOwnedBrand, "Acme")
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = n.Normalize(models.RawPage{URL: "https://a.example"}, models.EntityType("partner"), "Acme")
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestFingerprint_IgnoresWhitespaceAndCase(t *testing.T) {
	a := Fingerprint("Widgets are  great")
	b := Fingerprint("  widgets ARE\n\tgreat ")
	c := Fingerprint("widgets are good")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)

	assert.Empty(t, Fingerprint(""))
	assert.Empty(t, Fingerprint(" \n\t "))
}

func TestDocID_IgnoresFragment(t *testing.T) {
	assert.Equal(t, DocID("https://a.example/x"), DocID("https://a.example/x#top"))
	assert.NotEqual(t, DocID("https://a.example/x"), DocID("https://a.example/y"))
}

func TestDetectContentType(t *testing.T) {
	n := New(WithClock(fixedClock))
	cases := map[string]models.ContentType{
		"https://a.example/blog/post-1":    models.ContentBlogPost,
		"https://a.example/shop/shoes":     models.ContentProductPage,
		"https://a.example/docs/setup":     models.ContentDocumentation,
		"https://a.example/about-us":       models.ContentOther,
		"https://a.example/help/faq":       models.ContentFAQ,
		"https://a.example/":               models.ContentLandingPage,
	}
	for u, want := range cases {
		rec, err := n.Normalize(models.RawPage{URL: u, Body: []byte("<p>text</p>")}, models.EntityThirdParty, "Review Site")
		require.NoError(t, err)
		assert.Equal(t, want, rec.ContentType, u)
	}
}
