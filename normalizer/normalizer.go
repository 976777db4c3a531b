// Package normalizer turns a fetched page into a canonical ContentRecord:
// clean text, headings, structured data, metrics, a content fingerprint for
// deduplication and a bounded keyword list.
package normalizer

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"geo-insights/models"
	"geo-insights/tfidf"
	"geo-insights/utils"
)

const (
	DefaultCrawlerID    = "geo-crawler-v1"
	DefaultKeywordLimit = 20
)

var ErrInvalidPage = errors.New("normalizer: invalid page")

// boilerplateSelector lists elements whose text never counts as page content.
const boilerplateSelector = "script, style, noscript, template, iframe, svg, nav, header, footer"

type Normalizer struct {
	crawlerID    string
	keywordLimit int
	termOpts     tfidf.Options
	policy       *bluemonday.Policy
	now          func() time.Time
}

type Option func(*Normalizer)

func WithCrawlerID(id string) Option {
	return func(n *Normalizer) {
		if id != "" {
			n.crawlerID = id
		}
	}
}

func WithKeywordLimit(limit int) Option {
	return func(n *Normalizer) {
		if limit > 0 {
			n.keywordLimit = limit
		}
	}
}

func WithTermOptions(opts tfidf.Options) Option {
	return func(n *Normalizer) { n.termOpts = opts }
}

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		crawlerID:    DefaultCrawlerID,
		keywordLimit: DefaultKeywordLimit,
		termOpts:     tfidf.DefaultOptions(),
		policy:       bluemonday.StrictPolicy(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the canonical record for page. It has no side effects.
func (n *Normalizer) Normalize(page models.RawPage, entityType models.EntityType, entityName string) (models.ContentRecord, error) {
	if page.URL == "" {
		return models.ContentRecord{}, fmt.Errorf("%w: missing url", ErrInvalidPage)
	}
	if !entityType.Valid() {
		return models.ContentRecord{}, fmt.Errorf("%w: unknown entity type %q", ErrInvalidPage, entityType)
	}
	u, err := url.Parse(page.URL)
	if err != nil {
		return models.ContentRecord{}, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return models.ContentRecord{}, fmt.Errorf("parse html %s: %w", page.URL, err)
	}

	// JSON-LD lives in script tags, so it has to be read before stripping.
	structured := n.extractStructuredData(doc)
	title := extractTitle(doc)

	doc.Find(boilerplateSelector).Remove()

	headings := extractHeadings(doc)
	cleanText := extractCleanText(doc)

	crawledAt := page.FetchedAt
	if crawledAt.IsZero() {
		crawledAt = n.now()
	}
	crawledAt = crawledAt.UTC()

	rec := models.ContentRecord{
		DocID:          DocID(page.URL),
		URL:            page.URL,
		Domain:         u.Host,
		EntityType:     entityType,
		EntityName:     entityName,
		Title:          title,
		CleanText:      cleanText,
		Headings:       headings,
		StructuredData: structured,
		Metrics: models.ContentMetrics{
			WordCount:    len(strings.Fields(cleanText)),
			HeadingCount: len(headings),
			ImageCount:   doc.Find("img").Length(),
			LinkCount:    doc.Find("a").Length(),
			HasFAQ:       len(structured.FAQItems) > 0,
			HasSchema:    len(structured.RawJSONLD) > 0,
		},
		CrawlMetadata: models.CrawlMetadata{
			CrawledAt:      crawledAt,
			CrawlerID:      n.crawlerID,
			ResponseCode:   page.StatusCode,
			ResponseTimeMS: page.ResponseTime.Milliseconds(),
		},
		Fingerprint: Fingerprint(cleanText),
		FirstSeen:   crawledAt,
		LastUpdated: crawledAt,
	}
	rec.ContentType = detectContentType(u, structured)
	rec.Keywords = n.Keywords(cleanText, rec.HeadingText())
	return rec, nil
}

// Keywords returns the top terms of a single-document model over the clean
// text and heading text. Empty clean text yields an empty list.
func (n *Normalizer) Keywords(cleanText, headingText string) []models.Keyword {
	keywords := []models.Keyword{}
	if strings.TrimSpace(cleanText) == "" {
		return keywords
	}
	model := tfidf.Fit([]string{cleanText + " " + headingText}, n.termOpts)
	for _, t := range model.TopTerms(0, n.keywordLimit) {
		keywords = append(keywords, models.Keyword{Term: t.Term, Weight: tfidf.Round(t.Weight)})
	}
	return keywords
}

// Fingerprint hashes text after lowercasing and collapsing whitespace, so
// formatting differences do not defeat deduplication but wording changes do.
// Text with no words has no fingerprint: pages that render nothing without
// scripts must not collapse into one record.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// DocID derives the stable document identifier from the page URL.
func DocID(rawURL string) string {
	sum := md5.Sum([]byte(utils.NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

func detectContentType(u *url.URL, sd models.StructuredData) models.ContentType {
	path := strings.ToLower(u.Path)

	switch {
	case strings.Contains(path, "/faq") || sd.SchemaType == "FAQPage" || len(sd.FAQItems) > 0:
		return models.ContentFAQ
	case strings.Contains(path, "/blog") || strings.Contains(path, "/article"):
		return models.ContentBlogPost
	case strings.Contains(path, "/product") || strings.Contains(path, "/shop"):
		return models.ContentProductPage
	case strings.Contains(path, "/docs") || strings.Contains(path, "/documentation"):
		return models.ContentDocumentation
	}

	switch sd.SchemaType {
	case "Article", "NewsArticle", "BlogPosting":
		return models.ContentArticle
	case "Product":
		return models.ContentProductPage
	}

	if path == "" || path == "/" {
		return models.ContentLandingPage
	}
	return models.ContentOther
}
