// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// EntityType is the relationship of a crawled site to the analysed brand.
type EntityType string

const (
	EntityOwnedBrand EntityType = "owned_brand"
	EntityCompetitor EntityType = "competitor"
	EntityThirdParty EntityType = "third_party"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityOwnedBrand, EntityCompetitor, EntityThirdParty:
		return true
	}
	return false
}

type ContentType string

const (
	ContentArticle       ContentType = "article"
	ContentProductPage   ContentType = "product_page"
	ContentFAQ           ContentType = "faq"
	ContentLandingPage   ContentType = "landing_page"
	ContentBlogPost      ContentType = "blog_post"
	ContentDocumentation ContentType = "documentation"
	ContentOther         ContentType = "other"
)

type Heading struct {
	Level string `json:"level" bson:"level"`
	Text  string `json:"text" bson:"text"`
}

type FAQItem struct {
	Question string `json:"question" bson:"question"`
	Answer   string `json:"answer" bson:"answer"`
}

// StructuredData holds what was recovered from JSON-LD and OpenGraph markup.
// Every field is optional; the zero value means "not present on the page".
type StructuredData struct {
	SchemaType string            `json:"schema_type,omitempty" bson:"schema_type,omitempty"`
	FAQItems   []FAQItem         `json:"faq_items,omitempty" bson:"faq_items,omitempty"`
	Properties map[string]string `json:"properties,omitempty" bson:"properties,omitempty"`
	OpenGraph  map[string]string `json:"open_graph,omitempty" bson:"open_graph,omitempty"`
	RawJSONLD  []json.RawMessage `json:"raw_json_ld,omitempty" bson:"-"`
}

type Keyword struct {
	Term   string  `json:"term" bson:"term"`
	Weight float64 `json:"weight" bson:"weight"`
}

type ContentMetrics struct {
	WordCount    int  `json:"word_count" bson:"word_count"`
	HeadingCount int  `json:"heading_count" bson:"heading_count"`
	ImageCount   int  `json:"image_count" bson:"image_count"`
	LinkCount    int  `json:"link_count" bson:"link_count"`
	HasFAQ       bool `json:"has_faq" bson:"has_faq"`
	HasSchema    bool `json:"has_schema" bson:"has_schema"`
}

type CrawlMetadata struct {
	CrawledAt      time.Time `json:"crawled_at" bson:"crawled_at"`
	CrawlerID      string    `json:"crawler_id,omitempty" bson:"crawler_id,omitempty"`
	ResponseCode   int       `json:"response_code" bson:"response_code"`
	ResponseTimeMS int64     `json:"response_time_ms" bson:"response_time_ms"`
}

// ContentRecord is the canonical, deduplicated form of one crawled page.
type ContentRecord struct {
	DocID          string         `json:"doc_id" bson:"doc_id"`
	URL            string         `json:"url" bson:"url"`
	Domain         string         `json:"domain" bson:"domain"`
	EntityType     EntityType     `json:"entity_type" bson:"entity_type"`
	EntityName     string         `json:"entity_name" bson:"entity_name"`
	Title          string         `json:"title" bson:"title"`
	ContentType    ContentType    `json:"content_type" bson:"content_type"`
	CleanText      string         `json:"clean_text" bson:"clean_text"`
	Headings       []Heading      `json:"headings" bson:"headings"`
	StructuredData StructuredData `json:"structured_data" bson:"structured_data"`
	Keywords       []Keyword      `json:"keywords" bson:"keywords"`
	Metrics        ContentMetrics `json:"metrics" bson:"metrics"`
	CrawlMetadata  CrawlMetadata  `json:"crawl_metadata" bson:"crawl_metadata"`
	Fingerprint    string         `json:"content_fingerprint" bson:"content_fingerprint"`
	FirstSeen      time.Time      `json:"first_seen" bson:"first_seen"`
	LastUpdated    time.Time      `json:"last_updated" bson:"last_updated"`
}

// HeadingText joins the heading texts with single spaces.
func (r ContentRecord) HeadingText() string {
	n := 0
	for _, h := range r.Headings {
		n += len(h.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, h := range r.Headings {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, h.Text...)
	}
	return string(buf)
}

// RawPage is what the fetch layer hands to the normalizer.
type RawPage struct {
	URL          string
	FinalURL     string // where redirects ended; empty when it equals URL
	StatusCode   int
	ContentType  string
	Body         []byte
	ResponseTime time.Duration
	FetchedAt    time.Time
}

type CrawlStats struct {
	Requested  int           `json:"requested"`
	Fetched    int           `json:"fetched"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Invalid    int           `json:"invalid"`
	Duration   time.Duration `json:"duration"`
}
