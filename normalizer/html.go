package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"geo-insights/models"
)

func extractTitle(doc *goquery.Document) string {
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return collapse(og)
	}
	return ""
}

func extractHeadings(doc *goquery.Document) []models.Heading {
	headings := []models.Heading{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		if text == "" {
			return
		}
		headings = append(headings, models.Heading{
			Level: goquery.NodeName(s),
			Text:  text,
		})
	})
	return headings
}

// extractCleanText walks the body and joins every text node with a space, so
// adjacent block elements never glue their words together.
func extractCleanText(doc *goquery.Document) string {
	roots := doc.Find("body").Nodes
	if len(roots) == 0 {
		roots = doc.Nodes
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return collapse(b.String())
}

func (n *Normalizer) extractStructuredData(doc *goquery.Document) models.StructuredData {
	var sd models.StructuredData

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		var data any
		if raw == "" || json.Unmarshal([]byte(raw), &data) != nil {
			return
		}
		sd.RawJSONLD = append(sd.RawJSONLD, json.RawMessage(raw))
		for _, obj := range jsonLDObjects(data) {
			n.absorbJSONLD(&sd, obj)
		}
	})

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if sd.OpenGraph == nil {
			sd.OpenGraph = make(map[string]string)
		}
		sd.OpenGraph[prop] = collapse(content)
	})

	return sd
}

// jsonLDObjects flattens top-level arrays and @graph containers.
func jsonLDObjects(data any) []map[string]any {
	var out []map[string]any
	switch v := data.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				out = append(out, jsonLDObjects(item)...)
			}
			return out
		}
		out = append(out, v)
	case []any:
		for _, item := range v {
			out = append(out, jsonLDObjects(item)...)
		}
	}
	return out
}

func (n *Normalizer) absorbJSONLD(sd *models.StructuredData, obj map[string]any) {
	schemaType := jsonLDType(obj["@type"])
	if sd.SchemaType == "" {
		sd.SchemaType = schemaType
	}

	if schemaType == "FAQPage" {
		for _, item := range asSlice(obj["mainEntity"]) {
			q, ok := item.(map[string]any)
			if !ok {
				continue
			}
			answer := ""
			if a, ok := q["acceptedAnswer"].(map[string]any); ok {
				answer = n.sanitize(scalar(a["text"]))
			}
			sd.FAQItems = append(sd.FAQItems, models.FAQItem{
				Question: n.sanitize(scalar(q["name"])),
				Answer:   answer,
			})
		}
	}

	for key, value := range obj {
		if strings.HasPrefix(key, "@") {
			continue
		}
		text := scalar(value)
		if text == "" {
			continue
		}
		if sd.Properties == nil {
			sd.Properties = make(map[string]string)
		}
		if _, exists := sd.Properties[key]; !exists {
			sd.Properties[key] = n.sanitize(text)
		}
	}
}

// sanitize strips any markup embedded in JSON-LD strings.
func (n *Normalizer) sanitize(s string) string {
	return collapse(html.UnescapeString(n.policy.Sanitize(s)))
}

func jsonLDType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return []any{t}
	}
	return nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
