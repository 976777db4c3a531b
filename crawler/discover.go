package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"geo-insights/utils"
)

type scoredLink struct {
	url      string
	priority int
}

// Discover fetches siteURL and returns it followed by up to limit-1 links
// from the same host, most promising first. limit <= 0 means no cap.
func Discover(ctx context.Context, f PageFetcher, siteURL string, limit int) ([]string, error) {
	page, err := f.Fetch(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	// links are relative to where redirects landed, e.g. the www host
	landed := page.URL
	if page.FinalURL != "" {
		landed = page.FinalURL
	}
	base, err := url.Parse(landed)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", landed, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", page.URL, err)
	}

	seen := map[string]bool{
		utils.NormalizeURL(siteURL): true,
		utils.NormalizeURL(landed):  true,
	}
	var links []scoredLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := makeAbsoluteURL(base, href)
		if abs == nil || abs.Host != base.Host || !utils.IsValidURL(abs.String()) {
			return
		}
		key := utils.NormalizeURL(abs.String())
		if seen[key] {
			return
		}
		seen[key] = true
		links = append(links, scoredLink{url: key, priority: linkPriority(sel)})
	})

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].priority > links[j].priority
	})

	out := []string{siteURL}
	for _, l := range links {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, l.url)
	}
	return out, nil
}

// linkPriority scores a link from its anchor text and markup hints; content
// links rank above navigation and account pages.
func linkPriority(sel *goquery.Selection) int {
	priority := 50

	anchorText := strings.ToLower(strings.TrimSpace(sel.Text()))

	highPriorityKeywords := []string{"product", "faq", "guide", "blog", "article", "docs", "documentation", "pricing", "compare"}
	for _, keyword := range highPriorityKeywords {
		if strings.Contains(anchorText, keyword) {
			priority += 20
			break
		}
	}

	lowPriorityKeywords := []string{"login", "register", "sign in", "cart", "contact", "terms", "privacy", "sitemap", "careers"}
	for _, keyword := range lowPriorityKeywords {
		if strings.Contains(anchorText, keyword) {
			priority -= 15
			break
		}
	}

	if rel, exists := sel.Attr("rel"); exists && strings.Contains(rel, "nofollow") {
		priority -= 30
	}

	if class, exists := sel.Attr("class"); exists {
		if strings.Contains(class, "nav") || strings.Contains(class, "menu") {
			priority -= 10
		}
		if strings.Contains(class, "content") || strings.Contains(class, "article") {
			priority += 15
		}
	}

	if priority < 1 {
		priority = 1
	}
	if priority > 100 {
		priority = 100
	}
	return priority
}

// makeAbsoluteURL resolves href against base. Anchor-only links back to the
// same page and non-http schemes return nil.
func makeAbsoluteURL(base *url.URL, href string) *url.URL {
	link, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(link)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	if resolved.Fragment != "" && resolved.RawQuery == "" && resolved.Path == base.Path {
		return nil
	}
	return resolved
}
