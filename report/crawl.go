package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"geo-insights/models"
)

// EntityCrawl pairs an entity with the stats of its crawl.
type EntityCrawl struct {
	Entity string
	Type   models.EntityType
	Stats  models.CrawlStats
}

// CrawlTable prints a fixed-width summary of a crawl run, one row per entity.
func CrawlTable(w io.Writer, rows []EntityCrawl) {
	fmt.Fprintf(w, "%-20s %-12s %-9s %-9s %-9s %-11s %-9s %-9s %-10s\n",
		"Entity", "Type", "Fetched", "Inserted", "Updated", "Duplicates", "Skipped", "Invalid", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 106))

	var total models.CrawlStats
	for _, row := range rows {
		s := row.Stats
		fmt.Fprintf(w, "%-20s %-12s %-9d %-9d %-9d %-11d %-9d %-9d %-10s\n",
			truncate(row.Entity, 20), row.Type, s.Fetched, s.Inserted, s.Updated, s.Duplicates, s.Skipped, s.Invalid,
			s.Duration.Round(time.Millisecond))

		total.Requested += s.Requested
		total.Fetched += s.Fetched
		total.Inserted += s.Inserted
		total.Updated += s.Updated
		total.Duplicates += s.Duplicates
		total.Skipped += s.Skipped
		total.Invalid += s.Invalid
		total.Duration += s.Duration
	}

	fmt.Fprintln(w, strings.Repeat("-", 106))
	fmt.Fprintf(w, "%-20s %-12s %-9d %-9d %-9d %-11d %-9d %-9d %-10s\n",
		"Total", "", total.Fetched, total.Inserted, total.Updated, total.Duplicates, total.Skipped, total.Invalid,
		total.Duration.Round(time.Millisecond))

	if total.Duration > 0 {
		fmt.Fprintf(w, "\nRate: %.2f pages/second\n", float64(total.Fetched)/total.Duration.Seconds())
	}
	fmt.Fprintf(w, "Fetch success: %s\n", successRate(total.Fetched, total.Requested))
}

func successRate(fetched, requested int) string {
	if requested == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(fetched)/float64(requested)*100)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
