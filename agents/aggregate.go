package agents

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geo-insights/models"
	"geo-insights/utils"
)

// Aggregator folds a batch of log records into per-agent statistics.
type Aggregator struct {
	classifier *Classifier
	logger     *zap.Logger
}

func NewAggregator(classifier *Classifier, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{classifier: classifier, logger: logger}
}

// Aggregate classifies every record and returns the summary along with one
// Interaction per record, in input order. The Unknown bucket appears in
// Agents but is left out of the signature and URL totals.
func (a *Aggregator) Aggregate(records []models.LogRecord) (models.AgentSummary, []models.Interaction) {
	summary := models.AgentSummary{Agents: make(map[string]models.AgentStats)}
	interactions := make([]models.Interaction, 0, len(records))

	paths := make(map[string]map[string]struct{})
	matchedPaths := make(map[string]struct{})

	for _, rec := range records {
		res := a.classifier.Classify(rec)
		path := utils.NormalizePath(rec.URL)

		interactions = append(interactions, models.Interaction{
			ID:             newInteractionID(),
			SignatureID:    res.SignatureID,
			DetectedName:   res.DetectedName,
			Confidence:     res.Confidence,
			Timestamp:      rec.Timestamp,
			URL:            rec.URL,
			Path:           path,
			StatusCode:     rec.StatusCode,
			Method:         rec.Method,
			ResponseTimeMS: rec.ResponseTimeMS,
			UserAgent:      rec.UserAgent,
			IP:             rec.IP,
			Referer:        rec.Referer,
		})

		stats := summary.Agents[res.DetectedName]
		stats.InteractionCount++
		if rec.Timestamp.After(stats.LastInteraction) {
			stats.LastInteraction = rec.Timestamp
		}
		if rec.StatusCode != 0 {
			if stats.StatusCodes == nil {
				stats.StatusCodes = make(map[int]int)
			}
			stats.StatusCodes[rec.StatusCode]++
		}
		if paths[res.DetectedName] == nil {
			paths[res.DetectedName] = make(map[string]struct{})
		}
		paths[res.DetectedName][path] = struct{}{}
		stats.UniqueURLCount = len(paths[res.DetectedName])
		summary.Agents[res.DetectedName] = stats

		summary.TotalInteractions++
		if res.Matched() {
			matchedPaths[path] = struct{}{}
		} else {
			summary.UnmatchedInteractions++
		}
	}

	for name := range summary.Agents {
		if name != models.UnknownAgent {
			summary.TotalUniqueSignatures++
		}
	}
	summary.TotalUniqueURLsAccessed = len(matchedPaths)

	a.logger.Info("Aggregated agent interactions",
		zap.Int("records", len(records)),
		zap.Int("signatures", summary.TotalUniqueSignatures),
		zap.Int("unmatched", summary.UnmatchedInteractions))
	return summary, interactions
}

func newInteractionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CorrelatePages reports, for every stored page whose path some agent
// requested, which agents did and how often. Pages are keyed by normalized
// path, so query strings and trailing slashes do not split a page.
func CorrelatePages(interactions []models.Interaction, records []models.ContentRecord) []models.PageAccess {
	type hits struct {
		count  int
		agents map[string]struct{}
	}
	byPath := make(map[string]*hits)
	for _, in := range interactions {
		if in.DetectedName == models.UnknownAgent {
			continue
		}
		h := byPath[in.Path]
		if h == nil {
			h = &hits{agents: make(map[string]struct{})}
			byPath[in.Path] = h
		}
		h.count++
		h.agents[in.DetectedName] = struct{}{}
	}

	var pages []models.PageAccess
	seen := make(map[string]bool)
	for _, rec := range records {
		path := utils.NormalizePath(rec.URL)
		h, ok := byPath[path]
		if !ok || seen[rec.DocID] {
			continue
		}
		seen[rec.DocID] = true

		names := make([]string, 0, len(h.agents))
		for name := range h.agents {
			names = append(names, name)
		}
		sort.Strings(names)
		pages = append(pages, models.PageAccess{
			Path:             path,
			DocID:            rec.DocID,
			EntityName:       rec.EntityName,
			Agents:           names,
			InteractionCount: h.count,
		})
	}

	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].InteractionCount != pages[j].InteractionCount {
			return pages[i].InteractionCount > pages[j].InteractionCount
		}
		return pages[i].Path < pages[j].Path
	})
	return pages
}
