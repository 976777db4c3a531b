// Package gap compares how strongly competitors and the owned brand cover
// each term of a shared term-weight space.
//
// Each entity is reduced to one pseudo-document holding the text and
// headings of all its pages. This loses per-page granularity: one very long
// competitor page can dominate that competitor's weights.
//
// Weights are rounded to nine decimals (tfidf.Round) before they are
// compared, and a gap score is the rounded difference of the two rounded
// weights. gap_score therefore equals competitor_strength minus
// owned_strength at that resolution, not bit for bit in float64.
package gap

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"geo-insights/models"
	"geo-insights/store"
	"geo-insights/tfidf"
)

const (
	DefaultTopN = 15
	// HighPriorityThreshold is exclusive: a gap of exactly 0.1 is Medium.
	HighPriorityThreshold = 0.1
)

var ErrEmptyCorpus = errors.New("gap: empty corpus")

// EmptyCorpusError names the side of the comparison that had no records.
type EmptyCorpusError struct {
	Entity string
	Role   string
}

func (e *EmptyCorpusError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("gap: no %s entities to compare", e.Role)
	}
	return fmt.Sprintf("gap: %s entity %q has no content records", e.Role, e.Entity)
}

func (e *EmptyCorpusError) Is(target error) bool {
	return target == ErrEmptyCorpus
}

// Entity is one side of the comparison with all of its records.
type Entity struct {
	Name    string
	Records []models.ContentRecord
}

type Analyzer struct {
	opts   tfidf.Options
	logger *zap.Logger
}

func NewAnalyzer(opts tfidf.Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{opts: opts, logger: logger}
}

// Analyze ranks (term, competitor) pairs where the competitor outweighs the
// owned entity. Competitors are scored in the order given; topN <= 0 means
// DefaultTopN.
func (a *Analyzer) Analyze(owned Entity, competitors []Entity, topN int) (models.GapAnalysisResult, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(owned.Records) == 0 {
		return models.GapAnalysisResult{}, &EmptyCorpusError{Entity: owned.Name, Role: "owned"}
	}
	if len(competitors) == 0 {
		return models.GapAnalysisResult{}, &EmptyCorpusError{Role: "competitor"}
	}
	for _, c := range competitors {
		if len(c.Records) == 0 {
			return models.GapAnalysisResult{}, &EmptyCorpusError{Entity: c.Name, Role: "competitor"}
		}
	}

	docs := make([]string, 0, len(competitors)+1)
	docs = append(docs, pseudoDocument(owned.Records))
	for _, c := range competitors {
		docs = append(docs, pseudoDocument(c.Records))
	}
	model := tfidf.Fit(docs, a.opts)

	var candidates []models.GapRecord
	for _, term := range model.Vocabulary() {
		ownedWeight := tfidf.Round(model.Weight(0, term))
		for i, c := range competitors {
			compWeight := tfidf.Round(model.Weight(i+1, term))
			// both operands have nine decimals, so rounding only drops float noise
			score := tfidf.Round(compWeight - ownedWeight)
			if score <= 0 {
				continue
			}
			candidates = append(candidates, models.GapRecord{
				Term:             term,
				Competitor:       c.Name,
				CompetitorWeight: compWeight,
				OwnedWeight:      ownedWeight,
				GapScore:         score,
				Priority:         PriorityFor(score),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].GapScore != candidates[j].GapScore {
			return candidates[i].GapScore > candidates[j].GapScore
		}
		if candidates[i].Term != candidates[j].Term {
			return candidates[i].Term < candidates[j].Term
		}
		return candidates[i].Competitor < candidates[j].Competitor
	})

	top := candidates
	if len(top) > topN {
		top = top[:topN]
	}
	top = append([]models.GapRecord{}, top...)

	names := make([]string, len(competitors))
	for i, c := range competitors {
		names[i] = c.Name
	}
	result := models.GapAnalysisResult{
		OwnedEntity:         owned.Name,
		CompetitorEntities:  names,
		TotalGapsIdentified: len(top),
		CandidateGaps:       len(candidates),
		TopGaps:             top,
	}
	for _, g := range top {
		if g.Priority == models.PriorityHigh {
			result.HighPriority++
		} else {
			result.MediumPriority++
		}
	}

	a.logger.Info("Gap analysis complete",
		zap.String("owned", owned.Name),
		zap.Strings("competitors", names),
		zap.Int("vocabulary", len(model.Vocabulary())),
		zap.Int("candidates", len(candidates)),
		zap.Int("reported", len(top)))
	return result, nil
}

func PriorityFor(score float64) models.Priority {
	if score > HighPriorityThreshold {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

func pseudoDocument(records []models.ContentRecord) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.CleanText)
		b.WriteByte(' ')
		b.WriteString(rec.HeadingText())
		b.WriteByte(' ')
	}
	return b.String()
}

// Coverage sums each entity's page metrics. It does not depend on the term
// model and is reported even when no gaps were found.
func Coverage(entities []Entity) map[string]models.CoverageStats {
	out := make(map[string]models.CoverageStats, len(entities))
	for _, e := range entities {
		stats := out[e.Name]
		for _, rec := range e.Records {
			stats.PagesCrawled++
			stats.TotalWords += rec.Metrics.WordCount
			stats.TotalImages += rec.Metrics.ImageCount
			stats.TotalLinks += rec.Metrics.LinkCount
			if rec.ContentType != "" {
				if stats.ContentTypes == nil {
					stats.ContentTypes = make(map[models.ContentType]int)
				}
				stats.ContentTypes[rec.ContentType]++
			}
		}
		if stats.PagesCrawled > 0 {
			stats.AvgWordsPerPage = stats.TotalWords / stats.PagesCrawled
		}
		out[e.Name] = stats
	}
	return out
}

// FromStore builds the owned entity and competitors from stored records,
// keeping the competitor order given.
func FromStore(s *store.Store, owned string, competitors []string) (Entity, []Entity) {
	ownedEntity := Entity{Name: owned, Records: s.GetByEntity(owned)}
	comps := make([]Entity, 0, len(competitors))
	for _, name := range competitors {
		comps = append(comps, Entity{Name: name, Records: s.GetByEntity(name)})
	}
	return ownedEntity, comps
}

// WithRecords drops competitors that have no records, returning the names
// it dropped so a caller can compare the rest instead of failing outright.
func WithRecords(competitors []Entity) ([]Entity, []string) {
	kept := make([]Entity, 0, len(competitors))
	var empty []string
	for _, c := range competitors {
		if len(c.Records) == 0 {
			empty = append(empty, c.Name)
			continue
		}
		kept = append(kept, c)
	}
	return kept, empty
}

// CompetitorNames lists the competitor entities present in the store, in
// first-seen order.
func CompetitorNames(s *store.Store) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range s.GetByType(models.EntityCompetitor) {
		if !seen[rec.EntityName] {
			seen[rec.EntityName] = true
			names = append(names, rec.EntityName)
		}
	}
	return names
}
