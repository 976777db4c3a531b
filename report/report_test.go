package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-insights/models"
)

var generated = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func sampleGapReport() GapReport {
	return GapReport{
		GeneratedAt: generated,
		Analysis: models.GapAnalysisResult{
			OwnedEntity:         "Acme",
			CompetitorEntities:  []string{"Rival"},
			TotalGapsIdentified: 1,
			CandidateGaps:       4,
			MediumPriority:      1,
			TopGaps: []models.GapRecord{{
				Term: "widgets", Competitor: "Rival",
				CompetitorWeight: 0.537, OwnedWeight: 0.4496, GapScore: 0.0874,
				Priority: models.PriorityMedium,
			}},
		},
		Coverage: map[string]models.CoverageStats{
			"Zeta":  {PagesCrawled: 1},
			"Rival": {PagesCrawled: 1, TotalWords: 7, AvgWordsPerPage: 7},
			"Acme":  {PagesCrawled: 1, TotalWords: 3, AvgWordsPerPage: 3},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap_analysis.json")
	require.NoError(t, WriteJSON(path, sampleGapReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	analysis := decoded["gap_analysis"].(map[string]any)
	assert.Equal(t, "Acme", analysis["owned_entity"])
	gap := analysis["top_gaps"].([]any)[0].(map[string]any)
	assert.Equal(t, 0.537, gap["competitor_strength"])
	assert.Equal(t, 0.4496, gap["owned_strength"])
	assert.Equal(t, "Medium", gap["priority"])
	assert.Contains(t, decoded["coverage_comparison"], "Rival")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteJSON_Unencodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	assert.Error(t, WriteJSON(path, map[string]any{"f": func() {}}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestGapMarkdown(t *testing.T) {
	md, err := GapMarkdown(sampleGapReport())
	require.NoError(t, err)

	assert.Contains(t, md, "# Content gap analysis: Acme")
	assert.Contains(t, md, "against Rival.")
	assert.Contains(t, md, "| 1 | widgets | Rival | 0.5370 | 0.4496 | 0.0874 | Medium |")
	acme := bytes.Index([]byte(md), []byte("| Acme | 1 |"))
	rival := bytes.Index([]byte(md), []byte("| Rival | 1 |"))
	zeta := bytes.Index([]byte(md), []byte("| Zeta | 1 |"))
	require.True(t, acme > 0 && rival > 0 && zeta > 0)
	assert.Less(t, acme, rival)
	assert.Less(t, rival, zeta)
}

func TestGapMarkdown_SkippedCompetitors(t *testing.T) {
	r := sampleGapReport()
	r.SkippedCompetitors = []string{"Down"}
	md, err := GapMarkdown(r)
	require.NoError(t, err)
	assert.Contains(t, md, "against Rival. Left out for lack of stored content: Down.")

	md, err = GapMarkdown(sampleGapReport())
	require.NoError(t, err)
	assert.NotContains(t, md, "Left out")
}

func TestGapMarkdown_NoGaps(t *testing.T) {
	r := sampleGapReport()
	r.Analysis.TopGaps = nil
	md, err := GapMarkdown(r)
	require.NoError(t, err)
	assert.Contains(t, md, "No term is weighted more heavily by a competitor than by Acme.")
	assert.Contains(t, md, "## Coverage")
}

func TestAgentMarkdown(t *testing.T) {
	r := AgentReport{
		GeneratedAt: generated,
		Summary: models.AgentSummary{
			TotalUniqueSignatures:   2,
			TotalUniqueURLsAccessed: 3,
			TotalInteractions:       9,
			UnmatchedInteractions:   5,
			Agents: map[string]models.AgentStats{
				models.UnknownAgent: {InteractionCount: 5, UniqueURLCount: 4},
				"ClaudeBot":         {InteractionCount: 1, UniqueURLCount: 1},
				"GPTBot":            {InteractionCount: 3, UniqueURLCount: 2, LastInteraction: generated},
			},
		},
		Pages: []models.PageAccess{{Path: "/faq", EntityName: "Acme", Agents: []string{"ClaudeBot", "GPTBot"}, InteractionCount: 2}},
	}
	md, err := AgentMarkdown(r)
	require.NoError(t, err)

	assert.Contains(t, md, "9 interactions, 5 unmatched.")
	assert.Contains(t, md, "| GPTBot | 3 | 2 | 2026-07-01T10:00:00Z |")
	assert.Contains(t, md, "| ClaudeBot | 1 | 1 | - |")
	assert.Contains(t, md, "| /faq | Acme | ClaudeBot, GPTBot | 2 |")

	gpt := bytes.Index([]byte(md), []byte("| GPTBot"))
	claude := bytes.Index([]byte(md), []byte("| ClaudeBot"))
	unknown := bytes.Index([]byte(md), []byte("| Unknown"))
	assert.Less(t, gpt, claude)
	assert.Less(t, claude, unknown)
}

func TestRender(t *testing.T) {
	out, err := Render("# Title\n\nsome *text*\n", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "text")
}

func TestCrawlTable(t *testing.T) {
	var buf bytes.Buffer
	CrawlTable(&buf, []EntityCrawl{
		{Entity: "Acme", Type: models.EntityOwnedBrand, Stats: models.CrawlStats{Requested: 4, Fetched: 3, Inserted: 3, Skipped: 1, Duration: time.Second}},
		{Entity: "Rival", Type: models.EntityCompetitor, Stats: models.CrawlStats{Requested: 2, Fetched: 2, Inserted: 1, Duplicates: 1, Duration: time.Second}},
	})
	out := buf.String()
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Rival")
	assert.Contains(t, out, "Rate: 2.50 pages/second")
	assert.Contains(t, out, "Fetch success: 83.3%")
}
