// Package report writes analysis results as JSON files and Markdown
// summaries, optionally rendered for a terminal.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"

	"geo-insights/models"
)

// WriteJSON encodes v as indented JSON and renames it into place, so a
// reader never sees a half-written file.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// GapReport is the serialized gap analysis output.
type GapReport struct {
	GeneratedAt time.Time                       `json:"generated_at"`
	Analysis    models.GapAnalysisResult        `json:"gap_analysis"`
	Coverage    map[string]models.CoverageStats `json:"coverage_comparison"`

	// SkippedCompetitors had no stored content and were left out of Analysis.
	SkippedCompetitors []string `json:"skipped_competitors,omitempty"`
}

// AgentReport is the serialized agent analytics output.
type AgentReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Summary     models.AgentSummary `json:"summary"`
	Pages       []models.PageAccess `json:"pages,omitempty"`

	// StoredInteractions counts the database's interaction log per agent
	// after this run was persisted.
	StoredInteractions map[string]int `json:"stored_interactions,omitempty"`
}

var funcs = template.FuncMap{
	"weight": func(f float64) string { return fmt.Sprintf("%.4f", f) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	},
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

var gapTemplate = template.Must(template.New("gap").Funcs(funcs).Parse(`# Content gap analysis: {{.Analysis.OwnedEntity}}

Generated {{date .GeneratedAt}} against {{join .Analysis.CompetitorEntities ", "}}.
{{- if .SkippedCompetitors}} Left out for lack of stored content: {{join .SkippedCompetitors ", "}}.{{end}}

{{.Analysis.TotalGapsIdentified}} gaps reported ({{.Analysis.HighPriority}} high, {{.Analysis.MediumPriority}} medium) out of {{.Analysis.CandidateGaps}} candidates.
{{if .Analysis.TopGaps}}
| # | Term | Competitor | Competitor strength | Owned strength | Gap | Priority |
|---|------|------------|--------------------|----------------|-----|----------|
{{range $i, $g := .Analysis.TopGaps}}| {{inc $i}} | {{$g.Term}} | {{$g.Competitor}} | {{weight $g.CompetitorWeight}} | {{weight $g.OwnedWeight}} | {{weight $g.GapScore}} | {{$g.Priority}} |
{{end}}{{else}}
No term is weighted more heavily by a competitor than by {{.Analysis.OwnedEntity}}.
{{end}}
## Coverage

| Entity | Pages | Words | Avg words/page | Images | Links |
|--------|-------|-------|----------------|--------|-------|
{{range .Entities}}| {{.Name}} | {{.Stats.PagesCrawled}} | {{.Stats.TotalWords}} | {{.Stats.AvgWordsPerPage}} | {{.Stats.TotalImages}} | {{.Stats.TotalLinks}} |
{{end}}`))

var agentTemplate = template.Must(template.New("agents").Funcs(funcs).Parse(`# Agent activity

Generated {{date .GeneratedAt}}.

{{.Summary.TotalInteractions}} interactions, {{.Summary.UnmatchedInteractions}} unmatched. {{.Summary.TotalUniqueSignatures}} known agents requested {{.Summary.TotalUniqueURLsAccessed}} distinct paths.

| Agent | Interactions | Unique URLs | Last seen |
|-------|--------------|-------------|-----------|
{{range .Agents}}| {{.Name}} | {{.Stats.InteractionCount}} | {{.Stats.UniqueURLCount}} | {{date .Stats.LastInteraction}} |
{{end}}{{if .Pages}}
## Stored pages requested by agents

| Path | Entity | Agents | Requests |
|------|--------|--------|----------|
{{range .Pages}}| {{.Path}} | {{.EntityName}} | {{join .Agents ", "}} | {{.InteractionCount}} |
{{end}}{{end}}`))

type entityCoverage struct {
	Name  string
	Stats models.CoverageStats
}

type agentRow struct {
	Name  string
	Stats models.AgentStats
}

// GapMarkdown lists the owned entity's coverage first, then competitors in
// analysis order, then any other entity by name.
func GapMarkdown(r GapReport) (string, error) {
	order := append([]string{r.Analysis.OwnedEntity}, r.Analysis.CompetitorEntities...)
	listed := make(map[string]bool)
	var entities []entityCoverage
	for _, name := range order {
		if stats, ok := r.Coverage[name]; ok && !listed[name] {
			listed[name] = true
			entities = append(entities, entityCoverage{Name: name, Stats: stats})
		}
	}
	var rest []string
	for name := range r.Coverage {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		entities = append(entities, entityCoverage{Name: name, Stats: r.Coverage[name]})
	}

	var buf bytes.Buffer
	err := gapTemplate.Execute(&buf, struct {
		GapReport
		Entities []entityCoverage
	}{r, entities})
	if err != nil {
		return "", fmt.Errorf("render gap report: %w", err)
	}
	return buf.String(), nil
}

// AgentMarkdown orders agents by interaction count, the Unknown bucket last.
func AgentMarkdown(r AgentReport) (string, error) {
	rows := make([]agentRow, 0, len(r.Summary.Agents))
	for name, stats := range r.Summary.Agents {
		rows = append(rows, agentRow{Name: name, Stats: stats})
	}
	sort.Slice(rows, func(i, j int) bool {
		ui, uj := rows[i].Name == models.UnknownAgent, rows[j].Name == models.UnknownAgent
		if ui != uj {
			return uj
		}
		if rows[i].Stats.InteractionCount != rows[j].Stats.InteractionCount {
			return rows[i].Stats.InteractionCount > rows[j].Stats.InteractionCount
		}
		return rows[i].Name < rows[j].Name
	})

	var buf bytes.Buffer
	err := agentTemplate.Execute(&buf, struct {
		AgentReport
		Agents []agentRow
	}{r, rows})
	if err != nil {
		return "", fmt.Errorf("render agent report: %w", err)
	}
	return buf.String(), nil
}

// Render formats Markdown for a terminal of the given width.
func Render(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}
