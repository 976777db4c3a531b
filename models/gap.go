package models

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
)

type GapRecord struct {
	Term             string   `json:"term"`
	Competitor       string   `json:"competitor"`
	CompetitorWeight float64  `json:"competitor_strength"`
	OwnedWeight      float64  `json:"owned_strength"`
	GapScore         float64  `json:"gap_score"`
	Priority         Priority `json:"priority"`
}

type GapAnalysisResult struct {
	OwnedEntity         string      `json:"owned_entity"`
	CompetitorEntities  []string    `json:"competitor_entities"`
	TotalGapsIdentified int         `json:"total_gaps_identified"`
	CandidateGaps       int         `json:"candidate_gaps"`
	HighPriority        int         `json:"high_priority_gaps"`
	MediumPriority      int         `json:"medium_priority_gaps"`
	TopGaps             []GapRecord `json:"top_gaps"`
}

type CoverageStats struct {
	PagesCrawled    int                 `json:"pages_crawled"`
	TotalWords      int                 `json:"total_words"`
	AvgWordsPerPage int                 `json:"avg_words_per_page"`
	TotalImages     int                 `json:"total_images"`
	TotalLinks      int                 `json:"total_links"`
	ContentTypes    map[ContentType]int `json:"content_types,omitempty"`
}
