package models

import "time"

// UnknownAgent is the detected name of log records no signature matched.
const UnknownAgent = "Unknown"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// SignatureRow is one row of the reference signature table. Only Name is
// required; empty optional fields mean null.
type SignatureRow struct {
	Name     string
	Provider string
	Category string
	Pattern  string
	IPRanges string
}

type AgentSignature struct {
	ID       string   `json:"signature_id"`
	Name     string   `json:"name"`
	Provider string   `json:"provider,omitempty"`
	Category string   `json:"category,omitempty"`
	Pattern  string   `json:"pattern"`
	IPRanges []string `json:"ip_ranges,omitempty"`
}

type LogRecord struct {
	Timestamp      time.Time
	Method         string
	URL            string
	StatusCode     int
	UserAgent      string
	IP             string
	Referer        string
	ResponseTimeMS int
	// AgentLabel is an explicit bot column some exports carry next to the user agent.
	AgentLabel string
}

type MatchResult struct {
	SignatureID  string     `json:"signature_id,omitempty"`
	DetectedName string     `json:"detected_name"`
	Confidence   Confidence `json:"confidence"`
}

func (m MatchResult) Matched() bool {
	return m.SignatureID != ""
}

// Interaction is the row shape of the interaction log table.
type Interaction struct {
	ID             string
	SignatureID    string
	DetectedName   string
	Confidence     Confidence
	Timestamp      time.Time
	URL            string
	Path           string
	StatusCode     int
	Method         string
	ResponseTimeMS int
	UserAgent      string
	IP             string
	Referer        string
}

type AgentStats struct {
	InteractionCount int         `json:"interaction_count"`
	UniqueURLCount   int         `json:"unique_url_count"`
	LastInteraction  time.Time   `json:"last_interaction"`
	StatusCodes      map[int]int `json:"status_codes,omitempty"`
}

type AgentSummary struct {
	TotalUniqueSignatures   int                   `json:"total_unique_signatures"`
	TotalUniqueURLsAccessed int                   `json:"total_unique_urls_accessed"`
	TotalInteractions       int                   `json:"total_interactions"`
	UnmatchedInteractions   int                   `json:"unmatched_interactions"`
	Agents                  map[string]AgentStats `json:"agents"`
}

// PageAccess ties a stored page to the agents observed requesting its path.
type PageAccess struct {
	Path             string   `json:"path"`
	DocID            string   `json:"doc_id"`
	EntityName       string   `json:"entity_name"`
	Agents           []string `json:"agents"`
	InteractionCount int      `json:"interaction_count"`
}
