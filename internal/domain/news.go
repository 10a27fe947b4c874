// Package domain contains the core entities and error taxonomy for the
// content review service.
package domain

import "time"

// Importance classifies how significant a crawled news record is.
// These values must match the upstream store's importance column.
type Importance string

// Importance levels.
const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// DefaultImportanceFilter is the importance filter applied when fetching
// records for deduplication: low-importance records are never processed.
var DefaultImportanceFilter = []Importance{ImportanceHigh, ImportanceMedium}

// NewsRecord is one crawled article, owned by the upstream store and
// read-only to this service.
type NewsRecord struct {
	// LinkID uniquely identifies the article across the whole system.
	LinkID string `json:"link_id"`

	// WorkflowID identifies the crawl run this record belongs to.
	WorkflowID string `json:"workflow_id"`

	Title   string `json:"title"`
	Content string `json:"content,omitempty"`

	// EventTags is an ordered list of event labels assigned by the crawler.
	EventTags     []string `json:"event_tags"`
	SpaceTags     []string `json:"space_tags,omitempty"`
	ImpactFactors []string `json:"impact_factors,omitempty"`
	CatTags       []string `json:"cat_tags,omitempty"`

	Importance  Importance `json:"importance"`
	SourceNote  string     `json:"source_note,omitempty"`
	HomepageURL string     `json:"homepage_url,omitempty"`
	PublishTime *time.Time `json:"publish_time,omitempty"`
}

// WorkflowInfo describes the most recent crawl run as observed in the
// upstream store.
type WorkflowInfo struct {
	WorkflowID string    `json:"workflow_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PreparedRecord is a dedup survivor persisted to the intermediate store.
// At most one row exists per (workflow_id, link_id).
type PreparedRecord struct {
	LinkID          string    `json:"link_id"`
	WorkflowID      string    `json:"workflow_id"`
	SimilarityNotes string    `json:"similarity_notes,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}
