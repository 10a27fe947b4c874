package domain

import "time"

// ReviewStatus is the verdict the review agent assigns to a record.
type ReviewStatus string

// Review verdicts.
const (
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Language selects which final store table a reviewed record is written to.
type Language string

// Supported output languages. Native is the crawl language; Translated is
// the agent-produced translation.
const (
	LanguageNative     Language = "native"
	LanguageTranslated Language = "translated"
)

// ReviewVerdict is the parsed response of one review-agent call. A single
// call returns both the optimized native content and its translation.
type ReviewVerdict struct {
	OptimizedTitle   string `json:"optimized_title"`
	OptimizedContent string `json:"optimized_content"`

	TranslatedTitle   string `json:"translated_title"`
	TranslatedContent string `json:"translated_content"`

	// ImportanceScore is the agent's 0.0-1.0 significance estimate.
	ImportanceScore float64 `json:"importance_score"`

	ReviewStatus ReviewStatus `json:"review_status"`
	ReviewNote   string       `json:"review_note,omitempty"`
}

// ReviewedRecord is the final-store row for one reviewed article in one
// language. Rows are append-only per link_id: reprocessing a link_id is a
// skip, never an overwrite.
type ReviewedRecord struct {
	LinkID     string `json:"link_id"`
	WorkflowID string `json:"workflow_id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	EventTags     []string `json:"event_tags,omitempty"`
	SpaceTags     []string `json:"space_tags,omitempty"`
	ImpactFactors []string `json:"impact_factors,omitempty"`
	CatTags       []string `json:"cat_tags,omitempty"`

	Importance      Importance   `json:"importance"`
	ImportanceScore float64      `json:"importance_score"`
	ReviewStatus    ReviewStatus `json:"review_status"`
	ReviewNote      string       `json:"review_note,omitempty"`

	SourceNote  string     `json:"source_note,omitempty"`
	HomepageURL string     `json:"homepage_url,omitempty"`
	PublishTime *time.Time `json:"publish_time,omitempty"`

	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewResult reports the outcome of running the review stage for one
// workflow. Per-record failures are isolated, so all three counters can be
// non-zero for the same run.
type ReviewResult struct {
	WorkflowID string `json:"workflow_id"`

	// SkippedWorkflow is true when the whole workflow already had reviewed
	// rows and the stage short-circuited.
	SkippedWorkflow bool `json:"skipped_workflow"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
