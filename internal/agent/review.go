package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/truecontent/content-review-service/internal/domain"
)

// reviewAgentName labels logs and metrics for the review agent.
const reviewAgentName = "review"

// ReviewClient asks the review agent to optimize, score, and translate one
// article. One call returns both language renditions.
type ReviewClient struct {
	client *Client
	appID  string
}

// NewReviewClient creates a review agent client bound to one gateway
// application.
func NewReviewClient(client *Client, appID string) *ReviewClient {
	return &ReviewClient{client: client, appID: appID}
}

// reviewRequest is the per-record payload sent to the review agent.
type reviewRequest struct {
	LinkID        string   `json:"link_id"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	EventTags     []string `json:"event_tags"`
	SpaceTags     []string `json:"space_tags"`
	ImpactFactors []string `json:"impact_factors"`
	CatTags       []string `json:"cat_tags"`
}

// reviewResponse mirrors the agent's JSON verdict.
type reviewResponse struct {
	OptimizedTitle    string  `json:"optimized_title"`
	OptimizedContent  string  `json:"optimized_content"`
	ImportanceScore   float64 `json:"importance_score"`
	ReviewStatus      string  `json:"review_status"`
	ReviewNote        string  `json:"review_note"`
	TranslatedTitle   string  `json:"translated_title"`
	TranslatedContent string  `json:"translated_content"`
}

// Review sends one record to the review agent and parses its verdict.
func (c *ReviewClient) Review(ctx context.Context, record *domain.NewsRecord) (*domain.ReviewVerdict, error) {
	req := reviewRequest{
		LinkID:        record.LinkID,
		Title:         record.Title,
		Content:       record.Content,
		EventTags:     emptyIfNil(record.EventTags),
		SpaceTags:     emptyIfNil(record.SpaceTags),
		ImpactFactors: emptyIfNil(record.ImpactFactors),
		CatTags:       emptyIfNil(record.CatTags),
	}

	prompt, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewAgentCallError(reviewAgentName, 0, fmt.Sprintf("marshal prompt: %v", err), "")
	}

	text, err := c.client.Complete(ctx, reviewAgentName, c.appID, string(prompt))
	if err != nil {
		return nil, err
	}

	payload, ok := ExtractJSON(text)
	if !ok {
		return nil, domain.NewAgentCallError(reviewAgentName, 0, "no JSON found in agent output", text)
	}

	var parsed reviewResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, domain.NewAgentCallError(reviewAgentName, 0, fmt.Sprintf("decode verdict: %v", err), text)
	}
	if parsed.OptimizedTitle == "" && parsed.OptimizedContent == "" {
		return nil, domain.NewAgentCallError(reviewAgentName, 0, "verdict missing optimized content", text)
	}

	status, err := normalizeReviewStatus(parsed.ReviewStatus)
	if err != nil {
		return nil, domain.NewAgentCallError(reviewAgentName, 0, err.Error(), text)
	}

	return &domain.ReviewVerdict{
		OptimizedTitle:    parsed.OptimizedTitle,
		OptimizedContent:  parsed.OptimizedContent,
		TranslatedTitle:   parsed.TranslatedTitle,
		TranslatedContent: parsed.TranslatedContent,
		ImportanceScore:   parsed.ImportanceScore,
		ReviewStatus:      status,
		ReviewNote:        parsed.ReviewNote,
	}, nil
}

// normalizeReviewStatus maps the agent's free-form status onto the two
// verdicts the final store accepts. Agents are prompted for exact values
// but occasionally answer with close variants.
func normalizeReviewStatus(raw string) (domain.ReviewStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "approve", "pass", "passed":
		return domain.ReviewStatusApproved, nil
	case "rejected", "reject", "fail", "failed":
		return domain.ReviewStatusRejected, nil
	case "":
		return "", fmt.Errorf("verdict missing review_status")
	default:
		return "", fmt.Errorf("unrecognized review_status %q", raw)
	}
}

func emptyIfNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
