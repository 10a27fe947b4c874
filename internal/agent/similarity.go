package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/truecontent/content-review-service/internal/domain"
)

// similarityAgentName labels logs and metrics for the dedup agent.
const similarityAgentName = "similarity"

// SimilarityClient asks the dedup agent which records in a page are
// duplicates of each other.
type SimilarityClient struct {
	client *Client
	appID  string
}

// NewSimilarityClient creates a similarity agent client bound to one
// gateway application.
func NewSimilarityClient(client *Client, appID string) *SimilarityClient {
	return &SimilarityClient{client: client, appID: appID}
}

// similarityItem is one record in the agent's request payload. Only the
// fields the agent needs for comparison are sent.
type similarityItem struct {
	LinkID    string   `json:"link_id"`
	Title     string   `json:"title"`
	EventTags []string `json:"event_tags"`
}

type similarityRequest struct {
	NewsList []similarityItem `json:"news_list"`
}

// similarityResponse mirrors the agent's JSON verdict.
type similarityResponse struct {
	SelectedNews    []similaritySelected `json:"selected_news"`
	DuplicateGroups []similarityGroup    `json:"duplicate_groups"`
	Summary         similaritySummary    `json:"summary"`
}

type similaritySelected struct {
	LinkID string `json:"link_id"`
}

type similarityGroup struct {
	Members         []string `json:"members"`
	KeptID          string   `json:"kept_id"`
	SimilarityNotes string   `json:"similarity_notes"`
	Rationale       string   `json:"rationale"`
}

type similaritySummary struct {
	TotalInput     int `json:"total_input"`
	UniqueKept     int `json:"unique_kept"`
	DuplicateFound int `json:"duplicate_found"`
}

// Deduplicate sends one page of records to the similarity agent and parses
// its verdict. The agent's selected_news is authoritative: a link_id absent
// from it is dropped even if no duplicate group names it.
func (c *SimilarityClient) Deduplicate(ctx context.Context, records []domain.NewsRecord) (*domain.DuplicateVerdict, error) {
	items := make([]similarityItem, len(records))
	for i, rec := range records {
		items[i] = similarityItem{LinkID: rec.LinkID, Title: rec.Title, EventTags: emptyIfNil(rec.EventTags)}
	}

	prompt, err := json.Marshal(similarityRequest{NewsList: items})
	if err != nil {
		return nil, domain.NewAgentCallError(similarityAgentName, 0, fmt.Sprintf("marshal prompt: %v", err), "")
	}

	text, err := c.client.Complete(ctx, similarityAgentName, c.appID, string(prompt))
	if err != nil {
		return nil, err
	}

	payload, ok := ExtractJSON(text)
	if !ok {
		return nil, domain.NewAgentCallError(similarityAgentName, 0, "no JSON found in agent output", text)
	}

	var parsed similarityResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, domain.NewAgentCallError(similarityAgentName, 0, fmt.Sprintf("decode verdict: %v", err), text)
	}
	if parsed.SelectedNews == nil {
		return nil, domain.NewAgentCallError(similarityAgentName, 0, "verdict missing selected_news", text)
	}

	verdict := &domain.DuplicateVerdict{
		SelectedLinkIDs: make([]string, 0, len(parsed.SelectedNews)),
		DuplicateGroups: make([]domain.DuplicateGroup, 0, len(parsed.DuplicateGroups)),
		Summary: domain.DuplicateSummary{
			TotalInput:     parsed.Summary.TotalInput,
			UniqueKept:     parsed.Summary.UniqueKept,
			DuplicateFound: parsed.Summary.DuplicateFound,
		},
	}

	for _, sel := range parsed.SelectedNews {
		if sel.LinkID != "" {
			verdict.SelectedLinkIDs = append(verdict.SelectedLinkIDs, sel.LinkID)
		}
	}

	for _, group := range parsed.DuplicateGroups {
		rationale := group.SimilarityNotes
		if rationale == "" {
			rationale = group.Rationale
		}
		verdict.DuplicateGroups = append(verdict.DuplicateGroups, domain.DuplicateGroup{
			Members:   group.Members,
			KeptID:    group.KeptID,
			Rationale: rationale,
		})
	}

	return verdict, nil
}
