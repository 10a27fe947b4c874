package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecontent/content-review-service/internal/domain"
)

func reviewFixture() *domain.NewsRecord {
	return &domain.NewsRecord{
		LinkID:     "link-a",
		WorkflowID: "wf-001",
		Title:      "Launch delayed",
		Content:    "The launch slipped by two weeks.",
		EventTags:  []string{"launch"},
		Importance: domain.ImportanceHigh,
	}
}

func TestReviewClientReview(t *testing.T) {
	verdict := `{
		"optimized_title": "Launch Delayed Two Weeks",
		"optimized_content": "The launch has slipped by two weeks following a valve issue.",
		"importance_score": 0.82,
		"review_status": "approved",
		"review_note": "clear sourcing",
		"translated_title": "Lancement retardé de deux semaines",
		"translated_content": "Le lancement a été repoussé de deux semaines."
	}`

	var gotBody completionRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(completionEnvelope("```json\n" + verdict + "\n```"))
	})

	rc := NewReviewClient(client, "review-app")
	got, err := rc.Review(context.Background(), reviewFixture())
	require.NoError(t, err)

	assert.Equal(t, "Launch Delayed Two Weeks", got.OptimizedTitle)
	assert.Equal(t, "Lancement retardé de deux semaines", got.TranslatedTitle)
	assert.InDelta(t, 0.82, got.ImportanceScore, 1e-9)
	assert.Equal(t, domain.ReviewStatusApproved, got.ReviewStatus)
	assert.Equal(t, "clear sourcing", got.ReviewNote)

	var prompt reviewRequest
	require.NoError(t, json.Unmarshal([]byte(gotBody.Input.Prompt), &prompt))
	assert.Equal(t, "link-a", prompt.LinkID)
	assert.Equal(t, []string{"launch"}, prompt.EventTags)
	assert.Equal(t, []string{}, prompt.SpaceTags)
}

func TestReviewClientReviewRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(`{
			"optimized_title": "t",
			"optimized_content": "c",
			"importance_score": 0.1,
			"review_status": "Rejected",
			"review_note": "unverifiable claims"
		}`))
	})

	rc := NewReviewClient(client, "review-app")
	got, err := rc.Review(context.Background(), reviewFixture())
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusRejected, got.ReviewStatus)
}

func TestReviewClientReviewUnknownStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(`{
			"optimized_title": "t",
			"optimized_content": "c",
			"review_status": "maybe"
		}`))
	})

	rc := NewReviewClient(client, "review-app")
	_, err := rc.Review(context.Background(), reviewFixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
	assert.Contains(t, err.Error(), "review_status")
}

func TestReviewClientReviewMissingContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(`{"review_status": "approved"}`))
	})

	rc := NewReviewClient(client, "review-app")
	_, err := rc.Review(context.Background(), reviewFixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
}

func TestNormalizeReviewStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    domain.ReviewStatus
		wantErr bool
	}{
		{raw: "approved", want: domain.ReviewStatusApproved},
		{raw: " Approved ", want: domain.ReviewStatusApproved},
		{raw: "pass", want: domain.ReviewStatusApproved},
		{raw: "rejected", want: domain.ReviewStatusRejected},
		{raw: "FAIL", want: domain.ReviewStatusRejected},
		{raw: "", wantErr: true},
		{raw: "pending", wantErr: true},
	}

	for _, tt := range tests {
		got, err := normalizeReviewStatus(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
