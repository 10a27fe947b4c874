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

func similarityFixture() []domain.NewsRecord {
	return []domain.NewsRecord{
		{LinkID: "link-a", Title: "Launch delayed", EventTags: []string{"launch"}},
		{LinkID: "link-b", Title: "Launch postponed"},
		{LinkID: "link-c", Title: "New station module docked", EventTags: []string{"docking"}},
	}
}

func TestSimilarityClientDeduplicate(t *testing.T) {
	verdict := `{
		"selected_news": [{"link_id": "link-a"}, {"link_id": "link-c"}],
		"duplicate_groups": [
			{"members": ["link-a", "link-b"], "kept_id": "link-a", "similarity_notes": "same launch event"}
		],
		"summary": {"total_input": 3, "unique_kept": 2, "duplicate_found": 1}
	}`

	var gotBody completionRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(completionEnvelope("```json\n" + verdict + "\n```"))
	})

	sc := NewSimilarityClient(client, "sim-app")
	got, err := sc.Deduplicate(context.Background(), similarityFixture())
	require.NoError(t, err)

	assert.Equal(t, []string{"link-a", "link-c"}, got.SelectedLinkIDs)
	require.Len(t, got.DuplicateGroups, 1)
	assert.Equal(t, "link-a", got.DuplicateGroups[0].KeptID)
	assert.Equal(t, []string{"link-a", "link-b"}, got.DuplicateGroups[0].Members)
	assert.Equal(t, "same launch event", got.DuplicateGroups[0].Rationale)
	assert.Equal(t, domain.DuplicateSummary{TotalInput: 3, UniqueKept: 2, DuplicateFound: 1}, got.Summary)

	// The prompt carries only the comparison fields, with tags normalized
	// to empty arrays.
	var prompt similarityRequest
	require.NoError(t, json.Unmarshal([]byte(gotBody.Input.Prompt), &prompt))
	require.Len(t, prompt.NewsList, 3)
	assert.Equal(t, "link-b", prompt.NewsList[1].LinkID)
	assert.Equal(t, []string{}, prompt.NewsList[1].EventTags)
}

func TestSimilarityClientDeduplicateRationaleFallback(t *testing.T) {
	verdict := `{
		"selected_news": [{"link_id": "link-a"}],
		"duplicate_groups": [
			{"members": ["link-a", "link-b"], "kept_id": "link-a", "rationale": "near-identical titles"}
		]
	}`

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(verdict))
	})

	sc := NewSimilarityClient(client, "sim-app")
	got, err := sc.Deduplicate(context.Background(), similarityFixture()[:2])
	require.NoError(t, err)
	require.Len(t, got.DuplicateGroups, 1)
	assert.Equal(t, "near-identical titles", got.DuplicateGroups[0].Rationale)
}

func TestSimilarityClientDeduplicateMissingSelectedNews(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(`{"duplicate_groups": []}`))
	})

	sc := NewSimilarityClient(client, "sim-app")
	_, err := sc.Deduplicate(context.Background(), similarityFixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
	assert.Contains(t, err.Error(), "selected_news")
}

func TestSimilarityClientDeduplicateNonJSONOutput(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope("I refuse to answer in JSON."))
	})

	sc := NewSimilarityClient(client, "sim-app")
	_, err := sc.Deduplicate(context.Background(), similarityFixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
}

func TestSimilarityClientDeduplicateEmptySelection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionEnvelope(`{"selected_news": [], "duplicate_groups": []}`))
	})

	sc := NewSimilarityClient(client, "sim-app")
	got, err := sc.Deduplicate(context.Background(), similarityFixture())
	require.NoError(t, err)
	assert.Empty(t, got.SelectedLinkIDs)
}
