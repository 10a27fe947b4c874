package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithRequestID(ctx, "req-123")

		result := RequestIDFromContext(ctx)
		assert.Equal(t, "req-123", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := RequestIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestWorkflowContext(t *testing.T) {
	t.Run("stores and retrieves workflow and run IDs", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithWorkflow(ctx, "wf-20260826", "run-abc")

		workflowID, runID := WorkflowFromContext(ctx)
		assert.Equal(t, "wf-20260826", workflowID)
		assert.Equal(t, "run-abc", runID)
	})

	t.Run("returns empty strings when not set", func(t *testing.T) {
		ctx := context.Background()
		workflowID, runID := WorkflowFromContext(ctx)
		assert.Equal(t, "", workflowID)
		assert.Equal(t, "", runID)
	})

	t.Run("handles partial values", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithWorkflow(ctx, "wf-only", "")

		workflowID, runID := WorkflowFromContext(ctx)
		assert.Equal(t, "wf-only", workflowID)
		assert.Equal(t, "", runID)
	})
}
