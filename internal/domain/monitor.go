package domain

import "time"

// WorkflowPhase is the stability monitor's view of the tracked workflow.
type WorkflowPhase string

// Monitor phases. The monitor tracks at most one workflow at a time; the
// phase describes that workflow, or Observing when nothing is tracked.
const (
	// PhaseObserving means no workflow is currently tracked.
	PhaseObserving WorkflowPhase = "observing"

	// PhaseStabilizing means a workflow is tracked and its row count grew
	// within the quiet period.
	PhaseStabilizing WorkflowPhase = "stabilizing"

	// PhaseCountdown means the quiet period elapsed with no growth and the
	// final countdown is running. Renewed growth aborts it.
	PhaseCountdown WorkflowPhase = "countdown"

	// PhaseProcessing means the pipeline is running for the tracked
	// workflow.
	PhaseProcessing WorkflowPhase = "processing"

	// PhaseCompleted is the terminal phase of a workflow whose pipeline run
	// finished.
	PhaseCompleted WorkflowPhase = "completed"

	// PhaseSkipped is the terminal phase of a workflow that resurfaced after
	// already being processed.
	PhaseSkipped WorkflowPhase = "skipped"
)

// MonitorStatus is a point-in-time snapshot of the monitor's control state,
// produced by the owner goroutine on request.
type MonitorStatus struct {
	Running bool          `json:"running"`
	Phase   WorkflowPhase `json:"phase"`

	TrackedWorkflowID string `json:"tracked_workflow_id,omitempty"`
	ObservedRowCount  int    `json:"observed_row_count"`

	LastGrowthAt      *time.Time `json:"last_growth_at,omitempty"`
	CountdownDeadline *time.Time `json:"countdown_deadline,omitempty"`

	CountdownMinutes int `json:"countdown_minutes"`

	LastProcessedWorkflowID string `json:"last_processed_workflow_id,omitempty"`
	LastRunError            string `json:"last_run_error,omitempty"`

	// LastHeartbeat is when the monitor loop last completed a tick. A stale
	// heartbeat while Running indicates an unhealthy loop.
	LastHeartbeat time.Time `json:"last_heartbeat"`
}
