package httpserver

import (
	"time"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/pipeline"
)

// Response types for JSON serialization.

type statusResponse struct {
	Monitor   monitorStatusResponse             `json:"monitor"`
	Databases map[string]database.HealthStatus `json:"databases"`
}

type monitorStatusResponse struct {
	Running bool   `json:"running"`
	Healthy bool   `json:"healthy"`
	Phase   string `json:"phase"`

	TrackedWorkflowID string `json:"tracked_workflow_id,omitempty"`
	ObservedRowCount  int    `json:"observed_row_count"`

	LastGrowthAt      *time.Time `json:"last_growth_at,omitempty"`
	CountdownDeadline *time.Time `json:"countdown_deadline,omitempty"`
	CountdownMinutes  int        `json:"countdown_minutes"`

	LastProcessedWorkflowID string     `json:"last_processed_workflow_id,omitempty"`
	LastRunError            string     `json:"last_run_error,omitempty"`
	LastHeartbeat           *time.Time `json:"last_heartbeat,omitempty"`
}

func newMonitorStatusResponse(status domain.MonitorStatus, staleAfter time.Duration) monitorStatusResponse {
	resp := monitorStatusResponse{
		Running:                 status.Running,
		Healthy:                 true,
		Phase:                   string(status.Phase),
		TrackedWorkflowID:       status.TrackedWorkflowID,
		ObservedRowCount:        status.ObservedRowCount,
		LastGrowthAt:            status.LastGrowthAt,
		CountdownDeadline:       status.CountdownDeadline,
		CountdownMinutes:        status.CountdownMinutes,
		LastProcessedWorkflowID: status.LastProcessedWorkflowID,
		LastRunError:            status.LastRunError,
	}
	if !status.LastHeartbeat.IsZero() {
		t := status.LastHeartbeat
		resp.LastHeartbeat = &t
	}
	if status.Running && staleAfter > 0 && !status.LastHeartbeat.IsZero() {
		resp.Healthy = time.Since(status.LastHeartbeat) < staleAfter
	}
	return resp
}

// latestWorkflowResponse reports the newest upstream workflow together with
// how far it has progressed through the pipeline stores.
type latestWorkflowResponse struct {
	WorkflowID    string    `json:"workflow_id"`
	UpdatedAt     time.Time `json:"updated_at"`
	RecordCount   int64     `json:"record_count"`
	PreparedCount int64     `json:"prepared_count"`
	ReviewedCount int64     `json:"reviewed_count"`
}

type processResponse struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Trigger    string    `json:"trigger"`
	Skipped    bool      `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Dedup  *domain.DedupResult  `json:"dedup,omitempty"`
	Review *domain.ReviewResult `json:"review,omitempty"`
}

func newProcessResponse(report *pipeline.RunReport) processResponse {
	return processResponse{
		RunID:      report.RunID,
		WorkflowID: report.WorkflowID,
		Trigger:    report.Trigger,
		Skipped:    report.Skipped(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Dedup:      report.Dedup,
		Review:     report.Review,
	}
}

type monitorStartRequest struct {
	Minutes        *int `json:"minutes,omitempty" validate:"omitempty,min=1,max=1440"`
	ResetProcessed bool `json:"reset_processed,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}
