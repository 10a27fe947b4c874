package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

var validate = validator.New()

// indexHandler lists the available endpoints.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "content-review-service",
		"endpoints": map[string]string{
			"GET /healthz":                  "liveness",
			"GET /readyz":                   "readiness (databases reachable)",
			"GET /api/status":               "monitor snapshot and database health",
			"GET /api/workflows/latest":     "most recent upstream workflow",
			"POST /api/process":             "run the pipeline for the latest workflow",
			"POST /api/process/{workflow}":  "run the pipeline for one workflow",
			"POST /api/monitor/start":       "start the monitor {minutes?, reset_processed?}",
			"POST /api/monitor/stop":        "stop the monitor",
			"POST /api/monitor/reset":       "clear monitor tracking state",
		},
	})
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready only when every database pool is healthy.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	for _, db := range s.dbs {
		health := db.Health(r.Context())
		if health.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": db.Name(),
				"error":    health.Error,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusHandler handles GET /api/status.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	monitorStatus, err := s.monitor.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "monitor unavailable: "+err.Error())
		return
	}

	databases := make(map[string]database.HealthStatus, len(s.dbs))
	for _, db := range s.dbs {
		databases[db.Name()] = db.Health(r.Context())
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Monitor:   newMonitorStatusResponse(monitorStatus, s.heartbeatStaleAfter),
		Databases: databases,
	})
}

// latestWorkflowHandler handles GET /api/workflows/latest.
func (s *Server) latestWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.upstream.LatestWorkflow(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no workflows found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to read latest workflow")
		writeError(w, http.StatusBadGateway, "upstream store unavailable")
		return
	}

	count, err := s.upstream.CountRecords(r.Context(), info.WorkflowID)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", info.WorkflowID).Msg("failed to count workflow records")
		writeError(w, http.StatusBadGateway, "upstream store unavailable")
		return
	}

	prepared, err := s.prepare.CountByWorkflow(r.Context(), info.WorkflowID)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", info.WorkflowID).Msg("failed to count prepared records")
		writeError(w, http.StatusBadGateway, "content store unavailable")
		return
	}

	reviewed, err := s.reviewed.CountByWorkflow(r.Context(), info.WorkflowID, domain.LanguageNative)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", info.WorkflowID).Msg("failed to count reviewed records")
		writeError(w, http.StatusBadGateway, "content store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, latestWorkflowResponse{
		WorkflowID:    info.WorkflowID,
		UpdatedAt:     info.UpdatedAt,
		RecordCount:   count,
		PreparedCount: prepared,
		ReviewedCount: reviewed,
	})
}

// processLatestHandler handles POST /api/process.
func (s *Server) processLatestHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.ProcessLatest(r.Context(), pipeline.TriggerManual)
	s.writeProcessResult(w, report, err)
}

// processWorkflowHandler handles POST /api/process/{workflowID}.
func (s *Server) processWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	workflowID := strings.TrimSpace(chi.URLParam(r, "workflowID"))
	if workflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	report, err := s.runner.Process(r.Context(), workflowID, pipeline.TriggerManual)
	s.writeProcessResult(w, report, err)
}

func (s *Server) writeProcessResult(w http.ResponseWriter, report *pipeline.RunReport, err error) {
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			writeError(w, http.StatusConflict, "a pipeline run is already in progress")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no workflows found")
		case errors.Is(err, domain.ErrUpstreamRead), errors.Is(err, domain.ErrPersist):
			writeError(w, http.StatusBadGateway, "datastore error: "+err.Error())
		case errors.Is(err, domain.ErrAgentCall):
			writeError(w, http.StatusBadGateway, "agent error: "+err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, newProcessResponse(report))
}

// monitorStartHandler handles POST /api/monitor/start.
func (s *Server) monitorStartHandler(w http.ResponseWriter, r *http.Request) {
	var req monitorStartRequest

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "minutes must be between 1 and 1440")
			return
		}
	}

	minutes := 0
	if req.Minutes != nil {
		minutes = *req.Minutes
	}

	if err := s.monitor.Start(r.Context(), minutes, req.ResetProcessed); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "monitor unavailable: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "monitor started"})
}

// monitorStopHandler handles POST /api/monitor/stop.
func (s *Server) monitorStopHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Stop(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "monitor unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "monitor stopped"})
}

// monitorResetHandler handles POST /api/monitor/reset.
func (s *Server) monitorResetHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Reset(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "monitor unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "monitor state reset"})
}
