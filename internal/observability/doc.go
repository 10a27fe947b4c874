// Package observability provides logging and metrics support for the
// content review service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for pipeline runs, agent calls, the stability
//     monitor, and the connection pool watchdog
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("workflow_id", wfID).Msg("pipeline run started")
//
// Add workflow context to a logger:
//
//	logger = observability.WithWorkflowContext(logger, workflowID, runID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("content_review")
//
// Record metrics:
//
//	metrics.RecordRunStarted("monitor")
//	metrics.RecordDedupPage(30, 22)
//	metrics.RecordAgentRequest("similarity", 2.4)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithWorkflow(ctx, workflowID, runID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	workflowID, runID := observability.WorkflowFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - workflow_id: Crawl batch identifier
//   - run_id: Pipeline run identifier
//   - link_id: Record identifier within a workflow
//   - stage: Pipeline stage (dedup, review)
//   - agent: Remote agent name (similarity, review)
//   - request_id: HTTP request identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
