package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/observability"
	"github.com/truecontent/content-review-service/internal/repository"
)

// Run triggers, used as metric labels.
const (
	TriggerMonitor = "monitor"
	TriggerManual  = "manual"
)

// pipelineLockKey serializes pipeline runs across all instances sharing the
// content store. Concurrent runs over the same workflow would race the
// processed-state checks.
const pipelineLockKey int64 = 7_4210_0001

// ErrRunInProgress is returned when another run holds the pipeline lock.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// AdvisoryLocker is the slice of the content database the runner needs for
// run serialization. The returned lock pins its database session until
// Release, since session advisory locks must be unlocked on the session
// that took them.
type AdvisoryLocker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (database.AdvisoryLock, bool, error)
}

// RunReport summarizes one end-to-end pipeline run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Dedup  *domain.DedupResult  `json:"dedup"`
	Review *domain.ReviewResult `json:"review"`
}

// Skipped reports whether both stages short-circuited on already-processed
// state, meaning the run did no new work.
func (r *RunReport) Skipped() bool {
	return r.Dedup != nil && r.Dedup.Skipped &&
		r.Review != nil && r.Review.SkippedWorkflow
}

// Runner executes the dedup and review stages for one workflow as a single
// run. Runs are serialized through a session advisory lock on the content
// store, so a monitor-triggered run and a manual one can never interleave.
type Runner struct {
	dedup    *DedupStage
	review   *ReviewStage
	upstream repository.UpstreamRepository
	locker   AdvisoryLocker
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewRunner creates a pipeline runner.
func NewRunner(
	dedup *DedupStage,
	review *ReviewStage,
	upstream repository.UpstreamRepository,
	locker AdvisoryLocker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Runner {
	return &Runner{
		dedup:    dedup,
		review:   review,
		upstream: upstream,
		locker:   locker,
		logger:   logger.With().Str("component", "pipeline_runner").Logger(),
		metrics:  metrics,
	}
}

// ProcessLatest resolves the most recent workflow in the upstream store and
// processes it.
func (r *Runner) ProcessLatest(ctx context.Context, trigger string) (*RunReport, error) {
	info, err := r.upstream.LatestWorkflow(ctx)
	if err != nil {
		return nil, err
	}
	return r.Process(ctx, info.WorkflowID, trigger)
}

// Process runs both pipeline stages for the given workflow. When another run
// holds the pipeline lock it returns ErrRunInProgress without doing any work.
func (r *Runner) Process(ctx context.Context, workflowID, trigger string) (*RunReport, error) {
	runID := uuid.NewString()
	ctx = observability.WithWorkflow(ctx, workflowID, runID)
	logger := observability.WithWorkflowContext(r.logger, workflowID, runID).
		With().Str("trigger", trigger).Logger()

	lock, acquired, err := r.locker.AcquireAdvisoryLock(ctx, pipelineLockKey)
	if err != nil {
		return nil, domain.NewPersistError("content", "acquire pipeline lock", err)
	}
	if !acquired {
		logger.Warn().Msg("pipeline lock held by another run")
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to release pipeline lock")
		}
	}()

	report := &RunReport{
		RunID:      runID,
		WorkflowID: workflowID,
		Trigger:    trigger,
		StartedAt:  time.Now(),
	}

	if r.metrics != nil {
		r.metrics.RecordRunStarted(trigger)
	}
	logger.Info().Msg("pipeline run started")

	dedupResult, err := r.dedup.Run(ctx, workflowID)
	if err != nil {
		return nil, r.failRun(logger, report, trigger, "dedup stage failed", err)
	}
	report.Dedup = dedupResult

	reviewResult, err := r.review.Run(ctx, workflowID)
	if err != nil {
		return nil, r.failRun(logger, report, trigger, "review stage failed", err)
	}
	report.Review = reviewResult

	report.FinishedAt = time.Now()
	duration := report.FinishedAt.Sub(report.StartedAt)

	if report.Skipped() {
		if r.metrics != nil {
			r.metrics.RecordRunSkipped(trigger)
		}
		logger.Info().Dur("duration", duration).Msg("pipeline run skipped, workflow already processed")
		return report, nil
	}

	if r.metrics != nil {
		r.metrics.RecordRunCompleted(trigger, duration.Seconds())
	}
	logger.Info().
		Dur("duration", duration).
		Int("dedup_input", dedupResult.Input).
		Int("dedup_selected", dedupResult.Selected).
		Int("review_succeeded", reviewResult.Succeeded).
		Int("review_failed", reviewResult.Failed).
		Int("review_skipped", reviewResult.Skipped).
		Msg("pipeline run completed")

	return report, nil
}

func (r *Runner) failRun(logger zerolog.Logger, report *RunReport, trigger, msg string, err error) error {
	report.FinishedAt = time.Now()
	if r.metrics != nil {
		r.metrics.RecordRunFailed(trigger, report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	logger.Error().Err(err).Msg(msg)
	return err
}
