// Package monitor implements the stability-triggered batch monitor: a
// control loop that watches the upstream store for the latest crawl
// workflow, infers when it has stopped growing, and triggers the processing
// pipeline exactly once per workflow.
//
// All mutable state is owned by the goroutine running Run. The API layer
// talks to it through commands (Start, Stop, Reset, Status); there is no
// shared state and no locking. Pipeline runs execute on their own goroutine
// so commands keep being served while a run is in flight.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/observability"
	"github.com/truecontent/content-review-service/internal/pipeline"
	"github.com/truecontent/content-review-service/internal/repository"
)

// Defaults for the control loop.
const (
	DefaultTickInterval = 60 * time.Second
	DefaultQuietPeriod  = 10 * time.Minute
	DefaultCountdown    = 1 * time.Minute

	// MinCountdownMinutes and MaxCountdownMinutes bound the operator-set
	// countdown on a start command.
	MinCountdownMinutes = 1
	MaxCountdownMinutes = 1440
)

// allPhases enumerates the phase gauge labels.
var allPhases = []string{
	string(domain.PhaseObserving),
	string(domain.PhaseStabilizing),
	string(domain.PhaseCountdown),
	string(domain.PhaseProcessing),
	string(domain.PhaseCompleted),
	string(domain.PhaseSkipped),
}

// Runner executes the processing pipeline for one workflow.
type Runner interface {
	Process(ctx context.Context, workflowID, trigger string) (*pipeline.RunReport, error)
}

// Config holds the monitor's timing configuration.
type Config struct {
	// TickInterval is how often the loop samples the upstream store.
	TickInterval time.Duration

	// QuietPeriod is how long a workflow's row count must hold still before
	// the countdown arms.
	QuietPeriod time.Duration

	// Countdown is the default delay between stability detection and the
	// pipeline run. A start command may override it per session.
	Countdown time.Duration
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = DefaultQuietPeriod
	}
	if c.Countdown <= 0 {
		c.Countdown = DefaultCountdown
	}
}

// Monitor is the stability monitor. Create it with New, run its loop with
// Run, and control it through Start/Stop/Reset/Status from any goroutine.
type Monitor struct {
	upstream repository.UpstreamRepository
	runner   Runner
	cfg      Config
	logger   zerolog.Logger
	metrics  *observability.Metrics

	// now is the loop's clock. Tests inject a fake.
	now func() time.Time

	// launch starts the pipeline run goroutine. Tests replace it to run
	// the pipeline inline.
	launch func(fn func())

	cmds chan command

	// runResults carries the outcome of the in-flight pipeline run back to
	// the loop. At most one run is in flight, so the single buffered slot
	// lets the run goroutine finish even after the loop has shut down.
	runResults chan runResult

	// Everything below is owned by the Run goroutine.
	running   bool
	phase     domain.WorkflowPhase
	countdown time.Duration

	trackedWorkflowID string
	observedRowCount  int64
	lastGrowthAt      time.Time
	quietDeadline     time.Time
	countdownDeadline time.Time

	lastProcessedWorkflowID string
	lastRunError            string
	lastHeartbeat           time.Time
}

type command interface{ apply(m *Monitor) }

type startCmd struct {
	countdown      time.Duration
	resetProcessed bool
	reply          chan struct{}
}

type stopCmd struct{ reply chan struct{} }

type resetCmd struct{ reply chan struct{} }

type statusCmd struct{ reply chan domain.MonitorStatus }

// runResult is the outcome of one pipeline run goroutine.
type runResult struct {
	workflowID string
	report     *pipeline.RunReport
	err        error
}

// New creates a monitor.
func New(upstream repository.UpstreamRepository, runner Runner, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		upstream:   upstream,
		runner:     runner,
		cfg:        cfg,
		logger:     logger.With().Str("component", "monitor").Logger(),
		metrics:    metrics,
		now:        time.Now,
		launch:     func(fn func()) { go fn() },
		cmds:       make(chan command),
		runResults: make(chan runResult, 1),
		phase:      domain.PhaseObserving,
		countdown:  cfg.Countdown,
	}
}

// Run owns the monitor state and blocks until ctx is cancelled. Commands
// are served even while the monitor is stopped; ticks sample the upstream
// store only while it is started.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("tick_interval", m.cfg.TickInterval).
		Dur("quiet_period", m.cfg.QuietPeriod).
		Dur("countdown", m.countdown).
		Msg("monitor loop started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor loop stopped")
			return
		case cmd := <-m.cmds:
			cmd.apply(m)
		case res := <-m.runResults:
			m.finishRun(res)
		case <-ticker.C:
			if m.running {
				m.step(ctx)
			}
		}
	}
}

// Start begins (or restarts) monitoring. countdownMinutes overrides the
// configured countdown when non-zero and must be within
// [MinCountdownMinutes, MaxCountdownMinutes]. resetProcessed clears the
// last-processed marker so a processed workflow can run again.
func (m *Monitor) Start(ctx context.Context, countdownMinutes int, resetProcessed bool) error {
	countdown := m.cfg.Countdown
	if countdownMinutes != 0 {
		if countdownMinutes < MinCountdownMinutes || countdownMinutes > MaxCountdownMinutes {
			return fmt.Errorf("%w: countdown must be between %d and %d minutes, got %d",
				domain.ErrInvalidInput, MinCountdownMinutes, MaxCountdownMinutes, countdownMinutes)
		}
		countdown = time.Duration(countdownMinutes) * time.Minute
	}

	cmd := startCmd{countdown: countdown, resetProcessed: resetProcessed, reply: make(chan struct{})}
	return m.send(ctx, cmd, cmd.reply)
}

// Stop halts monitoring at the next loop iteration. An in-flight pipeline
// run is not interrupted.
func (m *Monitor) Stop(ctx context.Context) error {
	cmd := stopCmd{reply: make(chan struct{})}
	return m.send(ctx, cmd, cmd.reply)
}

// Reset clears all tracking state, including the last-processed marker,
// without changing whether the monitor is running.
func (m *Monitor) Reset(ctx context.Context) error {
	cmd := resetCmd{reply: make(chan struct{})}
	return m.send(ctx, cmd, cmd.reply)
}

// Status returns a snapshot of the monitor's control state.
func (m *Monitor) Status(ctx context.Context) (domain.MonitorStatus, error) {
	// The buffered reply lets the loop answer without blocking when the
	// caller gave up after the command was accepted.
	cmd := statusCmd{reply: make(chan domain.MonitorStatus, 1)}
	select {
	case m.cmds <- cmd:
	case <-ctx.Done():
		return domain.MonitorStatus{}, ctx.Err()
	}
	select {
	case status := <-cmd.reply:
		return status, nil
	case <-ctx.Done():
		return domain.MonitorStatus{}, ctx.Err()
	}
}

func (m *Monitor) send(ctx context.Context, cmd command, done chan struct{}) error {
	select {
	case m.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c startCmd) apply(m *Monitor) {
	m.running = true
	m.countdown = c.countdown
	if c.resetProcessed {
		m.lastProcessedWorkflowID = ""
	}
	m.lastRunError = ""
	m.clearTracking()
	m.logger.Info().
		Dur("countdown", c.countdown).
		Bool("reset_processed", c.resetProcessed).
		Msg("monitor started")
	close(c.reply)
}

func (c stopCmd) apply(m *Monitor) {
	m.running = false
	m.clearTracking()
	m.logger.Info().Msg("monitor stopped")
	close(c.reply)
}

func (c resetCmd) apply(m *Monitor) {
	m.lastProcessedWorkflowID = ""
	m.lastRunError = ""
	m.clearTracking()
	m.logger.Info().Msg("monitor state reset")
	close(c.reply)
}

func (c statusCmd) apply(m *Monitor) {
	c.reply <- m.snapshot()
}

func (m *Monitor) snapshot() domain.MonitorStatus {
	status := domain.MonitorStatus{
		Running:                 m.running,
		Phase:                   m.phase,
		TrackedWorkflowID:       m.trackedWorkflowID,
		ObservedRowCount:        int(m.observedRowCount),
		CountdownMinutes:        int(m.countdown / time.Minute),
		LastProcessedWorkflowID: m.lastProcessedWorkflowID,
		LastRunError:            m.lastRunError,
		LastHeartbeat:           m.lastHeartbeat,
	}
	if !m.lastGrowthAt.IsZero() {
		t := m.lastGrowthAt
		status.LastGrowthAt = &t
	}
	if m.phase == domain.PhaseCountdown && !m.countdownDeadline.IsZero() {
		t := m.countdownDeadline
		status.CountdownDeadline = &t
	}
	return status
}

func (m *Monitor) clearTracking() {
	m.trackedWorkflowID = ""
	m.observedRowCount = 0
	m.lastGrowthAt = time.Time{}
	m.quietDeadline = time.Time{}
	m.countdownDeadline = time.Time{}
	m.setPhase(domain.PhaseObserving)
}

func (m *Monitor) setPhase(phase domain.WorkflowPhase) {
	if m.phase != phase {
		m.logger.Debug().
			Str("from", string(m.phase)).
			Str("to", string(phase)).
			Str("workflow_id", m.trackedWorkflowID).
			Msg("phase transition")
	}
	m.phase = phase
	if m.metrics != nil {
		m.metrics.SetMonitorPhase(string(phase), allPhases)
	}
}

// step performs one sampling tick. It is called only from the Run goroutine
// (and directly by tests).
func (m *Monitor) step(ctx context.Context) {
	now := m.now()
	m.lastHeartbeat = now

	select {
	case res := <-m.runResults:
		m.finishRun(res)
	default:
	}

	// Sampling pauses while a run is in flight; commands keep being served
	// by the loop.
	if m.phase == domain.PhaseProcessing {
		m.recordTick()
		return
	}

	info, err := m.upstream.LatestWorkflow(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Debug().Msg("no workflows in upstream store")
		} else {
			m.logger.Warn().Err(err).Msg("failed to read latest workflow, will retry next tick")
		}
		m.recordTick()
		return
	}

	if info.WorkflowID == m.lastProcessedWorkflowID {
		if m.phase != domain.PhaseSkipped {
			m.logger.Info().Str("workflow_id", info.WorkflowID).Msg("latest workflow already processed")
		}
		m.trackedWorkflowID = ""
		m.setPhase(domain.PhaseSkipped)
		m.recordTick()
		return
	}

	if info.WorkflowID != m.trackedWorkflowID {
		m.beginTracking(ctx, now, info.WorkflowID)
		m.recordTick()
		return
	}

	count, err := m.upstream.CountRecords(ctx, m.trackedWorkflowID)
	if err != nil {
		m.logger.Warn().Err(err).Str("workflow_id", m.trackedWorkflowID).Msg("failed to count records, will retry next tick")
		m.recordTick()
		return
	}

	if count > m.observedRowCount {
		m.onGrowth(now, count)
	} else {
		m.onQuiet(ctx, now)
	}
	m.recordTick()
}

// beginTracking switches the monitor onto a newly seen workflow. Any
// in-flight countdown for the previous one is abandoned.
func (m *Monitor) beginTracking(ctx context.Context, now time.Time, workflowID string) {
	if m.phase == domain.PhaseCountdown {
		m.logger.Info().
			Str("old_workflow_id", m.trackedWorkflowID).
			Str("new_workflow_id", workflowID).
			Msg("new workflow appeared, abandoning countdown")
		if m.metrics != nil {
			m.metrics.RecordCountdownAbort()
		}
	}

	count, err := m.upstream.CountRecords(ctx, workflowID)
	if err != nil {
		m.logger.Warn().Err(err).Str("workflow_id", workflowID).Msg("failed to count records for new workflow")
		return
	}

	m.trackedWorkflowID = workflowID
	m.observedRowCount = count
	m.lastGrowthAt = now
	m.quietDeadline = now.Add(m.cfg.QuietPeriod)
	m.countdownDeadline = time.Time{}
	m.setPhase(domain.PhaseStabilizing)

	m.logger.Info().
		Str("workflow_id", workflowID).
		Int64("row_count", count).
		Time("quiet_deadline", m.quietDeadline).
		Msg("tracking new workflow")
}

func (m *Monitor) onGrowth(now time.Time, count int64) {
	if m.phase == domain.PhaseCountdown {
		m.logger.Info().
			Str("workflow_id", m.trackedWorkflowID).
			Int64("old_count", m.observedRowCount).
			Int64("new_count", count).
			Msg("growth during countdown, aborting")
		if m.metrics != nil {
			m.metrics.RecordCountdownAbort()
		}
	}

	m.observedRowCount = count
	m.lastGrowthAt = now
	m.quietDeadline = now.Add(m.cfg.QuietPeriod)
	m.countdownDeadline = time.Time{}
	m.setPhase(domain.PhaseStabilizing)
}

func (m *Monitor) onQuiet(ctx context.Context, now time.Time) {
	switch m.phase {
	case domain.PhaseStabilizing:
		if !now.Before(m.quietDeadline) {
			m.countdownDeadline = now.Add(m.countdown)
			m.setPhase(domain.PhaseCountdown)
			m.logger.Info().
				Str("workflow_id", m.trackedWorkflowID).
				Time("countdown_deadline", m.countdownDeadline).
				Msg("workflow stable, countdown armed")
		}
	case domain.PhaseCountdown:
		if !now.Before(m.countdownDeadline) {
			m.process(ctx)
		}
	}
}

// process launches the pipeline for the tracked workflow on its own
// goroutine so the loop keeps serving commands while the run is in flight.
// The run's outcome comes back through runResults.
func (m *Monitor) process(ctx context.Context) {
	workflowID := m.trackedWorkflowID
	m.setPhase(domain.PhaseProcessing)

	m.logger.Info().Str("workflow_id", workflowID).Msg("countdown elapsed, running pipeline")

	m.launch(func() {
		report, err := m.runner.Process(ctx, workflowID, pipeline.TriggerMonitor)
		m.runResults <- runResult{workflowID: workflowID, report: report, err: err}
	})
}

// finishRun settles the outcome of a pipeline run. Failures are recorded and
// the monitor returns to observing; the workflow stays unmarked so it can be
// retried on its next detection cycle or manually.
func (m *Monitor) finishRun(res runResult) {
	logger := m.logger.With().Str("workflow_id", res.workflowID).Logger()

	if res.err != nil {
		m.lastRunError = res.err.Error()
		logger.Error().Err(res.err).Msg("pipeline run failed")
		m.clearTracking()
		return
	}

	m.lastRunError = ""
	m.lastProcessedWorkflowID = res.workflowID
	if res.report.Skipped() {
		logger.Info().Msg("workflow was already processed")
	}

	m.trackedWorkflowID = ""
	m.observedRowCount = 0
	m.lastGrowthAt = time.Time{}
	m.quietDeadline = time.Time{}
	m.countdownDeadline = time.Time{}
	m.setPhase(domain.PhaseCompleted)
}

func (m *Monitor) recordTick() {
	if m.metrics != nil {
		m.metrics.RecordMonitorTick(m.observedRowCount)
	}
}
