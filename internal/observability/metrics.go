package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the content review service.
// Metrics are organized by subsystem: workflow runs, dedup, review, agent
// calls, the stability monitor, and the connection pool watchdog. All
// collectors are registered via promauto with the default registry.
type Metrics struct {
	// RunsStarted counts pipeline runs initiated, labeled by trigger
	// ("monitor" or "manual").
	RunsStarted *prometheus.CounterVec

	// RunsCompleted counts pipeline runs that finished successfully, by trigger.
	RunsCompleted *prometheus.CounterVec

	// RunsFailed counts pipeline runs that ended in failure, by trigger.
	RunsFailed *prometheus.CounterVec

	// RunsSkipped counts pipeline runs skipped because the workflow was
	// already processed, by trigger.
	RunsSkipped *prometheus.CounterVec

	// RunDuration observes the end-to-end duration of pipeline runs in seconds.
	RunDuration prometheus.Histogram

	// DedupRecordsIn counts records entering the dedup stage after the
	// importance filter.
	DedupRecordsIn prometheus.Counter

	// DedupRecordsKept counts records the similarity agent selected as survivors.
	DedupRecordsKept prometheus.Counter

	// DedupDuplicatesDropped counts records discarded as duplicates.
	DedupDuplicatesDropped prometheus.Counter

	// DedupPagesFailed counts dedup pages whose agent call failed and were skipped.
	DedupPagesFailed prometheus.Counter

	// ReviewRecords counts review stage outcomes, labeled by result
	// ("succeeded", "failed", "skipped").
	ReviewRecords *prometheus.CounterVec

	// AgentRequestsTotal counts agent gateway requests, labeled by agent.
	AgentRequestsTotal *prometheus.CounterVec

	// AgentRequestsFailed counts failed agent gateway requests, labeled by
	// agent and error type.
	AgentRequestsFailed *prometheus.CounterVec

	// AgentRequestDuration observes agent gateway request duration in
	// seconds, labeled by agent.
	AgentRequestDuration *prometheus.HistogramVec

	// MonitorPhase reports the monitor's current phase as a one-hot gauge
	// labeled by phase.
	MonitorPhase *prometheus.GaugeVec

	// MonitorObservedRows reports the last row count sampled for the
	// tracked workflow.
	MonitorObservedRows prometheus.Gauge

	// MonitorTicks counts monitor loop iterations.
	MonitorTicks prometheus.Counter

	// MonitorCountdownAborts counts countdowns abandoned because of renewed
	// growth or a newer workflow.
	MonitorCountdownAborts prometheus.Counter

	// PoolAcquiredConns reports in-use connections per pool, labeled by pool.
	PoolAcquiredConns *prometheus.GaugeVec

	// PoolIdleConns reports idle connections per pool, labeled by pool.
	PoolIdleConns *prometheus.GaugeVec

	// PoolResets counts emergency pool resets performed by the watchdog,
	// labeled by pool.
	PoolResets *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Pipeline runs
		RunsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started by trigger",
		}, []string{"trigger"}),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of pipeline runs completed successfully by trigger",
		}, []string{"trigger"}),
		RunsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of pipeline runs that failed by trigger",
		}, []string{"trigger"}),
		RunsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_skipped_total",
			Help:      "Total number of pipeline runs skipped as already processed by trigger",
		}, []string{"trigger"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Dedup stage
		DedupRecordsIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_records_in_total",
			Help:      "Total number of records entering the dedup stage",
		}),
		DedupRecordsKept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_records_kept_total",
			Help:      "Total number of records kept after deduplication",
		}),
		DedupDuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_duplicates_dropped_total",
			Help:      "Total number of records dropped as duplicates",
		}),
		DedupPagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_pages_failed_total",
			Help:      "Total number of dedup pages skipped after an agent failure",
		}),

		// Review stage
		ReviewRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_records_total",
			Help:      "Total number of review stage record outcomes by result",
		}, []string{"result"}),

		// Agent gateway
		AgentRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_total",
			Help:      "Total number of agent gateway requests by agent",
		}, []string{"agent"}),
		AgentRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_failed_total",
			Help:      "Total number of failed agent gateway requests by agent",
		}, []string{"agent", "error_type"}),
		AgentRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_request_duration_seconds",
			Help:      "Duration of agent gateway requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"agent"}),

		// Stability monitor
		MonitorPhase: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_phase",
			Help:      "Current monitor phase as a one-hot gauge",
		}, []string{"phase"}),
		MonitorObservedRows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_observed_rows",
			Help:      "Last row count observed for the tracked workflow",
		}),
		MonitorTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_ticks_total",
			Help:      "Total number of monitor loop iterations",
		}),
		MonitorCountdownAborts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_countdown_aborts_total",
			Help:      "Total number of countdowns abandoned before processing",
		}),

		// Pool watchdog
		PoolAcquiredConns: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_acquired_conns",
			Help:      "Connections currently acquired from the pool",
		}, []string{"pool"}),
		PoolIdleConns: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_idle_conns",
			Help:      "Idle connections currently held by the pool",
		}, []string{"pool"}),
		PoolResets: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_resets_total",
			Help:      "Total number of emergency pool resets",
		}, []string{"pool"}),
	}
}

// RecordRunStarted records that a pipeline run has started.
func (m *Metrics) RecordRunStarted(trigger string) {
	m.RunsStarted.WithLabelValues(trigger).Inc()
}

// RecordRunCompleted records that a pipeline run has completed.
func (m *Metrics) RecordRunCompleted(trigger string, durationSeconds float64) {
	m.RunsCompleted.WithLabelValues(trigger).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records that a pipeline run has failed.
func (m *Metrics) RecordRunFailed(trigger string, durationSeconds float64) {
	m.RunsFailed.WithLabelValues(trigger).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunSkipped records a run skipped because the workflow was already processed.
func (m *Metrics) RecordRunSkipped(trigger string) {
	m.RunsSkipped.WithLabelValues(trigger).Inc()
}

// RecordDedupPage records the outcome of one dedup page.
func (m *Metrics) RecordDedupPage(in, kept int) {
	m.DedupRecordsIn.Add(float64(in))
	m.DedupRecordsKept.Add(float64(kept))
	if dropped := in - kept; dropped > 0 {
		m.DedupDuplicatesDropped.Add(float64(dropped))
	}
}

// RecordDedupPageFailed records a dedup page skipped after an agent failure.
func (m *Metrics) RecordDedupPageFailed() {
	m.DedupPagesFailed.Inc()
}

// RecordReviewOutcome records one review stage record outcome.
func (m *Metrics) RecordReviewOutcome(result string) {
	m.ReviewRecords.WithLabelValues(result).Inc()
}

// RecordAgentRequest records an agent gateway request.
func (m *Metrics) RecordAgentRequest(agent string, durationSeconds float64) {
	m.AgentRequestsTotal.WithLabelValues(agent).Inc()
	m.AgentRequestDuration.WithLabelValues(agent).Observe(durationSeconds)
}

// RecordAgentRequestFailed records a failed agent gateway request.
func (m *Metrics) RecordAgentRequestFailed(agent, errorType string) {
	m.AgentRequestsFailed.WithLabelValues(agent, errorType).Inc()
}

// SetMonitorPhase sets the one-hot monitor phase gauge.
func (m *Metrics) SetMonitorPhase(phase string, all []string) {
	for _, p := range all {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		m.MonitorPhase.WithLabelValues(p).Set(v)
	}
}

// RecordMonitorTick records one monitor loop iteration and the observed row count.
func (m *Metrics) RecordMonitorTick(observedRows int64) {
	m.MonitorTicks.Inc()
	m.MonitorObservedRows.Set(float64(observedRows))
}

// RecordCountdownAbort records a countdown abandoned before processing.
func (m *Metrics) RecordCountdownAbort() {
	m.MonitorCountdownAborts.Inc()
}

// RecordPoolStats records a pool stats sample.
func (m *Metrics) RecordPoolStats(pool string, acquired, idle int32) {
	m.PoolAcquiredConns.WithLabelValues(pool).Set(float64(acquired))
	m.PoolIdleConns.WithLabelValues(pool).Set(float64(idle))
}

// RecordPoolReset records an emergency pool reset.
func (m *Metrics) RecordPoolReset(pool string) {
	m.PoolResets.WithLabelValues(pool).Inc()
}
