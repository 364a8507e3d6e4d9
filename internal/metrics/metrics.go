// Package metrics exposes Prometheus collectors for the queue, the lock,
// the agent, and the case lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the worker and HTTP layer record against,
// each registered against its own prometheus.Registry rather than the
// global default one, so constructing more than one Registry (tests, or
// multiple worker instances in one process) never panics on a duplicate
// metric name.
type Registry struct {
	registry *prometheus.Registry

	// Queue metrics
	jobsEnqueued  *prometheus.CounterVec
	jobsClaimed   prometheus.Counter
	jobsFailed    *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	claimLatency  prometheus.Histogram

	// Lock metrics
	lockWaitDuration prometheus.Histogram
	lockContested    prometheus.Counter
	lockStaleEvicted prometheus.Counter

	// Agent metrics
	agentInvocations       *prometheus.CounterVec
	agentInvocationLatency *prometheus.HistogramVec
	agentTokensInput       *prometheus.CounterVec
	agentTokensOutput      *prometheus.CounterVec

	// Case lifecycle metrics
	casesOpened   prometheus.Counter
	casesResolved prometheus.Counter
	casesTimedOut prometheus.Counter

	// Webhook metrics
	webhookRequestsTotal *prometheus.CounterVec
	webhookDuration      prometheus.Histogram
}

// New registers every collector against a fresh Prometheus registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		registry: reg,
		jobsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caseflow_jobs_enqueued_total",
				Help: "Total number of jobs enqueued onto the durable local queue",
			},
			[]string{"status"},
		),
		jobsClaimed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "caseflow_jobs_claimed_total",
				Help: "Total number of jobs claimed off the queue by worker ticks",
			},
		),
		jobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caseflow_jobs_failed_total",
				Help: "Total number of jobs that errored during processing",
			},
			[]string{"stage"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "caseflow_queue_depth",
				Help: "Number of pending rows observed at the last worker tick",
			},
		),
		claimLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "caseflow_queue_claim_duration_seconds",
				Help:    "Duration of the BEGIN IMMEDIATE claim-next transaction",
				Buckets: prometheus.DefBuckets,
			},
		),

		lockWaitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "caseflow_lock_wait_duration_seconds",
				Help:    "Duration spent polling for a per-user lock lease",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		lockContested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "caseflow_lock_contested_total",
				Help: "Total number of lock acquisitions that had to wait on an existing lease",
			},
		),
		lockStaleEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "caseflow_lock_stale_evicted_total",
				Help: "Total number of leases force-evicted for exceeding ttl+1s",
			},
		),

		agentInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caseflow_agent_invocations_total",
				Help: "Total number of agent provider invocations",
			},
			[]string{"provider", "status"},
		),
		agentInvocationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caseflow_agent_invocation_duration_seconds",
				Help:    "Duration of a single agent provider call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		agentTokensInput: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caseflow_agent_tokens_input_total",
				Help: "Total input tokens billed across agent invocations",
			},
			[]string{"provider"},
		),
		agentTokensOutput: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caseflow_agent_tokens_output_total",
				Help: "Total output tokens billed across agent invocations",
			},
			[]string{"provider"},
		),

		casesOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "caseflow_cases_opened_total",
				Help: "Total number of cases opened, including reopenings after timeout",
			},
		),
		casesResolved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "caseflow_cases_resolved_total",
				Help: "Total number of cases explicitly marked resolved",
			},
		),
		casesTimedOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "caseflow_cases_timed_out_total",
				Help: "Total number of cases closed by the staleness sweep",
			},
		),

		webhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caseflow_webhook_requests_total",
				Help: "Total number of inbound webhook requests received",
			},
			[]string{"status"},
		),
		webhookDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "caseflow_webhook_duration_seconds",
				Help:    "Duration of webhook handling, from receipt to enqueue",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		),
	}
}

func (r *Registry) RecordJobEnqueued(status string) { r.jobsEnqueued.WithLabelValues(status).Inc() }
func (r *Registry) RecordJobClaimed()               { r.jobsClaimed.Inc() }
func (r *Registry) RecordJobFailed(stage string)    { r.jobsFailed.WithLabelValues(stage).Inc() }
func (r *Registry) SetQueueDepth(n float64)         { r.queueDepth.Set(n) }
func (r *Registry) ClaimTimer() *prometheus.Timer   { return prometheus.NewTimer(r.claimLatency) }

func (r *Registry) RecordLockWait(d time.Duration) { r.lockWaitDuration.Observe(d.Seconds()) }
func (r *Registry) RecordLockContested()           { r.lockContested.Inc() }
func (r *Registry) RecordLockStaleEvicted()        { r.lockStaleEvicted.Inc() }

func (r *Registry) RecordAgentInvocation(provider, status string) {
	r.agentInvocations.WithLabelValues(provider, status).Inc()
}
func (r *Registry) AgentInvocationTimer(provider string) *prometheus.Timer {
	return prometheus.NewTimer(r.agentInvocationLatency.WithLabelValues(provider))
}
func (r *Registry) RecordAgentTokens(provider string, input, output int) {
	r.agentTokensInput.WithLabelValues(provider).Add(float64(input))
	r.agentTokensOutput.WithLabelValues(provider).Add(float64(output))
}

func (r *Registry) RecordCaseOpened()   { r.casesOpened.Inc() }
func (r *Registry) RecordCaseResolved() { r.casesResolved.Inc() }
func (r *Registry) RecordCaseTimedOut() { r.casesTimedOut.Inc() }

func (r *Registry) RecordWebhookRequest(status string) {
	r.webhookRequestsTotal.WithLabelValues(status).Inc()
}
func (r *Registry) WebhookTimer() *prometheus.Timer {
	return prometheus.NewTimer(r.webhookDuration)
}

// Handler serves this registry's collectors in the Prometheus exposition
// format, for mounting at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
