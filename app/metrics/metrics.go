package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flowTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novapay_flow_transitions_total",
		Help: "Flow state transitions by source and target state",
	}, []string{"from", "to"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novapay_operations_total",
		Help: "Flow operations by operation and result code",
	}, []string{"operation", "result_code"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "novapay_operation_duration_seconds",
		Help:    "Flow operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	idempotencyOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novapay_idempotency_outcomes_total",
		Help: "Idempotency claims by outcome (executed, replayed, in_progress, reused)",
	}, []string{"operation", "outcome"})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novapay_webhook_deliveries_total",
		Help: "Webhook delivery attempts by outcome (delivered, retry, dead)",
	}, []string{"outcome"})

	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novapay_job_runs_total",
		Help: "Background job batches by job and status",
	}, []string{"job", "status"})

	flowEventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novapay_flow_events_published_total",
		Help: "Flow events published to the event stream",
	})
)

func ObserveTransition(from, to string) {
	if from == "" {
		from = "NONE"
	}
	flowTransitionsTotal.WithLabelValues(from, to).Inc()
}

func ObserveOperation(operation string, resultCode int, seconds float64) {
	operationsTotal.WithLabelValues(operation, strconv.Itoa(resultCode)).Inc()
	operationDuration.WithLabelValues(operation).Observe(seconds)
}

func ObserveIdempotency(operation, outcome string) {
	idempotencyOutcomesTotal.WithLabelValues(operation, outcome).Inc()
}

func ObserveWebhookDelivery(outcome string) {
	webhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

func ObserveJobRun(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	jobRunsTotal.WithLabelValues(job, status).Inc()
}

func ObserveEventsPublished(count int) {
	flowEventsPublishedTotal.Add(float64(count))
}
