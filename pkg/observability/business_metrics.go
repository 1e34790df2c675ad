package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Member command metrics
	membershipCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_commands_total",
		Help: "Total membership commands handled",
	}, []string{
		"command", // enrol, cancel, reactivate, payment_method, convert, attach_payment_method
		"outcome", // ok, refused, not_found, lock_held, failed
	})

	membershipEnrolmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_enrolments_total",
		Help: "Total enrolments started, by payment mode",
	}, []string{
		"mode",         // recurring, one_time
		"confirmation", // payment, setup
	})

	// Status read metrics
	statusCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_status_cache_lookups_total",
		Help: "Account snapshot cache lookups for status reads",
	}, []string{
		"result", // hit, miss, error
	})

	// Batch job metrics
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_batch_items_total",
		Help: "Items visited by batch jobs, by outcome",
	}, []string{
		"job",     // align_renewals, resolve_duplicates
		"outcome", // updated, skipped_terminal, skipped_aligned, canceled, errored, ...
	})

	batchRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "membership_batch_run_duration_seconds",
		Help:    "Wall time of batch job runs",
		Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
	}, []string{
		"job",
		"dry_run",
	})

	// Webhook metrics
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook events received",
	}, []string{
		"event_type",
		"result", // processed, duplicate, ignored, invalid_signature, failed
	})
)

// RecordMembershipCommand records the outcome of one member command
func RecordMembershipCommand(command, outcome string) {
	membershipCommandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordEnrolment records an enrolment that reached the gateway
func RecordEnrolment(mode, confirmation string) {
	membershipEnrolmentsTotal.WithLabelValues(mode, confirmation).Inc()
}

// RecordStatusCacheLookup records a snapshot cache hit, miss or error
func RecordStatusCacheLookup(result string) {
	statusCacheLookups.WithLabelValues(result).Inc()
}

// RecordBatchItem records one item outcome of a batch job
func RecordBatchItem(job, outcome string) {
	batchItemsTotal.WithLabelValues(job, outcome).Inc()
}

// RecordBatchRun records the duration of a batch run
func RecordBatchRun(job string, dryRun bool, seconds float64) {
	label := "false"
	if dryRun {
		label = "true"
	}
	batchRunDuration.WithLabelValues(job, label).Observe(seconds)
}

// RecordWebhookEvent records a received webhook event
func RecordWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}
