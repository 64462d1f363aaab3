package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proofsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofflow",
		Name:      "proofs_submitted_total",
		Help:      "Proofs registered in PUBLISHING state.",
	})

	proofTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Name:      "proof_transitions_total",
		Help:      "Proof state transitions by target state.",
	}, []string{"status"})

	extractionDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Name:      "extraction_degraded_total",
		Help:      "Step extractions that needed a fallback or correction.",
	}, []string{"reason"})

	anchorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proofflow",
		Subsystem: "consensus",
		Name:      "anchor_duration_seconds",
		Help:      "Time spent anchoring all records of one proof.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"outcome"})

	issuanceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Subsystem: "credential",
		Name:      "issuance_attempts_total",
		Help:      "Credential mint attempts by outcome.",
	}, []string{"outcome"})

	snapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Subsystem: "store",
		Name:      "snapshot_writes_total",
		Help:      "Snapshot writes by outcome.",
	}, []string{"outcome"})

	backgroundErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Name:      "background_errors_total",
		Help:      "Errors reported by the lifecycle worker, by error code.",
	}, []string{"code"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordSubmission counts a newly registered proof.
func RecordSubmission() { proofsSubmitted.Inc() }

// RecordTransition counts a proof entering the given status.
func RecordTransition(status string) { proofTransitions.WithLabelValues(status).Inc() }

// RecordExtractionDegraded counts degraded extractions per reason.
func RecordExtractionDegraded(reasons []string) {
	for _, reason := range reasons {
		extractionDegraded.WithLabelValues(reason).Inc()
	}
}

// ObserveAnchor records how long a full anchoring run took.
func ObserveAnchor(duration time.Duration, err error) {
	anchorDuration.WithLabelValues(outcome(err)).Observe(duration.Seconds())
}

// RecordIssuanceAttempt counts one credential mint attempt.
func RecordIssuanceAttempt(err error) { issuanceAttempts.WithLabelValues(outcome(err)).Inc() }

// RecordSnapshotWrite counts one snapshot write.
func RecordSnapshotWrite(err error) { snapshotWrites.WithLabelValues(outcome(err)).Inc() }

// RecordBackgroundError counts an error surfaced at the worker boundary.
func RecordBackgroundError(code string) { backgroundErrors.WithLabelValues(code).Inc() }
