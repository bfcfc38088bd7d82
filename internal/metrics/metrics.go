// Package metrics provides Prometheus metrics for the botd session
// orchestration subsystem.
//
// Cardinality guard: no session_id, correlation_id or meeting URLs in
// labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts finished sessions by terminal result.
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_sessions_total",
		Help: "Total number of finished sessions, by result (completed/failed).",
	}, []string{"result"})

	// SessionEndTotal counts the winning end condition per session.
	SessionEndTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_session_end_total",
		Help: "Total number of recording end conditions that won the stop race.",
	}, []string{"condition"})

	// AdmissionRejectTotal counts join requests rejected at the gate.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_admission_reject_total",
		Help: "Total number of join requests rejected because a session was in flight.",
	}, []string{"source"})

	// JoinRetriesTotal counts join-phase retry attempts.
	JoinRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botd_join_retries_total",
		Help: "Total number of join-phase retries across all sessions.",
	})

	// ChunksTotal counts media chunks delivered per sink.
	ChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_pipeline_chunks_total",
		Help: "Total number of media chunks delivered, by sink and outcome.",
	}, []string{"sink", "outcome"})

	// ChunkBytesTotal counts media bytes delivered per sink.
	ChunkBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_pipeline_chunk_bytes_total",
		Help: "Total number of media bytes delivered, by sink.",
	}, []string{"sink"})

	// NotifyTotal counts notification deliveries by channel and outcome.
	NotifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_notify_total",
		Help: "Total number of notification dispatch attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})

	// SessionInFlight tracks whether the single session slot is held.
	SessionInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "botd_session_in_flight",
		Help: "1 while the admission gate is held, 0 otherwise.",
	})

	// RestreamExitTotal counts restream subprocess exits by reason.
	RestreamExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botd_restream_exit_total",
		Help: "Total number of restream process exits, by reason.",
	}, []string{"reason"})
)

// IncAdmissionReject records a busy rejection at the gate for an
// ingestion source ("http" or "queue").
func IncAdmissionReject(source string) { AdmissionRejectTotal.WithLabelValues(source).Inc() }

// SetSessionInFlight flips the in-flight gauge.
func SetSessionInFlight(held bool) {
	if held {
		SessionInFlight.Set(1)
		return
	}
	SessionInFlight.Set(0)
}

// RecordSessionOutcome records a finished session and its end condition.
func RecordSessionOutcome(result, condition string) {
	SessionsTotal.WithLabelValues(result).Inc()
	if condition != "" {
		SessionEndTotal.WithLabelValues(condition).Inc()
	}
}

// RecordChunk records one chunk delivery attempt for a sink.
func RecordChunk(sink, outcome string, bytes int) {
	ChunksTotal.WithLabelValues(sink, outcome).Inc()
	if outcome == "ok" {
		ChunkBytesTotal.WithLabelValues(sink).Add(float64(bytes))
	}
}
