package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/tinote/tinote/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabeled(w, "tinote_notes_created_total", "note_type", snap.NotesCreated)
	writeMetric(w, "tinote_notes_deleted_total %d\n", snap.NotesDeleted)

	writeLabeled(w, "tinote_pipeline_rejected_total", "reason", snap.PipelineRejected)
	writeLabeled(w, "tinote_pipeline_failed_total", "stage", snap.PipelineFailed)

	for _, stage := range sortedKeys(snap.StageDurationCount) {
		writeMetric(w, "tinote_pipeline_stage_duration_seconds_count{stage=%q} %d\n", stage, snap.StageDurationCount[stage])
		writeMetric(w, "tinote_pipeline_stage_duration_seconds_sum{stage=%q} %.6f\n", stage, float64(snap.StageDurationTotalNs[stage])/1e9)
	}

	writeMetric(w, "tinote_credits_debited_total %d\n", snap.CreditsDebited)
	writeMetric(w, "tinote_credit_resets_total{status=\"success\"} %d\n", snap.CreditResets)
	writeMetric(w, "tinote_credit_resets_total{status=\"failed\"} %d\n", snap.CreditResetFailures)
	writeMetric(w, "tinote_credit_reset_users_total %d\n", snap.CreditResetUsers)

	writeMetric(w, "tinote_auth_cache_hits_total %d\n", snap.AuthCacheHits)
	writeMetric(w, "tinote_auth_cache_misses_total %d\n", snap.AuthCacheMisses)
}

func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	for _, key := range sortedKeys(values) {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
