package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tinote/tinote/internal/metrics"
)

func TestMetricsHandler_Exposition(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncNoteCreated("document")
	recorder.IncNoteCreated("audio")
	recorder.IncNoteCreated("document")
	recorder.IncPipelineRejected("quota_exceeded")
	recorder.IncPipelineFailed(metrics.StageSummarize)
	recorder.ObserveStageDuration(metrics.StageExtract, 1500*time.Millisecond)
	recorder.AddCreditsDebited(15)
	recorder.IncCreditReset(42)
	recorder.IncCreditResetFailure()

	rec := httptest.NewRecorder()
	NewMetricsHandler(recorder).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	for _, line := range []string{
		`tinote_notes_created_total{note_type="audio"} 1`,
		`tinote_notes_created_total{note_type="document"} 2`,
		`tinote_pipeline_rejected_total{reason="quota_exceeded"} 1`,
		`tinote_pipeline_failed_total{stage="summarize"} 1`,
		`tinote_pipeline_stage_duration_seconds_count{stage="extract"} 1`,
		`tinote_pipeline_stage_duration_seconds_sum{stage="extract"} 1.500000`,
		`tinote_credits_debited_total 15`,
		`tinote_credit_resets_total{status="success"} 1`,
		`tinote_credit_resets_total{status="failed"} 1`,
		`tinote_credit_reset_users_total 42`,
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing line %q in:\n%s", line, body)
		}
	}

	if strings.Index(body, `note_type="audio"`) > strings.Index(body, `note_type="document"`) {
		t.Error("labels are not sorted")
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
