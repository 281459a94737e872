package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncNoteCreated is a no-op.
func (n *NoopRecorder) IncNoteCreated(noteType string) {}

// IncNoteDeleted is a no-op.
func (n *NoopRecorder) IncNoteDeleted() {}

// IncPipelineRejected is a no-op.
func (n *NoopRecorder) IncPipelineRejected(reason string) {}

// IncPipelineFailed is a no-op.
func (n *NoopRecorder) IncPipelineFailed(stage string) {}

// ObserveStageDuration is a no-op.
func (n *NoopRecorder) ObserveStageDuration(stage string, duration time.Duration) {}

// AddCreditsDebited is a no-op.
func (n *NoopRecorder) AddCreditsDebited(amount int) {}

// IncCreditReset is a no-op.
func (n *NoopRecorder) IncCreditReset(users int64) {}

// IncCreditResetFailure is a no-op.
func (n *NoopRecorder) IncCreditResetFailure() {}

// IncAuthCacheHit is a no-op.
func (n *NoopRecorder) IncAuthCacheHit() {}

// IncAuthCacheMiss is a no-op.
func (n *NoopRecorder) IncAuthCacheMiss() {}
