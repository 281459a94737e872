// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Pipeline stages used as metric labels.
const (
	StageGate       = "gate"
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageCommit     = "commit"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Note pipeline metrics
	IncNoteCreated(noteType string)
	IncNoteDeleted()
	IncPipelineRejected(reason string) // reason: "quota_exceeded", "unsupported_media", ...
	IncPipelineFailed(stage string)
	ObserveStageDuration(stage string, duration time.Duration)

	// Credit ledger metrics
	AddCreditsDebited(amount int)
	IncCreditReset(users int64)
	IncCreditResetFailure()

	// Auth metrics
	IncAuthCacheHit()
	IncAuthCacheMiss()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
