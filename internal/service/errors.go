package service

import (
	"errors"
	"fmt"
)

// Pipeline error kinds. Every error returned by NoteService.CreateNote
// matches exactly one of these with errors.Is.
var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrQuotaExceeded    = errors.New("daily credits exhausted")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrPayloadTooLarge  = errors.New("file too large to process")
	ErrUpstream         = errors.New("AI service unavailable")
	ErrExtractionFailed = errors.New("could not extract text")
	ErrCanceled         = errors.New("request canceled")
	ErrInternal         = errors.New("internal error")
)

// Account and note errors.
var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid name or student id")
	ErrStudentIDExists    = errors.New("student id already registered")
)

// Pipeline stages.
const (
	StageAuth       = "auth"
	StageGate       = "gate"
	StageClassify   = "classify"
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageCommit     = "commit"
)

// PipelineError reports where and why note creation stopped.
type PipelineError struct {
	Stage string
	Kind  error
	Err   error
	// UpstreamStatus is the AI provider's HTTP status, if one was received.
	UpstreamStatus int
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Is matches the error kind.
func (e *PipelineError) Is(target error) bool {
	return target == e.Kind
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Pipeline outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Outcome classifies the result of CreateNote. Rejected requests were refused
// by policy; failed requests broke on a dependency. Neither stores a note.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrUnsupportedMedia),
		errors.Is(err, ErrPayloadTooLarge):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
