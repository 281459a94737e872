// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinote/tinote/internal/ai"
	"github.com/tinote/tinote/internal/extract"
	"github.com/tinote/tinote/internal/ledger"
	"github.com/tinote/tinote/internal/metrics"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Quota is the ledger as seen by the pipeline.
type Quota interface {
	CheckAndReserve(ctx context.Context, userID string) (bool, error)
	Balance(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, d ledger.Debiter, userID string, amount int) (int, error)
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio ai.Audio, languageHint string) (string, error)
}

// Summarizer turns text into a titled note.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (ai.Summary, error)
}

// ExtractFunc pulls text out of a document.
type ExtractFunc func(data []byte, kind model.DocumentKind) (string, error)

// NoteConfig holds pipeline tunables.
type NoteConfig struct {
	MediaCost        int
	DocumentCost     int
	DocumentMaxChars int
	TruncationMarker string
	LanguageHint     string
}

// Upload is a file received from a client.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// CreateNoteInput defines input for creating a note.
type CreateNoteInput struct {
	User     *model.User
	Upload   Upload
	Category model.Category
}

// NoteService runs the note pipeline and serves note reads.
type NoteService struct {
	store       NoteStore
	quota       Quota
	transcriber Transcriber
	summarizer  Summarizer
	extract     ExtractFunc
	cfg         NoteConfig
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewNoteService creates a new NoteService.
func NewNoteService(store NoteStore, quota Quota, transcriber Transcriber, summarizer Summarizer, cfg NoteConfig, logger *slog.Logger, recorder metrics.Recorder) *NoteService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &NoteService{
		store:       store,
		quota:       quota,
		transcriber: transcriber,
		summarizer:  summarizer,
		extract:     extract.Extract,
		cfg:         cfg,
		logger:      logger.With("component", "note.pipeline"),
		metrics:     recorder,
	}
}

// admission is what the gate learned about a request.
type admission struct {
	noteType model.NoteType
	media    model.MediaKind
	document model.DocumentKind
	cost     int
}

// CreateNote runs authenticate, gate, extract, summarize, and commit. On
// success exactly one note is stored and the user is debited once; on any
// error nothing is stored and nothing is debited.
func (s *NoteService) CreateNote(ctx context.Context, input CreateNoteInput) (*model.Note, error) {
	start := time.Now()
	note, err := s.createNote(ctx, input)

	attrs := []any{
		"outcome", Outcome(err),
		"category", input.Category.String(),
		"filename", input.Upload.Filename,
		"bytes", len(input.Upload.Data),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if input.User != nil {
		attrs = append(attrs, "user_id", input.User.ID)
	}

	var perr *PipelineError
	if errors.As(err, &perr) {
		attrs = append(attrs, "stage", perr.Stage, "error", err)
		if perr.UpstreamStatus != 0 {
			attrs = append(attrs, "upstream_status", perr.UpstreamStatus)
		}
	}

	switch Outcome(err) {
	case OutcomeCompleted:
		s.logger.Info("note created", append(attrs, "note_id", note.ID, "note_type", note.NoteType)...)
	case OutcomeRejected:
		s.logger.Warn("note request rejected", attrs...)
	default:
		s.logger.Error("note pipeline failed", attrs...)
	}

	return note, err
}

func (s *NoteService) createNote(ctx context.Context, input CreateNoteInput) (*model.Note, error) {
	if input.User == nil {
		return nil, s.reject(StageAuth, ErrUnauthenticated, nil)
	}
	userID := input.User.ID

	ok, err := s.quota.CheckAndReserve(ctx, userID)
	if err != nil {
		return nil, s.fail(StageGate, ErrInternal, err)
	}
	if !ok {
		return nil, s.reject(StageGate, ErrQuotaExceeded, nil)
	}

	adm, err := s.admit(input)
	if err != nil {
		return nil, err
	}

	balance, err := s.quota.Balance(ctx, userID)
	if err != nil {
		return nil, s.fail(StageGate, ErrInternal, err)
	}
	if balance < adm.cost {
		return nil, s.reject(StageGate, ErrQuotaExceeded,
			fmt.Errorf("%s note costs %d, balance %d", adm.noteType, adm.cost, balance))
	}

	text, err := s.extractText(ctx, input.Upload, adm)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarize(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(StageCommit, ErrCanceled, err)
	}

	note := &model.Note{
		ID:           uuid.New(),
		OwnerID:      userID,
		Title:        summary.Title,
		OriginalText: text,
		Summary:      summary.Body,
		NoteType:     adm.noteType,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.commit(ctx, note, adm.cost); err != nil {
		return nil, err
	}

	s.metrics.IncNoteCreated(string(note.NoteType))
	return note, nil
}

// admit classifies the upload into a closed kind and prices it.
func (s *NoteService) admit(input CreateNoteInput) (admission, error) {
	up := input.Upload
	if len(up.Data) == 0 {
		return admission{}, s.reject(StageClassify, ErrUnsupportedMedia, errors.New("empty upload"))
	}

	switch input.Category {
	case model.CategoryMedia:
		kind, ok := model.ClassifyMedia(up.ContentType, up.Filename)
		if !ok {
			return admission{}, s.reject(StageClassify, ErrUnsupportedMedia,
				fmt.Errorf("content type %q is not audio or video", up.ContentType))
		}
		return admission{noteType: model.NoteTypeAudio, media: kind, cost: s.cfg.MediaCost}, nil
	case model.CategoryDocument:
		kind, ok := model.ClassifyDocument(up.Filename)
		if !ok {
			return admission{}, s.reject(StageClassify, ErrUnsupportedMedia,
				&extract.UnsupportedFormatError{Extension: model.Extension(up.Filename)})
		}
		return admission{noteType: model.NoteTypeDocument, document: kind, cost: s.cfg.DocumentCost}, nil
	default:
		return admission{}, s.reject(StageClassify, ErrUnsupportedMedia, fmt.Errorf("unknown category %d", input.Category))
	}
}

func (s *NoteService) extractText(ctx context.Context, up Upload, adm admission) (string, error) {
	if adm.noteType == model.NoteTypeAudio {
		start := time.Now()
		text, err := s.transcriber.Transcribe(ctx, ai.Audio{
			Data:     up.Data,
			Filename: up.Filename,
			MIMEType: up.ContentType,
		}, s.cfg.LanguageHint)
		s.metrics.ObserveStageDuration(metrics.StageTranscribe, time.Since(start))
		if err != nil {
			return "", s.upstreamFailure(ctx, StageTranscribe, err)
		}
		return text, nil
	}

	start := time.Now()
	text, err := s.extract(up.Data, adm.document)
	s.metrics.ObserveStageDuration(metrics.StageExtract, time.Since(start))
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			return "", s.reject(StageExtract, ErrUnsupportedMedia, err)
		}
		return "", s.fail(StageExtract, ErrExtractionFailed, err)
	}
	return extract.Truncate(text, s.cfg.DocumentMaxChars, s.cfg.TruncationMarker), nil
}

func (s *NoteService) summarize(ctx context.Context, text string) (ai.Summary, error) {
	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, text)
	s.metrics.ObserveStageDuration(metrics.StageSummarize, time.Since(start))
	if err != nil {
		return ai.Summary{}, s.upstreamFailure(ctx, StageSummarize, err)
	}
	return summary, nil
}

// commit stores the note and debits its cost in one transaction.
func (s *NoteService) commit(ctx context.Context, note *model.Note, cost int) error {
	start := time.Now()
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateNote(ctx, note); err != nil {
			return err
		}
		_, err := s.quota.Debit(ctx, tx, note.OwnerID, cost)
		return err
	})
	s.metrics.ObserveStageDuration(metrics.StageCommit, time.Since(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return s.reject(StageCommit, ErrQuotaExceeded, err)
	case ctx.Err() != nil:
		return s.fail(StageCommit, ErrCanceled, err)
	default:
		return s.fail(StageCommit, ErrInternal, err)
	}
}

// upstreamFailure maps AI client errors to pipeline kinds.
func (s *NoteService) upstreamFailure(ctx context.Context, stage string, err error) error {
	var status int
	var upErr *ai.UpstreamError
	if errors.As(err, &upErr) {
		status = upErr.StatusCode
	}

	var kind error
	switch {
	case errors.Is(err, ai.ErrPayloadTooLarge):
		return s.reject(stage, ErrPayloadTooLarge, err)
	case ctx.Err() != nil:
		kind = ErrCanceled
	case errors.Is(err, ai.ErrUpstream):
		kind = ErrUpstream
	case errors.Is(err, ai.ErrEmptyResponse):
		kind = ErrExtractionFailed
	default:
		kind = ErrInternal
	}

	perr := s.fail(stage, kind, err)
	perr.UpstreamStatus = status
	return perr
}

func (s *NoteService) reject(stage string, kind, err error) *PipelineError {
	reason := "unknown"
	switch kind {
	case ErrUnauthenticated:
		reason = "unauthenticated"
	case ErrQuotaExceeded:
		reason = "quota_exceeded"
	case ErrUnsupportedMedia:
		reason = "unsupported_media"
	case ErrPayloadTooLarge:
		reason = "payload_too_large"
	}
	s.metrics.IncPipelineRejected(reason)
	return &PipelineError{Stage: stage, Kind: kind, Err: err}
}

func (s *NoteService) fail(stage string, kind, err error) *PipelineError {
	s.metrics.IncPipelineFailed(stage)
	return &PipelineError{Stage: stage, Kind: kind, Err: err}
}

// ListNotes returns the user's notes, oldest first.
func (s *NoteService) ListNotes(ctx context.Context, ownerID string, limit, offset int) ([]*model.Note, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListNotesByOwner(ctx, ownerID, limit, offset)
}

// GetNote retrieves one of the user's notes.
func (s *NoteService) GetNote(ctx context.Context, ownerID string, id uuid.UUID) (*model.Note, error) {
	note, err := s.store.GetNote(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return note, nil
}

// DeleteNote removes one of the user's notes.
func (s *NoteService) DeleteNote(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := s.store.DeleteNote(ctx, id, ownerID); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	s.metrics.IncNoteDeleted()
	return nil
}
