package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinote/tinote/internal/ai"
	"github.com/tinote/tinote/internal/extract"
	"github.com/tinote/tinote/internal/ledger"
	"github.com/tinote/tinote/internal/metrics"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/testutil"
)

type pipelineFixture struct {
	svc         *NoteService
	store       *memStore
	quota       *mockQuota
	transcriber *mockTranscriber
	summarizer  *mockSummarizer
	metrics     *metrics.InMemoryRecorder
	user        *model.User
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		store:       newMemStore(),
		quota:       &mockQuota{},
		transcriber: &mockTranscriber{},
		summarizer:  &mockSummarizer{},
		metrics:     metrics.NewInMemory(),
		user:        testutil.NewTestUser(t, 10),
	}
	cfg := NoteConfig{
		MediaCost:        10,
		DocumentCost:     5,
		DocumentMaxChars: 20,
		TruncationMarker: "...(truncated)",
		LanguageHint:     "ko",
	}
	f.svc = NewNoteService(f.store, f.quota, f.transcriber, f.summarizer, cfg, testutil.NopLogger(), f.metrics)
	return f
}

func (f *pipelineFixture) withBalance(balance int) {
	f.quota.On("CheckAndReserve", mock.Anything, f.user.ID).Return(balance > 0, nil)
	f.quota.On("Balance", mock.Anything, f.user.ID).Return(balance, nil).Maybe()
}

func mediaInput(user *model.User) CreateNoteInput {
	return CreateNoteInput{
		User:     user,
		Category: model.CategoryMedia,
		Upload:   Upload{Data: []byte("RIFF...."), Filename: "lecture.mp3", ContentType: "audio/mpeg"},
	}
}

func documentInput(user *model.User, filename string, data []byte) CreateNoteInput {
	return CreateNoteInput{
		User:     user,
		Category: model.CategoryDocument,
		Upload:   Upload{Data: data, Filename: filename, ContentType: "application/octet-stream"},
	}
}

func TestCreateNote_Unauthenticated(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.svc.CreateNote(context.Background(), CreateNoteInput{Category: model.CategoryMedia})

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, OutcomeRejected, Outcome(err))
	f.quota.AssertNotCalled(t, "CheckAndReserve", mock.Anything, mock.Anything)
}

func TestCreateNote_ZeroBalanceMakesNoCalls(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(0)

	_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.ErrorIs(t, err, ErrQuotaExceeded)
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
	f.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
	f.quota.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.store.noteCount())
	assert.Equal(t, uint64(1), f.metrics.Snapshot().PipelineRejected["quota_exceeded"])
}

func TestCreateNote_BalanceBelowCost(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(5)

	_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.ErrorIs(t, err, ErrQuotaExceeded)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageGate, perr.Stage)
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateNote_UnsupportedMedia(t *testing.T) {
	tests := []struct {
		name  string
		input func(u *model.User) CreateNoteInput
	}{
		{"image upload as media", func(u *model.User) CreateNoteInput {
			in := mediaInput(u)
			in.Upload.ContentType = "image/png"
			in.Upload.Filename = "photo.png"
			return in
		}},
		{"spreadsheet as document", func(u *model.User) CreateNoteInput {
			return documentInput(u, "grades.xlsx", []byte("PK"))
		}},
		{"empty upload", func(u *model.User) CreateNoteInput {
			in := mediaInput(u)
			in.Upload.Data = nil
			return in
		}},
		{"unknown category", func(u *model.User) CreateNoteInput {
			in := mediaInput(u)
			in.Category = model.Category(42)
			return in
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			f.withBalance(10)

			_, err := f.svc.CreateNote(context.Background(), tt.input(f.user))

			require.ErrorIs(t, err, ErrUnsupportedMedia)
			assert.Equal(t, OutcomeRejected, Outcome(err))
			f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
			f.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateNote_MediaSuccessDebitsExactCost(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(10)
	f.transcriber.On("Transcribe", mock.Anything, mock.MatchedBy(func(a ai.Audio) bool {
		return a.Filename == "lecture.mp3" && a.MIMEType == "audio/mpeg"
	}), "ko").Return("today we study entropy", nil).Once()
	f.summarizer.On("Summarize", mock.Anything, "today we study entropy").
		Return(ai.Summary{Title: "Entropy", Body: "- disorder grows"}, nil).Once()
	f.quota.On("Debit", mock.Anything, mock.Anything, f.user.ID, 10).Return(0, nil).Once()

	note, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, Outcome(err))
	assert.Equal(t, "Entropy", note.Title)
	assert.Equal(t, "- disorder grows", note.Summary)
	assert.Equal(t, "today we study entropy", note.OriginalText)
	assert.Equal(t, model.NoteTypeAudio, note.NoteType)
	assert.Equal(t, f.user.ID, note.OwnerID)
	assert.NotEqual(t, uuid.Nil, note.ID)
	assert.Equal(t, 1, f.store.noteCount())
	f.quota.AssertNumberOfCalls(t, "Debit", 1)
	f.transcriber.AssertExpectations(t)
	f.summarizer.AssertExpectations(t)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().NotesCreated["audio"])
}

func TestCreateNote_DocumentTruncatesBeforeSummarizing(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(5)
	long := strings.Repeat("a", 30)
	f.svc.extract = func(data []byte, kind model.DocumentKind) (string, error) {
		assert.Equal(t, model.DocumentPDF, kind)
		return long, nil
	}
	want := strings.Repeat("a", 20) + "...(truncated)"
	f.summarizer.On("Summarize", mock.Anything, want).
		Return(ai.Summary{Title: "T", Body: "B"}, nil).Once()
	f.quota.On("Debit", mock.Anything, mock.Anything, f.user.ID, 5).Return(0, nil).Once()

	note, err := f.svc.CreateNote(context.Background(), documentInput(f.user, "Slides.PDF", []byte("%PDF")))

	require.NoError(t, err)
	assert.Equal(t, model.NoteTypeDocument, note.NoteType)
	assert.Equal(t, want, note.OriginalText)
	f.summarizer.AssertExpectations(t)
}

func TestCreateNote_PlainTextDocumentUsesExtractor(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(5)
	f.summarizer.On("Summarize", mock.Anything, "short notes").
		Return(ai.Summary{Title: "Notes", Body: "body"}, nil).Once()
	f.quota.On("Debit", mock.Anything, mock.Anything, f.user.ID, 5).Return(0, nil).Once()

	note, err := f.svc.CreateNote(context.Background(), documentInput(f.user, "notes.txt", []byte("short notes")))

	require.NoError(t, err)
	assert.Equal(t, "short notes", note.OriginalText)
}

func TestCreateNote_ExtractionFailed(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(10)

	_, err := f.svc.CreateNote(context.Background(), documentInput(f.user, "broken.pdf", []byte("not a pdf")))

	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, extract.ErrExtractionFailed)
	assert.Equal(t, OutcomeFailed, Outcome(err))
	f.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
	f.quota.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().PipelineFailed[StageExtract])
}

func TestCreateNote_TranscriptionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   error
		wantStatus int
		outcome    string
	}{
		{
			name:     "payload too large",
			err:      fmt.Errorf("%w: 30MB", ai.ErrPayloadTooLarge),
			wantKind: ErrPayloadTooLarge,
			outcome:  OutcomeRejected,
		},
		{
			name:       "upstream 503",
			err:        &ai.UpstreamError{Service: ai.ServiceTranscribe, StatusCode: http.StatusServiceUnavailable, Message: "overloaded"},
			wantKind:   ErrUpstream,
			wantStatus: http.StatusServiceUnavailable,
			outcome:    OutcomeFailed,
		},
		{
			name:     "empty transcript",
			err:      ai.ErrEmptyResponse,
			wantKind: ErrExtractionFailed,
			outcome:  OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			f.withBalance(10)
			f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("", tt.err)

			_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

			require.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.outcome, Outcome(err))
			var perr *PipelineError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, StageTranscribe, perr.Stage)
			assert.Equal(t, tt.wantStatus, perr.UpstreamStatus)
			f.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
			assert.Zero(t, f.store.noteCount())
		})
	}
}

func TestCreateNote_SummarizeUpstreamError(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(10)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("text", nil)
	f.summarizer.On("Summarize", mock.Anything, "text").
		Return(ai.Summary{}, &ai.UpstreamError{Service: ai.ServiceSummarize, StatusCode: http.StatusBadGateway, Message: "bad gateway"})

	_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.ErrorIs(t, err, ErrUpstream)
	f.quota.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.store.noteCount())
}

func TestCreateNote_CommitFaultRollsBack(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(10)
	f.store.createNoteErr = errors.New("disk full")
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("text", nil)
	f.summarizer.On("Summarize", mock.Anything, "text").Return(ai.Summary{Title: "T", Body: "B"}, nil)

	_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, OutcomeFailed, Outcome(err))
	f.quota.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.store.noteCount())
}

func TestCreateNote_RefusedDebitRollsBackNote(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(10)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("text", nil)
	f.summarizer.On("Summarize", mock.Anything, "text").Return(ai.Summary{Title: "T", Body: "B"}, nil)
	f.quota.On("Debit", mock.Anything, mock.Anything, f.user.ID, 10).Return(0, ledger.ErrInsufficientCredits)

	_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.ErrorIs(t, err, ErrQuotaExceeded)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageCommit, perr.Stage)
	assert.Zero(t, f.store.noteCount())
}

func TestCreateNote_CanceledBeforeCommit(t *testing.T) {
	f := newPipelineFixture(t)
	f.withBalance(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("text", nil)
	f.summarizer.On("Summarize", mock.Anything, "text").
		Run(func(mock.Arguments) { cancel() }).
		Return(ai.Summary{Title: "T", Body: "B"}, nil)

	_, err := f.svc.CreateNote(ctx, mediaInput(f.user))

	require.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	f.quota.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.store.noteCount())
}

func TestCreateNote_GateStoreError(t *testing.T) {
	f := newPipelineFixture(t)
	f.quota.On("CheckAndReserve", mock.Anything, f.user.ID).Return(false, errors.New("db down"))

	_, err := f.svc.CreateNote(context.Background(), mediaInput(f.user))

	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, OutcomeFailed, Outcome(err))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeCompleted},
		{&PipelineError{Stage: StageAuth, Kind: ErrUnauthenticated}, OutcomeRejected},
		{&PipelineError{Stage: StageGate, Kind: ErrQuotaExceeded}, OutcomeRejected},
		{&PipelineError{Stage: StageClassify, Kind: ErrUnsupportedMedia}, OutcomeRejected},
		{&PipelineError{Stage: StageTranscribe, Kind: ErrPayloadTooLarge}, OutcomeRejected},
		{&PipelineError{Stage: StageSummarize, Kind: ErrUpstream}, OutcomeFailed},
		{&PipelineError{Stage: StageExtract, Kind: ErrExtractionFailed}, OutcomeFailed},
		{&PipelineError{Stage: StageCommit, Kind: ErrInternal}, OutcomeFailed},
		{errors.New("anything"), OutcomeFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestPipelineError_MatchesKindOnly(t *testing.T) {
	cause := errors.New("boom")
	err := &PipelineError{Stage: StageCommit, Kind: ErrInternal, Err: cause}

	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "commit: internal error: boom", err.Error())
}

func TestNoteReads_OwnerScoped(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	note := testutil.NewTestNote(t, f.user.ID)
	f.store.notes = append(f.store.notes, note)

	got, err := f.svc.GetNote(ctx, f.user.ID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)

	_, err = f.svc.GetNote(ctx, "someone-else", note.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)

	notes, err := f.svc.ListNotes(ctx, f.user.ID, 0, -1)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	assert.ErrorIs(t, f.svc.DeleteNote(ctx, "someone-else", note.ID), ErrNoteNotFound)
	require.NoError(t, f.svc.DeleteNote(ctx, f.user.ID, note.ID))
	assert.Zero(t, f.store.noteCount())
	assert.Equal(t, uint64(1), f.metrics.Snapshot().NotesDeleted)
}
