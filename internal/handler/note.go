package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinote/tinote/internal/auth"
	"github.com/tinote/tinote/internal/handler/dto"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/service"
)

// multipartMemory is how much of an upload is buffered in memory before
// the multipart reader spills to temporary files.
const multipartMemory = 32 << 20

// uploadField is the multipart field carrying the file.
const uploadField = "file"

// NoteService is the note pipeline and note reads.
type NoteService interface {
	CreateNote(ctx context.Context, input service.CreateNoteInput) (*model.Note, error)
	ListNotes(ctx context.Context, ownerID string, limit, offset int) ([]*model.Note, error)
	GetNote(ctx context.Context, ownerID string, id uuid.UUID) (*model.Note, error)
	DeleteNote(ctx context.Context, ownerID string, id uuid.UUID) error
}

// UserLookup loads the authenticated user with a fresh balance.
type UserLookup interface {
	Me(ctx context.Context, userID string) (*model.User, error)
}

// NoteHandler handles HTTP requests for note operations.
type NoteHandler struct {
	notes         NoteService
	users         UserLookup
	maxUploadSize int64
	logger        *slog.Logger
}

// NewNoteHandler creates a new NoteHandler. maxUploadSize bounds the whole
// multipart body.
func NewNoteHandler(notes NoteService, users UserLookup, maxUploadSize int64, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		notes:         notes,
		users:         users,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// CreateFromMedia handles POST /api/v1/notes/from-media.
func (h *NoteHandler) CreateFromMedia(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.CategoryMedia)
}

// CreateFromDocument handles POST /api/v1/notes/from-document.
func (h *NoteHandler) CreateFromDocument(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.CategoryDocument)
}

func (h *NoteHandler) create(w http.ResponseWriter, r *http.Request, category model.Category) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	note, err := h.notes.CreateNote(r.Context(), service.CreateNoteInput{
		User:     user,
		Upload:   upload,
		Category: category,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, note.ToResponse())
}

// readUpload pulls the single file field out of a multipart body.
func (h *NoteHandler) readUpload(w http.ResponseWriter, r *http.Request) (service.Upload, bool) {
	if h.maxUploadSize > 0 {
		if r.ContentLength > h.maxUploadSize {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "upload exceeds the size limit")
			return service.Upload{}, false
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "upload exceeds the size limit")
			return service.Upload{}, false
		}
		writeError(w, http.StatusBadRequest, CodeMissingFile, "request must be multipart/form-data with a file field")
		return service.Upload{}, false
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFile, "missing file field")
		return service.Upload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read upload", "error", err, "filename", header.Filename)
		writeError(w, http.StatusBadRequest, CodeMissingFile, "could not read uploaded file")
		return service.Upload{}, false
	}

	return service.Upload{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, true
}

// List handles GET /api/v1/notes.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return
	}

	limit, offset := pagination(r)
	notes, err := h.notes.ListNotes(r.Context(), userID, limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToNoteListResponse(notes, limit, offset))
}

// Get handles GET /api/v1/notes/{id}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.noteRef(w, r)
	if !ok {
		return
	}

	note, err := h.notes.GetNote(r.Context(), userID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, note.ToResponse())
}

// Delete handles DELETE /api/v1/notes/{id}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.noteRef(w, r)
	if !ok {
		return
	}

	if err := h.notes.DeleteNote(r.Context(), userID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("note deleted", "note_id", id, "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// noteRef resolves the caller and the {id} URL parameter. Malformed ids
// are reported as not found, the same as another user's note.
func (h *NoteHandler) noteRef(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return "", uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNoteNotFound, "note not found")
		return "", uuid.Nil, false
	}
	return userID, id, true
}

// currentUser loads the authenticated user. A key whose user has been
// deleted no longer authenticates.
func (h *NoteHandler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return nil, false
	}

	user, err := h.users.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
			return nil, false
		}
		h.logger.Error("failed to load user", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
		return nil, false
	}
	return user, true
}

// handleServiceError maps service errors to HTTP responses. Upstream and
// internal failures get generic messages; the detail is in the pipeline log.
func (h *NoteHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
	case errors.Is(err, service.ErrQuotaExceeded):
		writeError(w, http.StatusForbidden, CodeQuotaExceeded, "not enough daily credits")
	case errors.Is(err, service.ErrUnsupportedMedia):
		writeError(w, http.StatusBadRequest, CodeUnsupportedMedia, unsupportedMessage(err))
	case errors.Is(err, service.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "file too large to process")
	case errors.Is(err, service.ErrExtractionFailed):
		writeError(w, http.StatusUnprocessableEntity, CodeExtractionFailed, "could not extract text from the file")
	case errors.Is(err, service.ErrUpstream):
		writeError(w, http.StatusBadGateway, CodeUpstream, "AI service unavailable, try again later")
	case errors.Is(err, service.ErrCanceled):
		writeError(w, http.StatusRequestTimeout, CodeCanceled, "request canceled")
	case errors.Is(err, service.ErrNoteNotFound):
		writeError(w, http.StatusNotFound, CodeNoteNotFound, "note not found")
	case errors.Is(err, service.ErrInternal):
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
	}
}

// unsupportedMessage names the offending format when the pipeline knows it.
func unsupportedMessage(err error) string {
	var perr *service.PipelineError
	if errors.As(err, &perr) && perr.Err != nil {
		return "unsupported file: " + perr.Err.Error()
	}
	return "unsupported file type"
}
