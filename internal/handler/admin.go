package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tinote/tinote/internal/auth"
	"github.com/tinote/tinote/internal/handler/dto"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/service"
)

// AdminService is the operator surface over accounts and credits.
type AdminService interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*model.User, *model.IssuedKey, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	RevokeKeys(ctx context.Context, userID string) (int64, error)
	ResetCredits(ctx context.Context, credits int) (int64, error)
}

// AdminHandler provides admin-only endpoints.
type AdminHandler struct {
	admin          AdminService
	defaultCredits int
	logger         *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. defaultCredits is used when a
// reset request does not name a value.
func NewAdminHandler(admin AdminService, defaultCredits int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:          admin,
		defaultCredits: defaultCredits,
		logger:         logger,
	}
}

// ResetCredits handles POST /api/v1/admin/reset-credits.
func (h *AdminHandler) ResetCredits(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetCreditsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	credits := h.defaultCredits
	if req.Credits != nil {
		credits = *req.Credits
	}

	updated, err := h.admin.ResetCredits(r.Context(), credits)
	if err != nil {
		h.logger.Error("credit reset failed", "error", err, "credits", credits)
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
		return
	}

	h.logger.Info("credits reset by admin",
		"admin_user_id", auth.UserIDFromContext(r.Context()),
		"credits", credits,
		"updated_count", updated,
	)

	writeJSON(w, http.StatusOK, dto.ResetCreditsResponse{
		UpdatedCount: updated,
		Credits:      credits,
		Message:      fmt.Sprintf("reset %d users to %d credits", updated, credits),
	})
}

// CreateUser handles POST /api/v1/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, key, err := h.admin.CreateUser(r.Context(), service.CreateUserInput{
		Name:         req.Name,
		StudentID:    req.StudentID,
		DailyCredits: req.DailyCredits,
		Scopes:       req.Scopes,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CredentialsResponse{
		User:   user.ToResponse(),
		APIKey: key,
	})
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, err := h.admin.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListResponse(users, limit, offset))
}

// DeleteUser handles DELETE /api/v1/admin/users/{id}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.admin.DeleteUser(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeKeys handles POST /api/v1/admin/users/{id}/revoke-keys.
func (h *AdminHandler) RevokeKeys(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	revoked, err := h.admin.RevokeKeys(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("API keys revoked", "user_id", id, "revoked_count", revoked)
	writeJSON(w, http.StatusOK, dto.RevokeKeysResponse{RevokedCount: revoked})
}

func (h *AdminHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeUserNotFound, "user not found")
	case errors.Is(err, service.ErrStudentIDExists):
		writeError(w, http.StatusConflict, CodeStudentIDTaken, "student id already registered")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
	}
}
