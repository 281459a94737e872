package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinote/tinote/internal/auth"
	"github.com/tinote/tinote/internal/handler/dto"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/service"
)

// AccountService is the user-facing account surface.
type AccountService interface {
	Login(ctx context.Context, name, studentID string) (*model.User, *model.IssuedKey, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

// AccountHandler handles login and the current user.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// Login handles POST /api/v1/login. Every successful login issues a new key.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, key, err := h.accounts.Login(r.Context(), req.Name, req.StudentID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid name or student id")
			return
		}
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.CredentialsResponse{
		User:   user.ToResponse(),
		APIKey: key,
	})
}

// Me handles GET /api/v1/users/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return
	}

	user, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
			return
		}
		h.logger.Error("failed to load user", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, user.ToResponse())
}
