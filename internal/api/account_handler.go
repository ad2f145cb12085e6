package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blagoySimandov/proaccount/internal/cache"
	"github.com/blagoySimandov/proaccount/internal/config"
	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/internal/logging"
	"github.com/blagoySimandov/proaccount/internal/models"
	"github.com/blagoySimandov/proaccount/internal/services"
	"github.com/blagoySimandov/proaccount/internal/user"
	"github.com/blagoySimandov/proaccount/internal/validation"
)

const (
	forgotPasswordGeneric = "If an account with this email exists, a password reset link has been sent to your email address."
	resetPasswordSuccess  = "Password updated successfully! You can now sign in with your new password."
)

// RecoverySender triggers the auth provider's password recovery email.
type RecoverySender interface {
	SendRecovery(ctx context.Context, email, redirectTo string) error
}

type AccountHandler struct {
	users         user.Service
	recovery      RecoverySender
	resetRedirect string
	forgotLimiter cache.Limiter
}

// NewAccountHandler builds the account routes. recovery is nil when the auth
// subsystem is not configured; limiter may be nil.
func NewAccountHandler(users user.Service, recovery RecoverySender, resetRedirect string, limiter cache.Limiter) *AccountHandler {
	return &AccountHandler{
		users:         users,
		recovery:      recovery,
		resetRedirect: resetRedirect,
		forgotLimiter: limiter,
	}
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignupResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
	Data    []*models.User `json:"data,omitempty"`
}

type ListUsersResponse struct {
	Success bool           `json:"success"`
	Users   []*models.User `json:"users"`
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, invalidRequestBody)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Email and password are required")
		return
	}
	logging.EnrichUser(r.Context(), req.Email)

	u, err := h.users.Signup(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, user.ErrDuplicateEmail):
		writeJSON(w, http.StatusBadRequest, SignupResponse{
			Success: false,
			Message: "User already exists",
			Error:   "DUPLICATE_EMAIL",
		})
		return
	case err != nil:
		logging.EnrichError(r.Context(), err, "signup")
		writeMessage(w, http.StatusInternalServerError, false, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, SignupResponse{
		Success: true,
		Message: "User created successfully",
		Data:    []*models.User{u},
	})
}

func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		logging.EnrichError(r.Context(), err, "list_users")
		writeMessage(w, http.StatusInternalServerError, false, internalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListUsersResponse{Success: true, Users: users})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,loose_email"`
}

func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, invalidRequestBody)
		return
	}
	if err := validation.Struct(req); err != nil {
		if validation.Failed(err, "email", "required") {
			writeMessage(w, http.StatusBadRequest, false, "Email is required")
			return
		}
		writeMessage(w, http.StatusBadRequest, false, "Invalid email format")
		return
	}
	logging.EnrichUser(r.Context(), req.Email)

	if h.recovery == nil {
		logging.EnrichError(r.Context(), fmt.Errorf("%w: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY", config.ErrNotConfigured), "forgot_password")
		writeMessage(w, http.StatusInternalServerError, false, configurationError)
		return
	}

	if h.forgotLimiter != nil {
		allowed, retryAfter, err := h.forgotLimiter.Allow(r.Context(), strings.ToLower(req.Email))
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Forgot-password limiter unavailable")
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int((retryAfter+time.Second-1)/time.Second)))
			writeMessage(w, http.StatusTooManyRequests, false, "Too many password reset requests. Please try again later.")
			return
		}
	}

	err := h.recovery.SendRecovery(r.Context(), req.Email, h.resetRedirect)
	switch {
	case errors.Is(err, services.ErrAuthUserNotFound):
		logger.Log.Info().Str("email", req.Email).Msg("Recovery requested for unknown auth user")
	case err != nil:
		logging.EnrichError(r.Context(), err, "forgot_password")
		writeMessage(w, http.StatusInternalServerError, false, "Failed to send reset email. Please try again.")
		return
	}

	writeMessage(w, http.StatusOK, true, forgotPasswordGeneric)
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,utf16min=6"`
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, invalidRequestBody)
		return
	}
	if err := validation.Struct(req); err != nil {
		if validation.Failed(err, "password", "utf16min") {
			writeMessage(w, http.StatusBadRequest, false, "Password must be at least 6 characters long")
			return
		}
		writeMessage(w, http.StatusBadRequest, false, "Email and password are required")
		return
	}
	logging.EnrichUser(r.Context(), req.Email)

	if h.recovery == nil {
		logging.EnrichError(r.Context(), fmt.Errorf("%w: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY", config.ErrNotConfigured), "reset_password")
		writeMessage(w, http.StatusInternalServerError, false, configurationError)
		return
	}

	if err := h.users.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
		logging.EnrichError(r.Context(), err, "reset_password")
		writeMessage(w, http.StatusInternalServerError, false, "Failed to update password in database")
		return
	}

	writeMessage(w, http.StatusOK, true, resetPasswordSuccess)
}
