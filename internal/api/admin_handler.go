package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/blagoySimandov/proaccount/internal/logging"
	"github.com/blagoySimandov/proaccount/internal/provision"
	"github.com/blagoySimandov/proaccount/internal/user"
	"github.com/blagoySimandov/proaccount/internal/validation"
)

// AdminHandler serves operator routes: the internal direct-insert endpoint
// and the secret-guarded diagnostics.
type AdminHandler struct {
	repo     user.Repository
	backup   *provision.BackupLog
	presence func() map[string]bool
	now      func() time.Time
}

func NewAdminHandler(repo user.Repository, backup *provision.BackupLog, presence func() map[string]bool) *AdminHandler {
	return &AdminHandler{
		repo:     repo,
		backup:   backup,
		presence: presence,
		now:      time.Now,
	}
}

type DirectInsertRequest struct {
	Email     string  `json:"email" validate:"required,loose_email"`
	IsPro     *bool   `json:"isPro"`
	FirstName *string `json:"firstName"`
}

type DirectInsertData struct {
	Email     string    `json:"email"`
	IsPro     bool      `json:"isPro"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
}

type DirectInsertResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    DirectInsertData `json:"data"`
}

func (h *AdminHandler) DirectInsert(w http.ResponseWriter, r *http.Request) {
	var req DirectInsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestBody)
		return
	}
	if err := validation.Struct(req); err != nil {
		if validation.Failed(err, "email", "required") {
			writeError(w, http.StatusBadRequest, "Email is required")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	isPro := true
	if req.IsPro != nil {
		isPro = *req.IsPro
	}
	logging.EnrichUser(r.Context(), req.Email)

	if err := h.repo.UpsertPro(r.Context(), req.Email, isPro, req.FirstName); err != nil {
		logging.EnrichError(r.Context(), err, "direct_insert")
		writeError(w, http.StatusInternalServerError, "Direct insert failed")
		return
	}

	writeJSON(w, http.StatusOK, DirectInsertResponse{
		Success: true,
		Message: "Email captured successfully",
		Data: DirectInsertData{
			Email:     req.Email,
			IsPro:     isPro,
			Timestamp: h.now().UTC(),
			Method:    "direct-insert",
			Status:    "stored",
		},
	})
}

type CheckEmailsResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Emails  []provision.BackupRecord `json:"emails"`
	Count   int                      `json:"count"`
}

func (h *AdminHandler) CheckEmails(w http.ResponseWriter, r *http.Request) {
	records, err := h.backup.Read()
	if err != nil {
		logging.EnrichError(r.Context(), err, "read_backup_log")
		writeError(w, http.StatusInternalServerError, "Failed to read email log")
		return
	}

	msg := "No emails logged yet"
	if len(records) > 0 {
		msg = fmt.Sprintf("Found %d logged emails", len(records))
	}
	writeJSON(w, http.StatusOK, CheckEmailsResponse{
		Success: true,
		Message: msg,
		Emails:  records,
		Count:   len(records),
	})
}

type TestDBResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	UserCount   int               `json:"userCount"`
	Environment map[string]string `json:"environment"`
}

func (h *AdminHandler) TestDB(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		logging.EnrichError(r.Context(), err, "db_ping")
		writeMessage(w, http.StatusInternalServerError, false, "Database connection failed")
		return
	}
	count, err := h.repo.Count(r.Context())
	if err != nil {
		logging.EnrichError(r.Context(), err, "db_count")
		writeMessage(w, http.StatusInternalServerError, false, "Database query failed")
		return
	}

	writeJSON(w, http.StatusOK, TestDBResponse{
		Success:     true,
		Message:     "Database connection successful",
		UserCount:   count,
		Environment: h.environment(),
	})
}

type DebugEnvResponse struct {
	Success     bool              `json:"success"`
	Environment map[string]string `json:"environment"`
	Timestamp   time.Time         `json:"timestamp"`
}

func (h *AdminHandler) DebugEnv(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DebugEnvResponse{
		Success:     true,
		Environment: h.environment(),
		Timestamp:   h.now().UTC(),
	})
}

// environment reports which settings are present without their values.
func (h *AdminHandler) environment() map[string]string {
	out := map[string]string{}
	if h.presence == nil {
		return out
	}
	for name, set := range h.presence() {
		if set {
			out[name] = "Set"
		} else {
			out[name] = "Missing"
		}
	}
	return out
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
