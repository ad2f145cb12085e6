package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/blagoySimandov/proaccount/internal/logger"
)

const (
	maxBodyBytes        = 1 << 20
	internalServerError = "Internal server error"
	invalidRequestBody  = "Invalid request body"
	configurationError  = "Server configuration error"
)

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, messageResponse{Success: success, Message: message})
}

func writeError(w http.ResponseWriter, status int, errMsg string) {
	writeJSON(w, status, messageResponse{Success: false, Error: errMsg})
}

// decodeJSON reads a bounded JSON body. An empty body decodes to the zero
// value so that required-field validation produces the user-facing message.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
