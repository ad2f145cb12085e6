package auth

import (
	"encoding/json"
	"net/http"

	"github.com/blagoySimandov/proaccount/internal/logger"
)

type AuthError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(AuthError{
		Success: false,
		Error:   message,
	}); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to write JSON error")
	}
}
