package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireBearer(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "valid token", secret: "s3cret", header: "Bearer s3cret", wantStatus: http.StatusOK},
		{name: "wrong token", secret: "s3cret", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "missing header", secret: "s3cret", header: "", wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "wrong scheme", secret: "s3cret", header: "Basic s3cret", wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "prefix of secret", secret: "s3cret", header: "Bearer s3c", wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "secret unset", secret: "", header: "Bearer ", wantStatus: http.StatusInternalServerError, wantError: "Server configuration error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMiddleware("cron", tt.secret).RequireBearer(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/sync-subscriptions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				var body AuthError
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.Equal(t, tt.wantError, body.Error)
			}
		})
	}
}
