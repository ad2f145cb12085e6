package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/blagoySimandov/proaccount/internal/logger"
)

const (
	authorizationHeader  = "Authorization"
	bearerPrefix         = "Bearer "
	unauthorizedMessage  = "Unauthorized"
	misconfiguredMessage = "Server configuration error"
)

// Middleware guards routes with a shared bearer secret. Each guarded group
// (cron, internal, admin) gets its own instance.
type Middleware struct {
	name   string
	secret string
}

func NewMiddleware(name, secret string) *Middleware {
	return &Middleware{
		name:   name,
		secret: secret,
	}
}

// RequireBearer answers 500 when the secret is not configured and 401 when
// the request's bearer token does not match it.
func (m *Middleware) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			logger.Log.Error().Str("guard", m.name).Str("path", r.URL.Path).Msg("Bearer secret is not configured")
			writeJSONError(w, http.StatusInternalServerError, misconfiguredMessage)
			return
		}

		if !m.Authorized(r) {
			logger.Log.Warn().Str("guard", m.name).Str("path", r.URL.Path).Msg("Unauthorized request")
			writeJSONError(w, http.StatusUnauthorized, unauthorizedMessage)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) Authorized(r *http.Request) bool {
	if m.secret == "" {
		return false
	}
	authHeader := r.Header.Get(authorizationHeader)
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return false
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)
	return subtle.ConstantTimeCompare([]byte(token), []byte(m.secret)) == 1
}
