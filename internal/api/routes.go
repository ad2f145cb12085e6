package api

import (
	"net/http"
	"time"

	"github.com/blagoySimandov/proaccount/internal/auth"
	"github.com/blagoySimandov/proaccount/internal/metrics"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
)

// Guards holds the bearer checks for each protected route family.
type Guards struct {
	Admin    *auth.Middleware
	Internal *auth.Middleware
	Cron     *auth.Middleware
}

type RateLimit struct {
	Requests int
	Window   time.Duration
}

type Handlers struct {
	Account *AccountHandler
	Webhook *WebhookHandler
	Sync    *SyncHandler
	Admin   *AdminHandler
}

// SetupRoutes builds the router. Public account routes are limited per
// client IP. The webhook is not limited since the payment provider retries
// from a small set of addresses.
func SetupRoutes(h Handlers, guards Guards, limit RateLimit, allowedOrigin string) http.Handler {
	r := mux.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.HandleFunc("/healthz", Healthz).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	limited := func(fn http.HandlerFunc) http.Handler { return fn }
	if limit.Requests > 0 && limit.Window > 0 {
		byIP := httprate.LimitByIP(limit.Requests, limit.Window)
		limited = func(fn http.HandlerFunc) http.Handler { return byIP(fn) }
	}
	r.Handle("/api/signup", limited(h.Account.Signup)).Methods("POST")
	r.Handle("/api/forgot-password", limited(h.Account.ForgotPassword)).Methods("POST")
	r.Handle("/api/reset-password", limited(h.Account.ResetPassword)).Methods("POST")

	r.HandleFunc("/api/webhook/stripe", h.Webhook.Stripe).Methods("POST")

	r.Handle("/api/sync-subscriptions", guards.Cron.RequireBearer(http.HandlerFunc(h.Sync.Run))).Methods("GET", "POST")
	r.Handle("/api/direct-insert", guards.Internal.RequireBearer(http.HandlerFunc(h.Admin.DirectInsert))).Methods("POST")

	r.Handle("/api/signup", guards.Admin.RequireBearer(http.HandlerFunc(h.Account.ListUsers))).Methods("GET")
	r.Handle("/api/check-emails", guards.Admin.RequireBearer(http.HandlerFunc(h.Admin.CheckEmails))).Methods("GET")
	r.Handle("/api/test-db", guards.Admin.RequireBearer(http.HandlerFunc(h.Admin.TestDB))).Methods("GET")
	r.Handle("/api/debug-env", guards.Admin.RequireBearer(http.HandlerFunc(h.Admin.DebugEnv))).Methods("GET")

	return CORSMiddleware(allowedOrigin)(r)
}
