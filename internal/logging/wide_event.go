package logging

import (
	"context"
	"time"

	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const (
	contextKeyWideEvent contextKey = "wide_event"
	contextKeyTraceID   contextKey = "trace_id"
)

// WideEvent represents a single structured log entry that captures the full lifecycle of a request.
// It is incrementally populated as the request flows through handlers, the webhook processor and
// the persistence chain. Enrich helpers are not safe for concurrent use on the same event.
type WideEvent struct {
	TraceID   string    `json:"trace_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	HTTPMethod     string `json:"http_method,omitempty"`
	HTTPPath       string `json:"http_path,omitempty"`
	HTTPStatusCode int    `json:"http_status_code,omitempty"`
	HTTPDurationMs int64  `json:"http_duration_ms,omitempty"`
	RemoteAddr     string `json:"remote_addr,omitempty"`

	UserEmail string `json:"user_email,omitempty"`

	StripeEventID   string `json:"stripe_event_id,omitempty"`
	StripeEventType string `json:"stripe_event_type,omitempty"`
	WebhookAction   string `json:"webhook_action,omitempty"`
	Duplicate       bool   `json:"duplicate,omitempty"`

	PersistStage    string   `json:"persist_stage,omitempty"`
	PersistAttempts []string `json:"persist_attempts,omitempty"`
	BackupLogged    bool     `json:"backup_logged,omitempty"`

	SyncTotal   int `json:"sync_total,omitempty"`
	SyncUpdated int `json:"sync_updated,omitempty"`
	SyncErrors  int `json:"sync_errors,omitempty"`

	Error          string `json:"error,omitempty"`
	ErrorStage     string `json:"error_stage,omitempty"`
	PanicRecovered bool   `json:"panic_recovered,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func NewWideEvent(eventType string) *WideEvent {
	return &WideEvent{
		TraceID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

func WithContext(ctx context.Context, event *WideEvent) context.Context {
	ctx = context.WithValue(ctx, contextKeyWideEvent, event)
	ctx = context.WithValue(ctx, contextKeyTraceID, event.TraceID)
	return ctx
}

func FromContext(ctx context.Context) *WideEvent {
	if event, ok := ctx.Value(contextKeyWideEvent).(*WideEvent); ok {
		return event
	}
	return nil
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(contextKeyTraceID).(string); ok {
		return traceID
	}
	return ""
}

func EnrichHTTP(ctx context.Context, method, path, remoteAddr string) {
	if event := FromContext(ctx); event != nil {
		event.HTTPMethod = method
		event.HTTPPath = path
		event.RemoteAddr = remoteAddr
	}
}

func EnrichHTTPStatus(ctx context.Context, statusCode int) {
	if event := FromContext(ctx); event != nil {
		event.HTTPStatusCode = statusCode
	}
}

func EnrichHTTPDuration(ctx context.Context, duration time.Duration) {
	if event := FromContext(ctx); event != nil {
		event.HTTPDurationMs = duration.Milliseconds()
	}
}

func EnrichUser(ctx context.Context, email string) {
	if event := FromContext(ctx); event != nil {
		event.UserEmail = email
	}
}

func EnrichWebhook(ctx context.Context, eventID, eventType string) {
	if event := FromContext(ctx); event != nil {
		event.StripeEventID = eventID
		event.StripeEventType = eventType
	}
}

func EnrichWebhookAction(ctx context.Context, action string) {
	if event := FromContext(ctx); event != nil {
		event.WebhookAction = action
	}
}

func EnrichDuplicate(ctx context.Context) {
	if event := FromContext(ctx); event != nil {
		event.Duplicate = true
	}
}

// EnrichPersistAttempt records a persistence stage that ran. The last
// successful stage is kept in PersistStage.
func EnrichPersistAttempt(ctx context.Context, stage string, err error) {
	if event := FromContext(ctx); event != nil {
		event.PersistAttempts = append(event.PersistAttempts, stage)
		if err == nil {
			event.PersistStage = stage
		}
	}
}

func EnrichBackupLogged(ctx context.Context) {
	if event := FromContext(ctx); event != nil {
		event.BackupLogged = true
	}
}

func EnrichSync(ctx context.Context, total, updated, errors int) {
	if event := FromContext(ctx); event != nil {
		event.SyncTotal = total
		event.SyncUpdated = updated
		event.SyncErrors = errors
	}
}

func EnrichError(ctx context.Context, err error, stage string) {
	if event := FromContext(ctx); event != nil {
		if err != nil {
			event.Error = err.Error()
			event.ErrorStage = stage
		}
	}
}

func EnrichPanic(ctx context.Context) {
	if event := FromContext(ctx); event != nil {
		event.PanicRecovered = true
	}
}

func EnrichMetadata(ctx context.Context, key string, value interface{}) {
	if event := FromContext(ctx); event != nil {
		event.Metadata[key] = value
	}
}

// Emit outputs the WideEvent as a single structured log line
func Emit(ctx context.Context) {
	event := FromContext(ctx)
	if event == nil {
		return
	}

	var e *zerolog.Event
	if event.Error != "" || event.PanicRecovered {
		e = logger.Log.Error()
	} else {
		e = logger.Log.Info()
	}

	e = e.Str("trace_id", event.TraceID).
		Str("event_type", event.EventType).
		Time("timestamp", event.Timestamp)

	if event.HTTPMethod != "" {
		e = e.Str("http_method", event.HTTPMethod)
	}
	if event.HTTPPath != "" {
		e = e.Str("http_path", event.HTTPPath)
	}
	if event.HTTPStatusCode != 0 {
		e = e.Int("http_status_code", event.HTTPStatusCode)
	}
	if event.HTTPDurationMs != 0 {
		e = e.Int64("http_duration_ms", event.HTTPDurationMs)
	}
	if event.RemoteAddr != "" {
		e = e.Str("remote_addr", event.RemoteAddr)
	}

	if event.UserEmail != "" {
		e = e.Str("user_email", event.UserEmail)
	}

	if event.StripeEventID != "" {
		e = e.Str("stripe_event_id", event.StripeEventID)
	}
	if event.StripeEventType != "" {
		e = e.Str("stripe_event_type", event.StripeEventType)
	}
	if event.WebhookAction != "" {
		e = e.Str("webhook_action", event.WebhookAction)
	}
	if event.Duplicate {
		e = e.Bool("duplicate", true)
	}

	if event.PersistStage != "" {
		e = e.Str("persist_stage", event.PersistStage)
	}
	if len(event.PersistAttempts) > 0 {
		e = e.Strs("persist_attempts", event.PersistAttempts)
	}
	if event.BackupLogged {
		e = e.Bool("backup_logged", true)
	}

	if event.SyncTotal != 0 {
		e = e.Int("sync_total", event.SyncTotal).
			Int("sync_updated", event.SyncUpdated).
			Int("sync_errors", event.SyncErrors)
	}

	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	if event.ErrorStage != "" {
		e = e.Str("error_stage", event.ErrorStage)
	}
	if event.PanicRecovered {
		e = e.Bool("panic_recovered", true)
	}

	if len(event.Metadata) > 0 {
		e = e.Interface("metadata", event.Metadata)
	}

	e.Msg("wide_event")
}

// EmitStageEvent logs one persistence stage attempt as its own line,
// carrying the trace id of the surrounding request.
func EmitStageEvent(ctx context.Context, stage, email string, duration time.Duration, err error) {
	var e *zerolog.Event
	if err != nil {
		e = logger.Log.Warn().Err(err)
	} else {
		e = logger.Log.Info()
	}

	e.Str("trace_id", GetTraceID(ctx)).
		Str("persist_stage", stage).
		Str("user_email", email).
		Int64("stage_duration_ms", duration.Milliseconds()).
		Msg("stage_event")
}
