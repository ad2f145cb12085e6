package provision

import (
	"context"
	"time"

	"github.com/blagoySimandov/proaccount/internal/billing"
	"github.com/blagoySimandov/proaccount/internal/cache"
	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/internal/logging"
	"github.com/blagoySimandov/proaccount/internal/metrics"
	"github.com/blagoySimandov/proaccount/internal/user"
	"github.com/blagoySimandov/proaccount/internal/validation"
	"github.com/stripe/stripe-go/v84"
)

const DefaultDedupeTTL = 24 * time.Hour

// Outcome describes what the processor did with one verified event.
type Outcome struct {
	EventType string
	Email     string
	Action    billing.Action
	Duplicate bool
	Skipped   string
	Result    *Result
}

func (o Outcome) EmailExtracted() bool {
	return o.Email != ""
}

type Processor struct {
	lookup    billing.CustomerLookup
	upgrade   *Chain
	downgrade *Chain
	events    cache.EventStore
	dedupeTTL time.Duration
}

type ProcessorConfig struct {
	Lookup    billing.CustomerLookup
	Repo      user.Repository
	Direct    DirectInserter
	Backup    *BackupLog
	Events    cache.EventStore
	DedupeTTL time.Duration
}

// NewProcessor assembles the upgrade chain (insert, update on conflict,
// direct insert, backup log) and the downgrade chain (clear flag, backup
// log). Direct may be nil, which drops that stage.
func NewProcessor(cfg ProcessorConfig) *Processor {
	upgrade := []Stage{
		NewInsertStage(cfg.Repo),
		NewUpdateStage(cfg.Repo),
	}
	if cfg.Direct != nil {
		upgrade = append(upgrade, NewDirectInsertStage(cfg.Direct))
	}
	upgrade = append(upgrade, NewBackupStage(cfg.Backup, ""))

	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	return &Processor{
		lookup:    cfg.Lookup,
		upgrade:   NewChain(upgrade...),
		downgrade: NewChain(NewDowngradeStage(cfg.Repo), NewBackupStage(cfg.Backup, "_cancellation")),
		events:    cfg.Events,
		dedupeTTL: ttl,
	}
}

// Process never fails: every problem is logged, metered and folded into the
// outcome so the webhook can always be acknowledged.
func (p *Processor) Process(ctx context.Context, event *stripe.Event) Outcome {
	eventType := string(event.Type)
	out := Outcome{EventType: eventType}
	logging.EnrichWebhook(ctx, event.ID, eventType)

	if p.events != nil && event.ID != "" {
		first, err := p.events.MarkSeen(ctx, event.ID, p.dedupeTTL)
		if err != nil {
			logger.Log.Warn().Err(err).Str("event_id", event.ID).Msg("Event dedupe check failed, processing anyway")
		} else if !first {
			out.Duplicate = true
			logging.EnrichDuplicate(ctx)
			metrics.RecordWebhookDuplicate()
			return out
		} else {
			defer p.releaseOnPanic(ctx, event.ID)
		}
	}

	payload, err := billing.DecodePayload(event)
	if err != nil {
		logging.EnrichError(ctx, err, "decode_payload")
		metrics.RecordWebhookEvent(eventType, "decode_error")
		out.Skipped = "undecodable payload"
		return out
	}

	contact := billing.ExtractContact(ctx, p.lookup, payload)
	out.Email = contact.Email
	out.Action = billing.ActionFor(eventType, payload, contact.Email != "")

	logging.EnrichUser(ctx, contact.Email)
	logging.EnrichWebhookAction(ctx, out.Action.String())
	metrics.RecordWebhookEvent(eventType, out.Action.String())

	if out.Action == billing.ActionNone {
		return out
	}
	if contact.Email == "" {
		logger.Log.Warn().Str("event_type", eventType).Msg("No email found in webhook event")
		out.Skipped = "no email"
		return out
	}
	if !validation.IsEmail(contact.Email) {
		logger.Log.Warn().Str("event_type", eventType).Str("email", contact.Email).Msg("Invalid email format in webhook event")
		out.Skipped = "invalid email"
		return out
	}

	req := Request{
		Email:     contact.Email,
		FirstName: contact.FirstName,
		EventType: eventType,
	}

	var res Result
	switch out.Action {
	case billing.ActionUpgrade:
		req.IsPro = true
		res = p.upgrade.Run(ctx, req)
	case billing.ActionDowngrade:
		req.IsPro = false
		res = p.downgrade.Run(ctx, req)
	}
	out.Result = &res

	if !res.OK() {
		logging.EnrichError(ctx, res.Err, "persist")
		logger.Log.Error().Err(res.Err).Str("email", contact.Email).Str("event_type", eventType).Msg("All persistence stages failed")
	}
	return out
}

// releaseOnPanic drops the dedupe mark when processing did not finish, so the
// provider's retry of the same event is processed instead of skipped.
func (p *Processor) releaseOnPanic(ctx context.Context, eventID string) {
	r := recover()
	if r == nil {
		return
	}
	if err := p.events.Forget(context.WithoutCancel(ctx), eventID); err != nil {
		logger.Log.Error().Err(err).Str("event_id", eventID).Msg("Failed to release event after panic")
	}
	panic(r)
}
