package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/blagoySimandov/proaccount/internal/billing"
	"github.com/blagoySimandov/proaccount/internal/logging"
	"github.com/blagoySimandov/proaccount/internal/provision"
	"github.com/stripe/stripe-go/v84"
)

const stripeSignatureHeader = "Stripe-Signature"

type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
}

type EventProcessor interface {
	Process(ctx context.Context, event *stripe.Event) provision.Outcome
}

type WebhookHandler struct {
	verifier  WebhookVerifier
	processor EventProcessor
}

func NewWebhookHandler(verifier WebhookVerifier, processor EventProcessor) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
	}
}

type WebhookResponse struct {
	Received       bool   `json:"received"`
	EventType      string `json:"event_type"`
	EmailExtracted bool   `json:"email_extracted"`
}

// Stripe acknowledges any verified event with 200. Persistence failures are
// logged and metered by the processor, never surfaced as retries.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
		return
	}

	signature := r.Header.Get(stripeSignatureHeader)
	if signature == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing signature"})
		return
	}

	event, err := h.verifier.VerifyWebhookSignature(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrWebhookSecretMissing) {
			logging.EnrichError(r.Context(), err, "webhook_verify")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook secret not configured"})
			return
		}
		logging.EnrichError(r.Context(), err, "webhook_verify")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid signature"})
		return
	}

	out := h.processor.Process(r.Context(), event)

	writeJSON(w, http.StatusOK, WebhookResponse{
		Received:       true,
		EventType:      out.EventType,
		EmailExtracted: out.EmailExtracted(),
	})
}
