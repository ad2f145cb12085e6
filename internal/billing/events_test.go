package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

type fakeLookup struct {
	email, name string
	err         error
	calls       int
}

func (f *fakeLookup) CustomerContact(ctx context.Context, customerID string) (string, string, error) {
	f.calls++
	return f.email, f.name, f.err
}

func newEvent(t *testing.T, eventType string, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestExtractContact(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		object    map[string]any
		lookup    *fakeLookup
		wantEmail string
		wantFirst string
	}{
		{
			name:      "payment intent receipt email",
			eventType: "payment_intent.succeeded",
			object:    map[string]any{"receipt_email": "ada@example.com"},
			wantEmail: "ada@example.com",
		},
		{
			name:      "charge prefers billing details",
			eventType: "charge.succeeded",
			object: map[string]any{
				"receipt_email":   "receipt@example.com",
				"billing_details": map[string]any{"email": "bill@example.com", "name": "Grace Brewster Hopper"},
			},
			wantEmail: "bill@example.com",
			wantFirst: "Grace",
		},
		{
			name:      "charge falls back to receipt email",
			eventType: "charge.succeeded",
			object:    map[string]any{"receipt_email": "receipt@example.com"},
			wantEmail: "receipt@example.com",
		},
		{
			name:      "checkout session customer details",
			eventType: "checkout.session.completed",
			object:    map[string]any{"customer_details": map[string]any{"email": "ada@example.com", "name": "Ada Lovelace"}},
			wantEmail: "ada@example.com",
			wantFirst: "Ada",
		},
		{
			name:      "invoice customer email",
			eventType: "invoice.payment_succeeded",
			object:    map[string]any{"customer_email": "inv@example.com"},
			wantEmail: "inv@example.com",
		},
		{
			name:      "subscription looks up customer",
			eventType: "customer.subscription.deleted",
			object:    map[string]any{"customer": "cus_1", "metadata": map[string]any{"email": "meta@example.com"}},
			lookup:    &fakeLookup{email: "sub@example.com", name: "Linus Torvalds"},
			wantEmail: "sub@example.com",
			wantFirst: "Linus",
		},
		{
			name:      "subscription lookup failure uses metadata",
			eventType: "customer.subscription.deleted",
			object:    map[string]any{"customer": "cus_1", "metadata": map[string]any{"email": "meta@example.com", "firstName": "Meta"}},
			lookup:    &fakeLookup{err: errors.New("stripe down")},
			wantEmail: "meta@example.com",
			wantFirst: "Meta",
		},
		{
			name:      "subscription deleted customer yields nothing",
			eventType: "customer.subscription.deleted",
			object:    map[string]any{"customer": "cus_1", "metadata": map[string]any{"email": "meta@example.com"}},
			lookup:    &fakeLookup{},
		},
		{
			name:      "subscription without customer id",
			eventType: "customer.subscription.updated",
			object:    map[string]any{"customer_email": "direct@example.com"},
			wantEmail: "direct@example.com",
		},
		{
			name:      "unknown probes common fields",
			eventType: "customer.created",
			object:    map[string]any{"customer_details": map[string]any{"email": "probe@example.com", "name": "Probe Person"}},
			wantEmail: "probe@example.com",
			wantFirst: "Probe",
		},
		{
			name:      "unknown with nothing",
			eventType: "product.created",
			object:    map[string]any{"id": "prod_1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload(newEvent(t, tt.eventType, tt.object))
			require.NoError(t, err)

			var lookup CustomerLookup
			if tt.lookup != nil {
				lookup = tt.lookup
			}
			c := ExtractContact(context.Background(), lookup, p)

			assert.Equal(t, tt.wantEmail, c.Email)
			assert.Equal(t, tt.wantFirst, strVal(c.FirstName))
		})
	}
}

func TestDecodePayload_Variants(t *testing.T) {
	tests := []struct {
		eventType string
		want      Payload
	}{
		{"payment_intent.succeeded", &PaymentIntentPayload{}},
		{"charge.updated", &ChargePayload{}},
		{"checkout.session.completed", &CheckoutSessionPayload{}},
		{"invoice.paid", &InvoicePayload{}},
		{"customer.subscription.deleted", &SubscriptionPayload{}},
		{"customer.updated", &UnknownPayload{}},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			p, err := DecodePayload(newEvent(t, tt.eventType, map[string]any{}))
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	event := &stripe.Event{Type: "charge.succeeded", Data: &stripe.EventData{Raw: json.RawMessage(`{"receipt_email":42}`)}}
	_, err := DecodePayload(event)
	assert.Error(t, err)
}

func TestActionFor(t *testing.T) {
	sub := func(status string) Payload { return &SubscriptionPayload{Status: status} }

	tests := []struct {
		eventType string
		payload   Payload
		hasEmail  bool
		want      Action
	}{
		{"payment_intent.succeeded", &PaymentIntentPayload{}, true, ActionUpgrade},
		{"charge.succeeded", &ChargePayload{}, true, ActionUpgrade},
		{"checkout.session.completed", &CheckoutSessionPayload{}, true, ActionUpgrade},
		{"invoice.payment_succeeded", &InvoicePayload{}, true, ActionUpgrade},
		{"invoice.paid", &InvoicePayload{}, true, ActionUpgrade},
		{"customer.subscription.deleted", sub("canceled"), true, ActionDowngrade},
		{"payment_intent.created", &PaymentIntentPayload{}, true, ActionNone},
		{"charge.updated", &ChargePayload{}, true, ActionNone},
		{"customer.subscription.updated", sub("active"), true, ActionUpgrade},
		{"customer.subscription.updated", sub("trialing"), true, ActionUpgrade},
		{"customer.subscription.updated", sub("unpaid"), true, ActionDowngrade},
		{"customer.subscription.updated", sub("incomplete_expired"), true, ActionDowngrade},
		{"customer.subscription.updated", sub("past_due"), true, ActionNone},
		{"customer.created", &UnknownPayload{}, true, ActionUpgrade},
		{"customer.created", &UnknownPayload{}, false, ActionNone},
	}
	for _, tt := range tests {
		name := tt.eventType
		if s, ok := tt.payload.(*SubscriptionPayload); ok {
			name += "/" + s.Status
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActionFor(tt.eventType, tt.payload, tt.hasEmail))
		})
	}
}

func TestFirstToken(t *testing.T) {
	assert.Nil(t, firstToken(""))
	assert.Nil(t, firstToken("   "))
	assert.Equal(t, "Ada", *firstToken("  Ada   Lovelace "))
}
