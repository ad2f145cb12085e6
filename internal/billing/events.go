package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

type Action int

const (
	ActionNone Action = iota
	ActionUpgrade
	ActionDowngrade
)

func (a Action) String() string {
	switch a {
	case ActionUpgrade:
		return "upgrade"
	case ActionDowngrade:
		return "downgrade"
	default:
		return "none"
	}
}

// CustomerLookup resolves a customer id to its contact details.
type CustomerLookup interface {
	CustomerContact(ctx context.Context, customerID string) (email, name string, err error)
}

type Contact struct {
	Email     string
	FirstName *string
}

// Payload is the decoded data.object of a webhook event. Each event family
// has its own variant.
type Payload interface {
	contact(ctx context.Context, lookup CustomerLookup) Contact
}

type billingDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type PaymentIntentPayload struct {
	ID             string         `json:"id"`
	Customer       string         `json:"customer"`
	ReceiptEmail   string         `json:"receipt_email"`
	BillingDetails billingDetails `json:"billing_details"`
}

func (p *PaymentIntentPayload) contact(context.Context, CustomerLookup) Contact {
	return Contact{Email: p.ReceiptEmail, FirstName: firstToken(p.BillingDetails.Name)}
}

type ChargePayload struct {
	ID             string         `json:"id"`
	ReceiptEmail   string         `json:"receipt_email"`
	BillingDetails billingDetails `json:"billing_details"`
}

func (p *ChargePayload) contact(context.Context, CustomerLookup) Contact {
	return Contact{
		Email:     firstNonEmpty(p.BillingDetails.Email, p.ReceiptEmail),
		FirstName: firstToken(p.BillingDetails.Name),
	}
}

type CheckoutSessionPayload struct {
	ID              string         `json:"id"`
	CustomerDetails billingDetails `json:"customer_details"`
}

func (p *CheckoutSessionPayload) contact(context.Context, CustomerLookup) Contact {
	return Contact{Email: p.CustomerDetails.Email, FirstName: firstToken(p.CustomerDetails.Name)}
}

type InvoicePayload struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customer_email"`
}

func (p *InvoicePayload) contact(context.Context, CustomerLookup) Contact {
	return Contact{Email: p.CustomerEmail}
}

type SubscriptionPayload struct {
	ID            string            `json:"id"`
	Customer      string            `json:"customer"`
	Status        string            `json:"status"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

// contact asks the payment provider for the customer. Metadata is used only
// when that lookup fails; a deleted or email-less customer yields nothing.
func (p *SubscriptionPayload) contact(ctx context.Context, lookup CustomerLookup) Contact {
	if p.Customer == "" {
		return Contact{
			Email:     firstNonEmpty(p.CustomerEmail, p.Metadata["email"]),
			FirstName: nonEmpty(p.Metadata["firstName"]),
		}
	}

	var (
		email, name string
		err         error
	)
	if lookup == nil {
		err = ErrSecretKeyMissing
	} else {
		email, name, err = lookup.CustomerContact(ctx, p.Customer)
	}
	if err != nil {
		return Contact{
			Email:     p.Metadata["email"],
			FirstName: nonEmpty(p.Metadata["firstName"]),
		}
	}
	if email == "" {
		return Contact{}
	}
	return Contact{Email: email, FirstName: firstToken(name)}
}

type UnknownPayload struct {
	ReceiptEmail    string            `json:"receipt_email"`
	CustomerEmail   string            `json:"customer_email"`
	BillingDetails  billingDetails    `json:"billing_details"`
	CustomerDetails billingDetails    `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

func (p *UnknownPayload) contact(context.Context, CustomerLookup) Contact {
	first := firstToken(p.BillingDetails.Name)
	if first == nil {
		first = firstToken(p.CustomerDetails.Name)
	}
	if first == nil {
		first = nonEmpty(p.Metadata["firstName"])
	}
	return Contact{
		Email: firstNonEmpty(
			p.ReceiptEmail,
			p.CustomerEmail,
			p.BillingDetails.Email,
			p.CustomerDetails.Email,
			p.Metadata["email"],
		),
		FirstName: first,
	}
}

// DecodePayload picks the payload variant from the event type prefix.
func DecodePayload(event *stripe.Event) (Payload, error) {
	var p Payload
	t := string(event.Type)
	switch {
	case strings.HasPrefix(t, "payment_intent."):
		p = &PaymentIntentPayload{}
	case strings.HasPrefix(t, "charge."):
		p = &ChargePayload{}
	case strings.HasPrefix(t, "checkout.session."):
		p = &CheckoutSessionPayload{}
	case strings.HasPrefix(t, "invoice."):
		p = &InvoicePayload{}
	case strings.HasPrefix(t, "customer.subscription."):
		p = &SubscriptionPayload{}
	default:
		p = &UnknownPayload{}
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(event.Data.Raw, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return p, nil
}

func ExtractContact(ctx context.Context, lookup CustomerLookup, p Payload) Contact {
	if p == nil {
		return Contact{}
	}
	c := p.contact(ctx, lookup)
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// ActionFor maps an event to what it means for the account's pro flag.
// Unrecognised types upgrade when an email was found.
func ActionFor(eventType string, p Payload, hasEmail bool) Action {
	switch eventType {
	case "payment_intent.succeeded",
		"charge.succeeded",
		"checkout.session.completed",
		"invoice.payment_succeeded",
		"invoice.paid":
		return ActionUpgrade
	case "customer.subscription.deleted":
		return ActionDowngrade
	case "payment_intent.created", "charge.updated":
		return ActionNone
	case "customer.subscription.updated":
		sub, ok := p.(*SubscriptionPayload)
		if !ok {
			return ActionNone
		}
		switch stripe.SubscriptionStatus(sub.Status) {
		case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
			return ActionUpgrade
		case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
			return ActionDowngrade
		default:
			return ActionNone
		}
	}
	if hasEmail {
		return ActionUpgrade
	}
	return ActionNone
}

func firstToken(name string) *string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil
	}
	return &fields[0]
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
