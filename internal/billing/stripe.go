package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")
	ErrSecretKeyMissing     = errors.New("stripe secret key is not configured")
)

type Billing struct {
	sc            *stripe.Client
	webhookSecret string
}

func NewBilling(secretKey, webhookSecret string, opts ...stripe.ClientOption) *Billing {
	b := &Billing{webhookSecret: webhookSecret}
	if secretKey != "" {
		b.sc = stripe.NewClient(secretKey, opts...)
	}
	return b
}

// VerifyWebhookSignature checks the Stripe-Signature header and decodes the
// event. Events pinned to other API versions are accepted; only the object
// fields this service reads are decoded.
func (b *Billing) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	if b.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, b.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// CustomerContact retrieves the email and display name on a customer. A
// deleted customer yields empty values and no error.
func (b *Billing) CustomerContact(ctx context.Context, customerID string) (string, string, error) {
	if b.sc == nil {
		return "", "", ErrSecretKeyMissing
	}
	c, err := b.sc.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
	}
	if c.Deleted {
		return "", "", nil
	}
	return c.Email, c.Name, nil
}

// FindCustomerByEmail returns the first customer with this email, or nil.
func (b *Billing) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	if b.sc == nil {
		return nil, ErrSecretKeyMissing
	}
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)

	for c, err := range b.sc.V1Customers.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("failed to list customers: %w", err)
		}
		return c, nil
	}
	return nil, nil
}

// HasActiveSubscription reports whether the customer registered under email
// has at least one active subscription. No customer means false.
func (b *Billing) HasActiveSubscription(ctx context.Context, email string) (bool, error) {
	customer, err := b.FindCustomerByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if customer == nil {
		return false, nil
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customer.ID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)

	for _, err := range b.sc.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return false, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		return true, nil
	}
	return false, nil
}
