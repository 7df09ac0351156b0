package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/juan12312121/mercado-backend/pkg/config"
)

var (
	ErrMissingSecretKey     = errors.New("stripe secret key is required")
	ErrMissingWebhookSecret = errors.New("stripe webhook secret is required")
)

// Client wraps Stripe's API client plus the webhook signing secret.
type Client struct {
	api           *stripe.Client
	webhookSecret string

	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CheckoutSessionParams carries the inputs for a hosted checkout session.
type CheckoutSessionParams struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the subset of the session response we persist.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutSessionEvent is the session object carried inside webhook events.
type CheckoutSessionEvent struct {
	ID                string `json:"id"`
	PaymentStatus     string `json:"payment_status"`
	ClientReferenceID string `json:"client_reference_id"`
}

// NewClient initializes Stripe once with the configured secrets.
func NewClient(cfg config.StripeConfig) (*Client, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, ErrMissingSecretKey
	}
	api := stripe.NewClient(key)
	stripe.Key = key

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		createSession: session.New,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// WebhookSecret exposes the signing secret for webhook validation.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateCheckoutSession opens a hosted checkout session for the given order.
// The order id travels as client_reference_id so webhooks can correlate back.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if params.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive")
	}

	create := buildSessionParams(params)
	create.Context = ctx
	sess, err := c.createSession(create)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("stripe returned session without id")
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func buildSessionParams(params CheckoutSessionParams) *stripe.CheckoutSessionParams {
	return &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(params.OrderID),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(params.Currency)),
				UnitAmount: stripe.Int64(amountCents(params.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(params.Description),
				},
			},
		}},
	}
}

// amountCents converts a decimal amount to Stripe's integer minor units.
func amountCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
