package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/config"
)

// Payment statuses MercadoPago reports on /v1/payments.
const (
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
	PaymentStatusPending  = "pending"
)

var ErrMissingAccessToken = errors.New("mercadopago access token is required")

// preferenceAPI narrows the SDK's preference client to what checkout needs.
type preferenceAPI interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

// paymentAPI narrows the SDK's payment client to the webhook lookup.
type paymentAPI interface {
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// Client wraps the MercadoPago SDK for the Checkout Pro surface we use.
type Client struct {
	preferences preferenceAPI
	payments    paymentAPI
}

// PreferenceParams carries the inputs for a checkout preference.
type PreferenceParams struct {
	ExternalReference string
	Title             string
	Amount            decimal.Decimal
	Currency          string
	SuccessURL        string
	FailureURL        string
	PendingURL        string
}

// Preference is the subset of the preference response we persist.
type Preference struct {
	ID        string
	InitPoint string
}

// PaymentInfo is the payment lookup used while reconciling webhooks.
type PaymentInfo struct {
	ID                int64
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount decimal.Decimal
}

// WebhookNotification is the envelope MercadoPago posts to webhook endpoints.
type WebhookNotification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewClient(cfg config.MercadoPagoConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	sdkCfg, err := mpconfig.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("init mercadopago sdk: %w", err)
	}
	return &Client{
		preferences: preference.NewClient(sdkCfg),
		payments:    payment.NewClient(sdkCfg),
	}, nil
}

// CreatePreference opens a Checkout Pro preference. The order id travels as
// external_reference so payment lookups can correlate back.
func (c *Client) CreatePreference(ctx context.Context, params PreferenceParams) (*Preference, error) {
	if params.ExternalReference == "" {
		return nil, fmt.Errorf("external reference is required")
	}
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive")
	}

	resp, err := c.preferences.Create(ctx, buildPreferenceRequest(params))
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("mercadopago returned preference without id")
	}
	return &Preference{ID: resp.ID, InitPoint: resp.InitPoint}, nil
}

// GetPayment fetches the payment referenced by a webhook notification.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	id, err := strconv.Atoi(strings.TrimSpace(paymentID))
	if err != nil {
		return nil, fmt.Errorf("payment id must be numeric: %w", err)
	}

	resp, err := c.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return paymentInfoFromResponse(resp), nil
}

func buildPreferenceRequest(params PreferenceParams) preference.Request {
	amount, _ := params.Amount.Round(2).Float64()
	return preference.Request{
		ExternalReference: params.ExternalReference,
		Items: []preference.ItemRequest{{
			Title:      params.Title,
			Quantity:   1,
			CurrencyID: params.Currency,
			UnitPrice:  amount,
		}},
		BackURLs: &preference.BackURLsRequest{
			Success: params.SuccessURL,
			Failure: params.FailureURL,
			Pending: params.PendingURL,
		},
		AutoReturn: "approved",
	}
}

func paymentInfoFromResponse(resp *payment.Response) *PaymentInfo {
	return &PaymentInfo{
		ID:                int64(resp.ID),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		TransactionAmount: decimal.NewFromFloat(resp.TransactionAmount),
	}
}
