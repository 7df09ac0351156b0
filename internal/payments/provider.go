package payments

import (
	"context"
	"strings"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/mercadopago"
	"github.com/juan12312121/mercado-backend/pkg/stripe"
)

// Checkout is the provider-side session a buyer is redirected to.
type Checkout struct {
	ExternalRef string
	URL         string
}

// CheckoutProvider opens a hosted checkout for an order. Implementations wrap
// one gateway client each so the orchestrator stays gateway-agnostic.
type CheckoutProvider interface {
	Name() enums.PaymentProvider
	CreateCheckout(ctx context.Context, order *models.Order) (*Checkout, error)
}

type stripeProvider struct {
	client  *stripe.Client
	baseURL string
}

// NewStripeProvider wraps the Stripe client as a checkout provider. Redirect
// URLs hang off the app base URL.
func NewStripeProvider(client *stripe.Client, baseURL string) (CheckoutProvider, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	return &stripeProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (p *stripeProvider) Name() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (p *stripeProvider) CreateCheckout(ctx context.Context, order *models.Order) (*Checkout, error) {
	session, err := p.client.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		OrderID:     order.ID.String(),
		Amount:      order.Total,
		Currency:    strings.ToLower(order.Currency.String()),
		Description: "Order " + order.ID.String(),
		SuccessURL:  p.baseURL + "/orders/" + order.ID.String() + "/payment/success",
		CancelURL:   p.baseURL + "/orders/" + order.ID.String() + "/payment/cancel",
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{ExternalRef: session.ID, URL: session.URL}, nil
}

type mercadoPagoProvider struct {
	client  *mercadopago.Client
	baseURL string
}

// NewMercadoPagoProvider wraps the MercadoPago client as a checkout provider.
func NewMercadoPagoProvider(client *mercadopago.Client, baseURL string) (CheckoutProvider, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client required")
	}
	return &mercadoPagoProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (p *mercadoPagoProvider) Name() enums.PaymentProvider {
	return enums.PaymentProviderMercadoPago
}

func (p *mercadoPagoProvider) CreateCheckout(ctx context.Context, order *models.Order) (*Checkout, error) {
	preference, err := p.client.CreatePreference(ctx, mercadopago.PreferenceParams{
		ExternalReference: order.ID.String(),
		Title:             "Order " + order.ID.String(),
		Amount:            order.Total,
		Currency:          order.Currency.String(),
		SuccessURL:        p.baseURL + "/orders/" + order.ID.String() + "/payment/success",
		FailureURL:        p.baseURL + "/orders/" + order.ID.String() + "/payment/cancel",
		PendingURL:        p.baseURL + "/orders/" + order.ID.String() + "/payment/pending",
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{ExternalRef: preference.ID, URL: preference.InitPoint}, nil
}
