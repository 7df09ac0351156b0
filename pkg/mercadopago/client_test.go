package mercadopago

import (
	"context"
	"testing"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/config"
)

type fakePreferenceAPI struct {
	request  preference.Request
	response *preference.Response
	err      error
}

func (f *fakePreferenceAPI) Create(_ context.Context, request preference.Request) (*preference.Response, error) {
	f.request = request
	return f.response, f.err
}

type fakePaymentAPI struct {
	id       int
	response *payment.Response
	err      error
}

func (f *fakePaymentAPI) Get(_ context.Context, id int) (*payment.Response, error) {
	f.id = id
	return f.response, f.err
}

func TestCreatePreference(t *testing.T) {
	prefs := &fakePreferenceAPI{response: &preference.Response{
		ID:        "pref-123",
		InitPoint: "https://www.mercadopago.com.mx/checkout/v1/redirect?pref_id=pref-123",
	}}
	client := &Client{preferences: prefs}

	pref, err := client.CreatePreference(t.Context(), PreferenceParams{
		ExternalReference: "order-7",
		Title:             "Order order-7",
		Amount:            decimal.RequireFromString("349.50"),
		Currency:          "MXN",
		SuccessURL:        "https://example.com/ok",
	})
	if err != nil {
		t.Fatalf("create preference: %v", err)
	}

	if pref.ID != "pref-123" {
		t.Fatalf("preference id = %s", pref.ID)
	}
	if prefs.request.ExternalReference != "order-7" {
		t.Fatalf("external_reference = %s", prefs.request.ExternalReference)
	}
	if len(prefs.request.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(prefs.request.Items))
	}
	if prefs.request.Items[0].UnitPrice != 349.50 {
		t.Fatalf("unit_price = %v", prefs.request.Items[0].UnitPrice)
	}
	if prefs.request.AutoReturn != "approved" {
		t.Fatalf("auto_return = %s", prefs.request.AutoReturn)
	}
}

func TestCreatePreferenceRejectsBadAmount(t *testing.T) {
	client := &Client{preferences: &fakePreferenceAPI{}}
	_, err := client.CreatePreference(t.Context(), PreferenceParams{
		ExternalReference: "order-7",
		Amount:            decimal.Zero,
	})
	if err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestGetPayment(t *testing.T) {
	pays := &fakePaymentAPI{response: &payment.Response{
		ID:                555,
		Status:            "approved",
		ExternalReference: "order-7",
		TransactionAmount: 349.5,
	}}
	client := &Client{payments: pays}

	info, err := client.GetPayment(t.Context(), "555")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if pays.id != 555 {
		t.Fatalf("looked up id = %d", pays.id)
	}
	if info.Status != PaymentStatusApproved {
		t.Fatalf("status = %s", info.Status)
	}
	if info.ExternalReference != "order-7" {
		t.Fatalf("external_reference = %s", info.ExternalReference)
	}
	if !info.TransactionAmount.Equal(decimal.RequireFromString("349.5")) {
		t.Fatalf("amount = %s", info.TransactionAmount)
	}
}

func TestGetPaymentRejectsNonNumericID(t *testing.T) {
	client := &Client{payments: &fakePaymentAPI{}}
	if _, err := client.GetPayment(t.Context(), "not-a-number"); err == nil {
		t.Fatal("expected error for non numeric id")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(config.MercadoPagoConfig{}); err == nil {
		t.Fatal("expected error for missing access token")
	}
}
