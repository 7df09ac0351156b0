package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/enums"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
)

func newTestConsumer(repo repository) *Consumer {
	return &Consumer{
		repo: repo,
		logg: logger.New(logger.Options{Level: zerolog.ErrorLevel}),
	}
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestConsumerOrderPaidNotifiesBuyer(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)
	userID := uuid.New()

	payload := payloads.OrderPaidEvent{
		OrderID:   uuid.New(),
		UserID:    userID,
		PaymentID: uuid.New(),
		Provider:  enums.PaymentProviderStripe,
		Amount:    decimal.RequireFromString("180.00"),
	}
	err := consumer.handleEvent(context.Background(), enums.EventOrderPaid, mustMarshal(t, payload), context.Background())
	if err != nil {
		t.Fatalf("handleEvent: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != userID {
		t.Fatalf("notification targeted %s, want %s", created.UserID, userID)
	}
	if created.Type != enums.NotificationTypePaymentResult {
		t.Fatalf("type = %s, want payment_result", created.Type)
	}
	if created.Data["payment_id"] != payload.PaymentID.String() {
		t.Fatalf("payment id missing from data: %v", created.Data)
	}
}

func TestConsumerOrderShippedUsesFriendlyTitle(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)

	payload := payloads.OrderStateChangedEvent{
		OrderID:    uuid.New(),
		UserID:     uuid.New(),
		FromStatus: enums.OrderStatusProcessing,
		ToStatus:   enums.OrderStatusShipped,
	}
	err := consumer.handleEvent(context.Background(), enums.EventOrderStateChanged, mustMarshal(t, payload), context.Background())
	if err != nil {
		t.Fatalf("handleEvent: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	if repo.created[0].Title != "Order shipped" {
		t.Fatalf("title = %q", repo.created[0].Title)
	}
	if repo.created[0].Type != enums.NotificationTypeOrderStatus {
		t.Fatalf("type = %s, want order_status", repo.created[0].Type)
	}
}

func TestConsumerSellerRejectionIncludesReason(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)

	payload := payloads.SellerStatusChangedEvent{
		SellerID:   uuid.New(),
		UserID:     uuid.New(),
		FromStatus: enums.SellerStatusPending,
		ToStatus:   enums.SellerStatusRejected,
		Reason:     "incomplete tax information",
	}
	err := consumer.handleEvent(context.Background(), enums.EventSellerStatusChanged, mustMarshal(t, payload), context.Background())
	if err != nil {
		t.Fatalf("handleEvent: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.Type != enums.NotificationTypeSellerOnboarding {
		t.Fatalf("type = %s, want seller_onboarding", created.Type)
	}
	if created.Message != "Your seller application was rejected. Reason: incomplete tax information" {
		t.Fatalf("message = %q", created.Message)
	}
}

func TestConsumerRejectsPayloadWithoutUser(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)

	payload := payloads.OrderExpiredEvent{OrderID: uuid.New()}
	err := consumer.handleEvent(context.Background(), enums.EventOrderExpired, mustMarshal(t, payload), context.Background())
	if err == nil {
		t.Fatal("expected error for missing user id")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestConsumerSkipsUnmappedEvents(t *testing.T) {
	consumer := newTestConsumer(&fakeRepository{})

	if consumer.handles(enums.EventCouponExpired) {
		t.Fatal("coupon expiry should not reach the inbox")
	}
	if !consumer.handles(enums.EventOrderPaid) {
		t.Fatal("order paid must be handled")
	}
}
