package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order assembled from a cart checkout.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	SubOrderIDs []uuid.UUID     `json:"sub_order_ids"`
	Total       decimal.Decimal `json:"total"`
	CouponCode  *string         `json:"coupon_code,omitempty"`
}

// OrderPaidEvent is emitted when a payment settles and the order flips to PAID.
type OrderPaidEvent struct {
	OrderID   uuid.UUID             `json:"order_id"`
	UserID    uuid.UUID             `json:"user_id"`
	PaymentID uuid.UUID             `json:"payment_id"`
	Provider  enums.PaymentProvider `json:"provider"`
	Amount    decimal.Decimal       `json:"amount"`
	PaidAt    time.Time             `json:"paid_at"`
}

// OrderStateChangedEvent reports any buyer order lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}

// OrderExpiredEvent describes a pending order cancelled by the TTL sweep.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// SubOrderStateChangedEvent reports a seller advancing their slice of an order.
type SubOrderStateChangedEvent struct {
	SubOrderID uuid.UUID            `json:"sub_order_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	SellerID   uuid.UUID            `json:"seller_id"`
	FromStatus enums.SubOrderStatus `json:"from_status"`
	ToStatus   enums.SubOrderStatus `json:"to_status"`
}

// PaymentCompletedEvent is emitted when a webhook settles a payment.
type PaymentCompletedEvent struct {
	PaymentID   uuid.UUID             `json:"payment_id"`
	OrderID     uuid.UUID             `json:"order_id"`
	Provider    enums.PaymentProvider `json:"provider"`
	Amount      decimal.Decimal       `json:"amount"`
	ExternalRef string                `json:"external_ref"`
}

// PaymentFailedEvent is emitted when a provider rejects a payment.
type PaymentFailedEvent struct {
	PaymentID   uuid.UUID             `json:"payment_id"`
	OrderID     uuid.UUID             `json:"order_id"`
	Provider    enums.PaymentProvider `json:"provider"`
	FailureCode string                `json:"failure_code,omitempty"`
}

// SellerStatusChangedEvent reports onboarding and moderation decisions.
type SellerStatusChangedEvent struct {
	SellerID   uuid.UUID          `json:"seller_id"`
	UserID     uuid.UUID          `json:"user_id"`
	FromStatus enums.SellerStatus `json:"from_status"`
	ToStatus   enums.SellerStatus `json:"to_status"`
	Reason     string             `json:"reason,omitempty"`
}

// CouponExpiredEvent is emitted by the expiry sweep when a coupon lapses.
type CouponExpiredEvent struct {
	CouponID  uuid.UUID `json:"coupon_id"`
	Code      string    `json:"code"`
	ExpiredAt time.Time `json:"expired_at"`
}

// NotificationRequestedEvent tells downstream systems to alert a user.
type NotificationRequestedEvent struct {
	UserID uuid.UUID              `json:"user_id"`
	Type   enums.NotificationType `json:"type"`
	Title  string                 `json:"title"`
}
