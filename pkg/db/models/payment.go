package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Payment is one attempt to collect an order's total through an external
// gateway. ExternalRef is the provider-side id used to correlate webhooks.
type Payment struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	Provider    enums.PaymentProvider `gorm:"column:provider;type:text;not null"`
	Status      enums.PaymentStatus   `gorm:"column:status;type:text;not null;default:'PENDING'"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency    enums.Currency        `gorm:"column:currency;type:text;not null;default:'MXN'"`
	ExternalRef *string               `gorm:"column:external_ref;index"`
	CheckoutURL *string               `gorm:"column:checkout_url"`
	FailureCode *string               `gorm:"column:failure_code"`
	CompletedAt *time.Time            `gorm:"column:completed_at"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
