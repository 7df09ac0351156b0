package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Seller is the storefront profile attached to a user with the SELLER role.
type Seller struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StoreName   string             `gorm:"column:store_name;not null;uniqueIndex"`
	Description *string            `gorm:"column:description"`
	Status      enums.SellerStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	ReviewedBy  *uuid.UUID         `gorm:"column:reviewed_by;type:uuid"`
	ReviewNote  *string            `gorm:"column:review_note"`
	SuspendedAt *time.Time         `gorm:"column:suspended_at"`
	Products    []Product          `gorm:"foreignKey:SellerID"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
