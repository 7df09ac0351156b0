package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Report is a buyer complaint against a seller or one of their listings.
type Report struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReporterID uuid.UUID          `gorm:"column:reporter_id;type:uuid;not null;index"`
	SellerID   uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductID  *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	Reason     string             `gorm:"column:reason;not null"`
	Detail     *string            `gorm:"column:detail"`
	Status     enums.ReportStatus `gorm:"column:status;type:text;not null;default:'OPEN'"`
	ResolvedBy *uuid.UUID         `gorm:"column:resolved_by;type:uuid"`
	Resolution *string            `gorm:"column:resolution"`
	ResolvedAt *time.Time         `gorm:"column:resolved_at"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
