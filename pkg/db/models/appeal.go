package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Appeal is a seller's challenge to a suspension or report resolution.
type Appeal struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID     uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	ReportID     *uuid.UUID         `gorm:"column:report_id;type:uuid"`
	Message      string             `gorm:"column:message;not null"`
	Status       enums.AppealStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	DecidedBy    *uuid.UUID         `gorm:"column:decided_by;type:uuid"`
	DecisionNote *string            `gorm:"column:decision_note"`
	DecidedAt    *time.Time         `gorm:"column:decided_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
