package moderation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

// Repository exposes persistence helpers for reports and appeals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateReport(ctx context.Context, report *models.Report) error
	FindReportByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, params listReportsParams) ([]models.Report, *pagination.Cursor, error)
	UpdateReport(ctx context.Context, report *models.Report) error

	CreateAppeal(ctx context.Context, appeal *models.Appeal) error
	FindAppealByID(ctx context.Context, id uuid.UUID) (*models.Appeal, error)
	ListAppeals(ctx context.Context, params listAppealsParams) ([]models.Appeal, *pagination.Cursor, error)
	UpdateAppeal(ctx context.Context, appeal *models.Appeal) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a moderation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listReportsParams struct {
	Limit    int
	Cursor   *pagination.Cursor
	Status   *enums.ReportStatus
	SellerID *uuid.UUID
}

type listAppealsParams struct {
	Limit    int
	Cursor   *pagination.Cursor
	Status   *enums.AppealStatus
	SellerID *uuid.UUID
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateReport(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repositoryImpl) FindReportByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repositoryImpl) ListReports(ctx context.Context, params listReportsParams) ([]models.Report, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Report{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var reports []models.Report
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, nil, err
	}

	if len(reports) > normalized {
		next := reports[normalized]
		reports = reports[:normalized]
		return reports, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return reports, nil, nil
}

func (r *repositoryImpl) UpdateReport(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Save(report).Error
}

func (r *repositoryImpl) CreateAppeal(ctx context.Context, appeal *models.Appeal) error {
	return r.db.WithContext(ctx).Create(appeal).Error
}

func (r *repositoryImpl) FindAppealByID(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	var appeal models.Appeal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&appeal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *repositoryImpl) ListAppeals(ctx context.Context, params listAppealsParams) ([]models.Appeal, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Appeal{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var appeals []models.Appeal
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&appeals).Error; err != nil {
		return nil, nil, err
	}

	if len(appeals) > normalized {
		next := appeals[normalized]
		appeals = appeals[:normalized]
		return appeals, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return appeals, nil, nil
}

func (r *repositoryImpl) UpdateAppeal(ctx context.Context, appeal *models.Appeal) error {
	return r.db.WithContext(ctx).Save(appeal).Error
}
