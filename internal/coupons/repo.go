package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

// Repository exposes persistence helpers for coupons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context, params listCouponsParams) ([]models.Coupon, *pagination.Cursor, error)
	Update(ctx context.Context, coupon *models.Coupon) error
	IncrementUse(ctx context.Context, id uuid.UUID) error
	DeactivateLapsed(ctx context.Context, now time.Time) ([]models.Coupon, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a coupons repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listCouponsParams struct {
	Limit      int
	Cursor     *pagination.Cursor
	ActiveOnly bool
	SellerID   *uuid.UUID
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repositoryImpl) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listCouponsParams) ([]models.Coupon, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Coupon{})
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var coupons []models.Coupon
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&coupons).Error; err != nil {
		return nil, nil, err
	}

	if len(coupons) > normalized {
		next := coupons[normalized]
		coupons = coupons[:normalized]
		return coupons, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return coupons, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Save(coupon).Error
}

// IncrementUse bumps uses_so_far atomically; callers hold a row lock when the
// increment must be paired with a max-uses check.
func (r *repositoryImpl) IncrementUse(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", id).
		UpdateColumn("uses_so_far", gorm.Expr("uses_so_far + 1")).Error
}

func (r *repositoryImpl) DeactivateLapsed(ctx context.Context, now time.Time) ([]models.Coupon, error) {
	var lapsed []models.Coupon
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND valid_until IS NOT NULL AND valid_until < ?", true, now).
		Find(&lapsed).Error
	if err != nil {
		return nil, err
	}
	if len(lapsed) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(lapsed))
	for _, coupon := range lapsed {
		ids = append(ids, coupon.ID)
	}
	err = r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id IN ?", ids).
		UpdateColumn("is_active", false).Error
	if err != nil {
		return nil, err
	}
	return lapsed, nil
}
