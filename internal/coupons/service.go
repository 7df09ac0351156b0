package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

// Service defines coupon management and discount evaluation.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Coupon, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Deactivate(ctx context.Context, params DeactivateParams) error
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*Evaluation, error)
	RecordUse(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// CreateParams carries the fields supplied for a new coupon. SellerID nil
// creates a platform-global coupon; set, it scopes the coupon to that
// seller. Nil validity bounds leave the window open on that side.
type CreateParams struct {
	Code           string
	Kind           enums.CouponKind
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxUses        *int
	SellerID       *uuid.UUID
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	CreatedBy      uuid.UUID
}

// ListParams configures pagination for coupon listings. SellerID, when set,
// restricts the listing to that seller's coupons.
type ListParams struct {
	Limit      int
	Cursor     string
	ActiveOnly bool
	SellerID   *uuid.UUID
}

// DeactivateParams identifies the coupon and the actor asking to retire it.
// Platform coupons are admin only; seller coupons take the owner or an admin.
type DeactivateParams struct {
	ID            uuid.UUID
	ActorSellerID *uuid.UUID
	IsAdmin       bool
}

// ListResult wraps returned coupons and the cursor for the next page.
type ListResult struct {
	Items  []models.Coupon `json:"items"`
	Cursor string          `json:"cursor"`
}

// Evaluation is the outcome of applying a coupon code to an order subtotal.
type Evaluation struct {
	Coupon   *models.Coupon  `json:"coupon"`
	Discount decimal.Decimal `json:"discount"`
}

// NewService wires coupon dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupons repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if !params.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon kind")
	}
	if !params.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon value must be positive")
	}
	if params.Kind == enums.CouponKindPercentage && params.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage value cannot exceed 100")
	}
	if params.MinOrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount cannot be negative")
	}
	if params.MaxUses != nil && *params.MaxUses <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max uses must be positive when set")
	}
	if params.ValidFrom != nil && params.ValidUntil != nil && !params.ValidUntil.After(*params.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity window must end after it starts")
	}
	if params.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}

	coupon := &models.Coupon{
		Code:           code,
		Kind:           params.Kind,
		Value:          params.Value,
		MinOrderAmount: params.MinOrderAmount,
		MaxUses:        params.MaxUses,
		SellerID:       params.SellerID,
		ValidFrom:      utcOrNil(params.ValidFrom),
		ValidUntil:     utcOrNil(params.ValidUntil),
		IsActive:       true,
		CreatedBy:      params.CreatedBy,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon id required")
	}
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon")
	}
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return coupon, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon by code")
	}
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listCouponsParams{
		Limit:      params.Limit,
		ActiveOnly: params.ActiveOnly,
		SellerID:   params.SellerID,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Deactivate(ctx context.Context, params DeactivateParams) error {
	coupon, err := s.Get(ctx, params.ID)
	if err != nil {
		return err
	}
	if !params.IsAdmin {
		if coupon.SellerID == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "platform coupons are managed by admins")
		}
		if params.ActorSellerID == nil || *params.ActorSellerID != *coupon.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "coupon belongs to another seller")
		}
	}
	if !coupon.IsActive {
		return nil
	}
	coupon.IsActive = false
	if err := s.repo.Update(ctx, coupon); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate coupon")
	}
	return nil
}

// Evaluate validates a code against its usage and date constraints and
// computes the discount for the given subtotal. Validation is read only;
// the usage counter moves in RecordUse once the order is paid.
func (s *service) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*Evaluation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon by code")
	}
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: unknown code")
	}
	if !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: not active")
	}
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: not yet valid")
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: expired")
	}
	if coupon.MaxUses != nil && coupon.UsesSoFar >= *coupon.MaxUses {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: usage limit reached")
	}
	if subtotal.LessThan(coupon.MinOrderAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: order below minimum amount")
	}

	return &Evaluation{
		Coupon:   coupon,
		Discount: computeDiscount(coupon, subtotal),
	}, nil
}

// RecordUse bumps the usage counter inside the caller's transaction. It is
// called exactly once per order, when the order reaches paid. A coupon that
// hit its cap between checkout and payment keeps its counter at the cap.
func (s *service) RecordUse(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id required")
	}
	repo := s.repo.WithTx(tx)
	coupon, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
	}
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if coupon.MaxUses != nil && coupon.UsesSoFar >= *coupon.MaxUses {
		return nil
	}
	if err := repo.IncrementUse(ctx, coupon.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon use")
	}
	return nil
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func computeDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.Kind {
	case enums.CouponKindPercentage:
		discount = subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
	case enums.CouponKindFixedAmount:
		discount = coupon.Value
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}
