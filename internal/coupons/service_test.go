package coupons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	paginationpkg "github.com/juan12312121/mercado-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn            func(ctx context.Context, coupon *models.Coupon) error
	findByIDFn          func(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	findByCodeFn        func(ctx context.Context, code string) (*models.Coupon, error)
	findByIDForUpdateFn func(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	listFn              func(ctx context.Context, params listCouponsParams) ([]models.Coupon, *paginationpkg.Cursor, error)
	updateFn            func(ctx context.Context, coupon *models.Coupon) error
	incrementUseFn      func(ctx context.Context, id uuid.UUID) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	if f.createFn != nil {
		return f.createFn(ctx, coupon)
	}
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if f.findByCodeFn != nil {
		return f.findByCodeFn(ctx, code)
	}
	return nil, nil
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if f.findByIDForUpdateFn != nil {
		return f.findByIDForUpdateFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRepository) List(ctx context.Context, params listCouponsParams) ([]models.Coupon, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, coupon *models.Coupon) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, coupon)
	}
	return nil
}

func (f *fakeRepository) IncrementUse(ctx context.Context, id uuid.UUID) error {
	if f.incrementUseFn != nil {
		return f.incrementUseFn(ctx, id)
	}
	return nil
}

func (f *fakeRepository) DeactivateLapsed(ctx context.Context, now time.Time) ([]models.Coupon, error) {
	return nil, nil
}

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo)
	return svc
}

func timePtr(t time.Time) *time.Time { return &t }

func activeCoupon(kind enums.CouponKind, value string) *models.Coupon {
	return &models.Coupon{
		ID:             uuid.New(),
		Code:           "SAVE10",
		Kind:           kind,
		Value:          decimal.RequireFromString(value),
		MinOrderAmount: decimal.Zero,
		ValidFrom:      timePtr(time.Now().Add(-24 * time.Hour)),
		ValidUntil:     timePtr(time.Now().Add(24 * time.Hour)),
		IsActive:       true,
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	base := CreateParams{
		Code:       "SAVE10",
		Kind:       enums.CouponKindPercentage,
		Value:      decimal.NewFromInt(10),
		ValidFrom:  timePtr(time.Now()),
		ValidUntil: timePtr(time.Now().Add(time.Hour)),
		CreatedBy:  uuid.New(),
	}

	cases := map[string]func(p CreateParams) CreateParams{
		"empty code":       func(p CreateParams) CreateParams { p.Code = "  "; return p },
		"bad kind":         func(p CreateParams) CreateParams { p.Kind = "BOGO"; return p },
		"zero value":       func(p CreateParams) CreateParams { p.Value = decimal.Zero; return p },
		"percent over 100": func(p CreateParams) CreateParams { p.Value = decimal.NewFromInt(150); return p },
		"negative minimum": func(p CreateParams) CreateParams { p.MinOrderAmount = decimal.NewFromInt(-1); return p },
		"zero max uses":    func(p CreateParams) CreateParams { zero := 0; p.MaxUses = &zero; return p },
		"inverted window":  func(p CreateParams) CreateParams { p.ValidUntil = p.ValidFrom; return p },
		"missing creator":  func(p CreateParams) CreateParams { p.CreatedBy = uuid.Nil; return p },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), mutate(base))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_CreateUppercasesCode(t *testing.T) {
	var created *models.Coupon
	repo := &fakeRepository{
		createFn: func(ctx context.Context, coupon *models.Coupon) error {
			created = coupon
			return nil
		},
	}
	svc := newServiceWithRepo(repo)
	_, err := svc.Create(context.Background(), CreateParams{
		Code:       " save10 ",
		Kind:       enums.CouponKindFixedAmount,
		Value:      decimal.NewFromInt(50),
		ValidFrom:  timePtr(time.Now()),
		ValidUntil: timePtr(time.Now().Add(time.Hour)),
		CreatedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created == nil || created.Code != "SAVE10" {
		t.Fatalf("expected normalized code SAVE10, got %+v", created)
	}
	if !created.IsActive {
		t.Fatal("expected new coupon to be active")
	}
}

func TestService_EvaluatePercentage(t *testing.T) {
	coupon := activeCoupon(enums.CouponKindPercentage, "10")
	repo := &fakeRepository{
		findByCodeFn: func(ctx context.Context, code string) (*models.Coupon, error) {
			if code != "SAVE10" {
				t.Fatalf("expected normalized code, got %q", code)
			}
			return coupon, nil
		},
	}
	svc := newServiceWithRepo(repo)
	eval, err := svc.Evaluate(context.Background(), "save10", decimal.RequireFromString("199.99"), time.Now())
	if err != nil {
		t.Fatalf("unexpected evaluate error: %v", err)
	}
	want := decimal.RequireFromString("20.00")
	if !eval.Discount.Equal(want) {
		t.Fatalf("expected discount %s, got %s", want, eval.Discount)
	}
}

func TestService_EvaluateFixedAmountClamped(t *testing.T) {
	coupon := activeCoupon(enums.CouponKindFixedAmount, "50")
	repo := &fakeRepository{
		findByCodeFn: func(ctx context.Context, code string) (*models.Coupon, error) {
			return coupon, nil
		},
	}
	svc := newServiceWithRepo(repo)

	eval, err := svc.Evaluate(context.Background(), "SAVE10", decimal.NewFromInt(30), time.Now())
	if err != nil {
		t.Fatalf("unexpected evaluate error: %v", err)
	}
	if !eval.Discount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected discount clamped to subtotal, got %s", eval.Discount)
	}

	eval, err = svc.Evaluate(context.Background(), "SAVE10", decimal.NewFromInt(80), time.Now())
	if err != nil {
		t.Fatalf("unexpected evaluate error: %v", err)
	}
	if !eval.Discount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected full fixed discount, got %s", eval.Discount)
	}
}

func TestService_EvaluateRejections(t *testing.T) {
	now := time.Now()
	maxed := 5

	cases := map[string]func(c *models.Coupon){
		"inactive":      func(c *models.Coupon) { c.IsActive = false },
		"not yet valid": func(c *models.Coupon) { c.ValidFrom = timePtr(now.Add(time.Hour)) },
		"expired":       func(c *models.Coupon) { c.ValidUntil = timePtr(now.Add(-time.Hour)) },
		"usage cap hit": func(c *models.Coupon) { c.MaxUses = &maxed; c.UsesSoFar = 5 },
		"below minimum": func(c *models.Coupon) { c.MinOrderAmount = decimal.NewFromInt(500) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			coupon := activeCoupon(enums.CouponKindPercentage, "10")
			mutate(coupon)
			repo := &fakeRepository{
				findByCodeFn: func(ctx context.Context, code string) (*models.Coupon, error) {
					return coupon, nil
				},
			}
			svc := newServiceWithRepo(repo)
			_, err := svc.Evaluate(context.Background(), "SAVE10", decimal.NewFromInt(100), now)
			if err == nil {
				t.Fatal("expected evaluate rejection")
			}
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_EvaluateUnknownCode(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	_, err := svc.Evaluate(context.Background(), "NOPE", decimal.NewFromInt(100), time.Now())
	if err == nil {
		t.Fatal("expected error for unknown code")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_RecordUse(t *testing.T) {
	coupon := activeCoupon(enums.CouponKindPercentage, "10")
	incremented := false
	repo := &fakeRepository{
		findByIDForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
			return coupon, nil
		},
		incrementUseFn: func(ctx context.Context, id uuid.UUID) error {
			incremented = true
			return nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.RecordUse(context.Background(), nil, coupon.ID); err != nil {
		t.Fatalf("unexpected record use error: %v", err)
	}
	if !incremented {
		t.Fatal("expected usage counter increment")
	}
}

func TestService_RecordUseAtCapIsNoop(t *testing.T) {
	maxed := 3
	coupon := activeCoupon(enums.CouponKindPercentage, "10")
	coupon.MaxUses = &maxed
	coupon.UsesSoFar = 3
	repo := &fakeRepository{
		findByIDForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
			return coupon, nil
		},
		incrementUseFn: func(ctx context.Context, id uuid.UUID) error {
			t.Fatal("increment must not run at the cap")
			return nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.RecordUse(context.Background(), nil, coupon.ID); err != nil {
		t.Fatalf("unexpected record use error: %v", err)
	}
}

func TestService_DeactivateAlreadyInactive(t *testing.T) {
	coupon := activeCoupon(enums.CouponKindPercentage, "10")
	coupon.IsActive = false
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
			return coupon, nil
		},
		updateFn: func(ctx context.Context, c *models.Coupon) error {
			t.Fatal("update must not run for an inactive coupon")
			return nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.Deactivate(context.Background(), DeactivateParams{ID: coupon.ID, IsAdmin: true}); err != nil {
		t.Fatalf("unexpected deactivate error: %v", err)
	}
}

func TestService_DeactivateOwnership(t *testing.T) {
	ownerID := uuid.New()
	strangerID := uuid.New()

	platform := activeCoupon(enums.CouponKindPercentage, "10")
	sellerOwned := activeCoupon(enums.CouponKindPercentage, "10")
	sellerOwned.ID = uuid.New()
	sellerOwned.SellerID = &ownerID

	byID := map[uuid.UUID]*models.Coupon{platform.ID: platform, sellerOwned.ID: sellerOwned}
	updated := 0
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
			return byID[id], nil
		},
		updateFn: func(ctx context.Context, c *models.Coupon) error {
			updated++
			return nil
		},
	}
	svc := newServiceWithRepo(repo)

	err := svc.Deactivate(context.Background(), DeactivateParams{ID: platform.ID, ActorSellerID: &ownerID})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for seller on platform coupon, got %v", err)
	}

	err = svc.Deactivate(context.Background(), DeactivateParams{ID: sellerOwned.ID, ActorSellerID: &strangerID})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for another seller, got %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected no updates from forbidden calls, got %d", updated)
	}

	if err := svc.Deactivate(context.Background(), DeactivateParams{ID: sellerOwned.ID, ActorSellerID: &ownerID}); err != nil {
		t.Fatalf("expected owner to deactivate, got %v", err)
	}
	sellerOwned.IsActive = true
	if err := svc.Deactivate(context.Background(), DeactivateParams{ID: sellerOwned.ID, IsAdmin: true}); err != nil {
		t.Fatalf("expected admin to deactivate any coupon, got %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected two updates, got %d", updated)
	}
}

func TestService_CreateAcceptsOpenWindow(t *testing.T) {
	var created *models.Coupon
	repo := &fakeRepository{
		createFn: func(ctx context.Context, coupon *models.Coupon) error {
			created = coupon
			return nil
		},
	}
	svc := newServiceWithRepo(repo)
	sellerID := uuid.New()
	_, err := svc.Create(context.Background(), CreateParams{
		Code:      "SIEMPRE",
		Kind:      enums.CouponKindPercentage,
		Value:     decimal.NewFromInt(5),
		SellerID:  &sellerID,
		CreatedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created.ValidFrom != nil || created.ValidUntil != nil {
		t.Fatalf("expected unbounded window, got %+v", created)
	}
	if created.SellerID == nil || *created.SellerID != sellerID {
		t.Fatalf("expected seller ownership carried, got %+v", created.SellerID)
	}
}

func TestService_EvaluateUnboundedWindow(t *testing.T) {
	coupon := activeCoupon(enums.CouponKindPercentage, "10")
	coupon.ValidFrom = nil
	coupon.ValidUntil = nil
	repo := &fakeRepository{
		findByCodeFn: func(ctx context.Context, code string) (*models.Coupon, error) {
			return coupon, nil
		},
	}
	svc := newServiceWithRepo(repo)
	eval, err := svc.Evaluate(context.Background(), "SAVE10", decimal.NewFromInt(100), time.Now().Add(1000*time.Hour))
	if err != nil {
		t.Fatalf("expected unbounded coupon to evaluate, got %v", err)
	}
	if !eval.Discount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected discount 10, got %s", eval.Discount)
	}
}

func TestService_GetRepoFailure(t *testing.T) {
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := newServiceWithRepo(repo)
	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected dependency error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
