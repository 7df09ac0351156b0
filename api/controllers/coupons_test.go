package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/coupons"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
)

type fakeCouponsService struct {
	evaluateFn func(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*coupons.Evaluation, error)
}

func (f *fakeCouponsService) Create(ctx context.Context, params coupons.CreateParams) (*models.Coupon, error) {
	return nil, nil
}

func (f *fakeCouponsService) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return nil, nil
}

func (f *fakeCouponsService) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return nil, nil
}

func (f *fakeCouponsService) List(ctx context.Context, params coupons.ListParams) (*coupons.ListResult, error) {
	return nil, nil
}

func (f *fakeCouponsService) Deactivate(ctx context.Context, params coupons.DeactivateParams) error {
	return nil
}

func (f *fakeCouponsService) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*coupons.Evaluation, error) {
	if f.evaluateFn != nil {
		return f.evaluateFn(ctx, code, subtotal, now)
	}
	return nil, nil
}

func (f *fakeCouponsService) RecordUse(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func TestValidateCouponComputesDiscount(t *testing.T) {
	coupon := &models.Coupon{ID: uuid.New(), Code: "SAVE10"}
	svc := &fakeCouponsService{
		evaluateFn: func(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*coupons.Evaluation, error) {
			if code != "SAVE10" {
				t.Fatalf("expected code SAVE10, got %q", code)
			}
			if !subtotal.Equal(decimal.RequireFromString("199.90")) {
				t.Fatalf("expected amount 199.90, got %s", subtotal)
			}
			return &coupons.Evaluation{Coupon: coupon, Discount: decimal.RequireFromString("19.99")}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/coupons/validate?code=SAVE10&amount=199.90", nil)
	rec := httptest.NewRecorder()
	ValidateCoupon(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Coupon   *models.Coupon  `json:"coupon"`
			Discount decimal.Decimal `json:"discount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Coupon == nil || envelope.Data.Coupon.Code != "SAVE10" {
		t.Fatalf("expected coupon in response, got %+v", envelope.Data.Coupon)
	}
	if !envelope.Data.Discount.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("expected discount 19.99, got %s", envelope.Data.Discount)
	}
}

func TestValidateCouponPropagatesRejection(t *testing.T) {
	svc := &fakeCouponsService{
		evaluateFn: func(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*coupons.Evaluation, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon: expired")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/coupons/validate?code=STALE&amount=50", nil)
	rec := httptest.NewRecorder()
	ValidateCoupon(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestValidateCouponRequiresParams(t *testing.T) {
	svc := &fakeCouponsService{}

	for _, target := range []string{
		"/api/v1/coupons/validate?amount=50",
		"/api/v1/coupons/validate?code=SAVE10",
		"/api/v1/coupons/validate?code=SAVE10&amount=abc",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		ValidateCoupon(svc, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rec.Code)
		}
	}
}
