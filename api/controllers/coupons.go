package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/api/responses"
	"github.com/juan12312121/mercado-backend/api/validators"
	"github.com/juan12312121/mercado-backend/internal/coupons"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/logger"
)

type createCouponRequest struct {
	Code           string     `json:"code" validate:"required,min=3"`
	Kind           string     `json:"kind" validate:"required"`
	Value          string     `json:"value" validate:"required"`
	MinOrderAmount string     `json:"min_order_amount,omitempty"`
	MaxUses        *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
}

// couponCreateParams turns a decoded request body into service params.
// Ownership (SellerID, CreatedBy) is filled in by the caller.
func couponCreateParams(r *http.Request) (coupons.CreateParams, error) {
	var body createCouponRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return coupons.CreateParams{}, err
	}

	kind, err := enums.ParseCouponKind(strings.TrimSpace(body.Kind))
	if err != nil {
		return coupons.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind")
	}

	value, err := decimal.NewFromString(strings.TrimSpace(body.Value))
	if err != nil {
		return coupons.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid value")
	}

	minOrder := decimal.Zero
	if raw := strings.TrimSpace(body.MinOrderAmount); raw != "" {
		minOrder, err = decimal.NewFromString(raw)
		if err != nil {
			return coupons.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min order amount")
		}
	}

	return coupons.CreateParams{
		Code:           strings.TrimSpace(body.Code),
		Kind:           kind,
		Value:          value,
		MinOrderAmount: minOrder,
		MaxUses:        body.MaxUses,
		ValidFrom:      body.ValidFrom,
		ValidUntil:     body.ValidUntil,
	}, nil
}

// AdminCreateCoupon registers a new platform-global discount code.
func AdminCreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := couponCreateParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.CreatedBy = adminID

		coupon, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// SellerCreateCoupon registers a discount code scoped to the seller's shop.
func SellerCreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := couponCreateParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.SellerID = &sellerID
		params.CreatedBy = userID

		coupon, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

func listCoupons(svc coupons.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request, sellerID *uuid.UUID) {
	limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	activeOnly, err := validators.ParseQueryBool(r, "active")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	result, err := svc.List(r.Context(), coupons.ListParams{
		Limit:      limit,
		Cursor:     r.URL.Query().Get("cursor"),
		ActiveOnly: activeOnly,
		SellerID:   sellerID,
	})
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	responses.WriteSuccess(w, result)
}

// AdminListCoupons pages through all coupons, platform and seller alike.
func AdminListCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		listCoupons(svc, logg, w, r, nil)
	}
}

// SellerListCoupons pages through the seller's own coupons.
func SellerListCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listCoupons(svc, logg, w, r, &sellerID)
	}
}

// AdminDeactivateCoupon turns any coupon off ahead of its expiry.
func AdminDeactivateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		couponID, err := validators.ParsePathUUID(chi.URLParam(r, "couponID"), "coupon id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), coupons.DeactivateParams{ID: couponID, IsAdmin: true}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// SellerDeactivateCoupon turns off a coupon the seller owns.
func SellerDeactivateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		couponID, err := validators.ParsePathUUID(chi.URLParam(r, "couponID"), "coupon id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), coupons.DeactivateParams{ID: couponID, ActorSellerID: &sellerID}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// GetCouponByCode lets a buyer look up a code before checkout.
func GetCouponByCode(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code required"))
			return
		}

		coupon, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}

// ValidateCoupon runs the full evaluation for a code against a cart amount
// and returns the coupon with the discount it would grant.
func ValidateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code required"))
			return
		}

		rawAmount := strings.TrimSpace(r.URL.Query().Get("amount"))
		if rawAmount == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount required"))
			return
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		evaluation, err := svc.Evaluate(r.Context(), code, amount, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, evaluation)
	}
}
