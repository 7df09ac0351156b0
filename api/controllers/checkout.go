package controllers

import (
	"net/http"
	"strings"

	"github.com/juan12312121/mercado-backend/api/responses"
	"github.com/juan12312121/mercado-backend/api/validators"
	"github.com/juan12312121/mercado-backend/internal/checkout"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/logger"
)

type checkoutRequest struct {
	AddressID  string `json:"address_id" validate:"required,uuid"`
	CouponCode string `json:"coupon_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Checkout assembles an order from the buyer's cart.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addressID, err := validators.ParsePathUUID(body.AddressID, "address id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), checkout.ExecuteParams{
			UserID:     uid,
			AddressID:  addressID,
			CouponCode: strings.TrimSpace(body.CouponCode),
			Notes:      body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
