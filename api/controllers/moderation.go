package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/api/responses"
	"github.com/juan12312121/mercado-backend/api/validators"
	"github.com/juan12312121/mercado-backend/internal/moderation"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/logger"
)

type fileReportRequest struct {
	SellerID  string  `json:"seller_id" validate:"required,uuid"`
	ProductID *string `json:"product_id,omitempty" validate:"omitempty,uuid"`
	Reason    string  `json:"reason" validate:"required,min=5"`
	Detail    string  `json:"detail,omitempty"`
}

type resolveReportRequest struct {
	Dismiss       bool   `json:"dismiss"`
	Resolution    string `json:"resolution" validate:"required"`
	SuspendSeller bool   `json:"suspend_seller"`
}

type fileAppealRequest struct {
	ReportID *string `json:"report_id,omitempty" validate:"omitempty,uuid"`
	Message  string  `json:"message" validate:"required,min=5"`
}

type decideAppealRequest struct {
	Accept bool   `json:"accept"`
	Note   string `json:"note,omitempty"`
}

// FileReport lets a buyer flag a seller for review.
func FileReport(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body fileReportRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, err := validators.ParsePathUUID(body.SellerID, "seller id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var productID *uuid.UUID
		if body.ProductID != nil {
			parsed, parseErr := validators.ParsePathUUID(*body.ProductID, "product id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			productID = &parsed
		}

		report, err := svc.FileReport(r.Context(), moderation.FileReportParams{
			ReporterID: uid,
			SellerID:   sellerID,
			ProductID:  productID,
			Reason:     strings.TrimSpace(body.Reason),
			Detail:     strings.TrimSpace(body.Detail),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

// AdminListReports pages through the moderation queue.
func AdminListReports(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, err := validators.ParseQueryUUID(r, "seller_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := moderation.ListReportsParams{
			SellerID: sellerID,
			Limit:    limit,
			Cursor:   r.URL.Query().Get("cursor"),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseReportStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.ListReports(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AdminGetReport returns a single report.
func AdminGetReport(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		reportID, err := validators.ParsePathUUID(chi.URLParam(r, "reportID"), "report id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.GetReport(r.Context(), reportID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// AdminStartReview claims an open report for investigation.
func AdminStartReview(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := validators.ParsePathUUID(chi.URLParam(r, "reportID"), "report id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.StartReview(r.Context(), reportID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// AdminResolveReport settles a report, optionally suspending the seller.
func AdminResolveReport(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := validators.ParsePathUUID(chi.URLParam(r, "reportID"), "report id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body resolveReportRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.ResolveReport(r.Context(), moderation.ResolveReportParams{
			ReportID:      reportID,
			AdminID:       adminID,
			Dismiss:       body.Dismiss,
			Resolution:    strings.TrimSpace(body.Resolution),
			SuspendSeller: body.SuspendSeller,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// SellerFileAppeal lets a seller challenge a moderation outcome.
func SellerFileAppeal(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		sid, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body fileAppealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var reportID *uuid.UUID
		if body.ReportID != nil {
			parsed, parseErr := validators.ParsePathUUID(*body.ReportID, "report id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			reportID = &parsed
		}

		appeal, err := svc.FileAppeal(r.Context(), moderation.FileAppealParams{
			SellerID: sid,
			ReportID: reportID,
			Message:  strings.TrimSpace(body.Message),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, appeal)
	}
}

// AdminListAppeals pages through pending and settled appeals.
func AdminListAppeals(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, err := validators.ParseQueryUUID(r, "seller_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := moderation.ListAppealsParams{
			SellerID: sellerID,
			Limit:    limit,
			Cursor:   r.URL.Query().Get("cursor"),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseAppealStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.ListAppeals(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AdminDecideAppeal accepts or rejects a pending appeal.
func AdminDecideAppeal(svc moderation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "moderation service unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appealID, err := validators.ParsePathUUID(chi.URLParam(r, "appealID"), "appeal id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decideAppealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appeal, err := svc.DecideAppeal(r.Context(), moderation.DecideAppealParams{
			AppealID: appealID,
			AdminID:  adminID,
			Accept:   body.Accept,
			Note:     strings.TrimSpace(body.Note),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, appeal)
	}
}
