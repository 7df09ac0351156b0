package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

type sellerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	Suspend(ctx context.Context, sellerID, adminID uuid.UUID, note *string) (*models.Seller, error)
	Reinstate(ctx context.Context, sellerID, adminID uuid.UUID) (*models.Seller, error)
}

// Service runs the complaint pipeline: buyers file reports against sellers,
// admins work them, sellers appeal the outcome.
type Service interface {
	FileReport(ctx context.Context, params FileReportParams) (*models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, params ListReportsParams) (*ListReportsResult, error)
	StartReview(ctx context.Context, reportID, adminID uuid.UUID) (*models.Report, error)
	ResolveReport(ctx context.Context, params ResolveReportParams) (*models.Report, error)

	FileAppeal(ctx context.Context, params FileAppealParams) (*models.Appeal, error)
	GetAppeal(ctx context.Context, id uuid.UUID) (*models.Appeal, error)
	ListAppeals(ctx context.Context, params ListAppealsParams) (*ListAppealsResult, error)
	DecideAppeal(ctx context.Context, params DecideAppealParams) (*models.Appeal, error)
}

type service struct {
	repo    Repository
	sellers sellerDirectory
}

// NewService constructs a moderation service.
func NewService(repo Repository, sellers sellerDirectory) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "moderation repository required")
	}
	if sellers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "seller directory required")
	}
	return &service{repo: repo, sellers: sellers}, nil
}

// FileReportParams captures a buyer complaint.
type FileReportParams struct {
	ReporterID uuid.UUID
	SellerID   uuid.UUID
	ProductID  *uuid.UUID
	Reason     string
	Detail     string
}

// ListReportsParams filters the admin report queue.
type ListReportsParams struct {
	Status   *enums.ReportStatus
	SellerID *uuid.UUID
	Limit    int
	Cursor   string
}

// ListReportsResult is one page of reports.
type ListReportsResult struct {
	Items  []models.Report
	Cursor string
}

// ResolveReportParams captures an admin decision on a report.
type ResolveReportParams struct {
	ReportID      uuid.UUID
	AdminID       uuid.UUID
	Dismiss       bool
	Resolution    string
	SuspendSeller bool
}

// FileAppealParams captures a seller challenging a moderation outcome.
type FileAppealParams struct {
	SellerID uuid.UUID
	ReportID *uuid.UUID
	Message  string
}

// ListAppealsParams filters the admin appeal queue.
type ListAppealsParams struct {
	Status   *enums.AppealStatus
	SellerID *uuid.UUID
	Limit    int
	Cursor   string
}

// ListAppealsResult is one page of appeals.
type ListAppealsResult struct {
	Items  []models.Appeal
	Cursor string
}

// DecideAppealParams captures an admin ruling on an appeal.
type DecideAppealParams struct {
	AppealID uuid.UUID
	AdminID  uuid.UUID
	Accept   bool
	Note     string
}

func (s *service) FileReport(ctx context.Context, params FileReportParams) (*models.Report, error) {
	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report reason required")
	}
	seller, err := s.sellers.GetByID(ctx, params.SellerID)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID: params.ReporterID,
		SellerID:   seller.ID,
		ProductID:  params.ProductID,
		Reason:     reason,
		Status:     enums.ReportStatusOpen,
	}
	if detail := strings.TrimSpace(params.Detail); detail != "" {
		report.Detail = &detail
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create report")
	}
	return report, nil
}

func (s *service) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	report, err := s.repo.FindReportByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find report")
	}
	if report == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
	}
	return report, nil
}

func (s *service) ListReports(ctx context.Context, params ListReportsParams) (*ListReportsResult, error) {
	query := listReportsParams{
		Limit:    params.Limit,
		Status:   params.Status,
		SellerID: params.SellerID,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListReports(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reports")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListReportsResult{Items: rows, Cursor: cursor}, nil
}

// StartReview claims an open report for an admin.
func (s *service) StartReview(ctx context.Context, reportID, adminID uuid.UUID) (*models.Report, error) {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != enums.ReportStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "report is not open")
	}

	report.Status = enums.ReportStatusUnderReview
	report.ResolvedBy = &adminID
	if err := s.repo.UpdateReport(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report")
	}
	return report, nil
}

// ResolveReport closes a report. A resolution may suspend the seller in the
// same call; dismissals never touch the seller.
func (s *service) ResolveReport(ctx context.Context, params ResolveReportParams) (*models.Report, error) {
	resolution := strings.TrimSpace(params.Resolution)
	if resolution == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution required")
	}
	if params.Dismiss && params.SuspendSeller {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a dismissed report cannot suspend the seller")
	}

	report, err := s.GetReport(ctx, params.ReportID)
	if err != nil {
		return nil, err
	}
	if report.Status != enums.ReportStatusOpen && report.Status != enums.ReportStatusUnderReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "report is already settled")
	}

	if params.SuspendSeller {
		note := resolution
		if _, err := s.sellers.Suspend(ctx, report.SellerID, params.AdminID, &note); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if params.Dismiss {
		report.Status = enums.ReportStatusDismissed
	} else {
		report.Status = enums.ReportStatusResolved
	}
	report.ResolvedBy = &params.AdminID
	report.Resolution = &resolution
	report.ResolvedAt = &now
	if err := s.repo.UpdateReport(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report")
	}
	return report, nil
}

func (s *service) FileAppeal(ctx context.Context, params FileAppealParams) (*models.Appeal, error) {
	message := strings.TrimSpace(params.Message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal message required")
	}
	seller, err := s.sellers.GetByID(ctx, params.SellerID)
	if err != nil {
		return nil, err
	}

	if params.ReportID != nil {
		report, err := s.GetReport(ctx, *params.ReportID)
		if err != nil {
			return nil, err
		}
		if report.SellerID != seller.ID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "report concerns another seller")
		}
	}

	appeal := &models.Appeal{
		SellerID: seller.ID,
		ReportID: params.ReportID,
		Message:  message,
		Status:   enums.AppealStatusPending,
	}
	if err := s.repo.CreateAppeal(ctx, appeal); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appeal")
	}
	return appeal, nil
}

func (s *service) GetAppeal(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	appeal, err := s.repo.FindAppealByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find appeal")
	}
	if appeal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appeal not found")
	}
	return appeal, nil
}

func (s *service) ListAppeals(ctx context.Context, params ListAppealsParams) (*ListAppealsResult, error) {
	query := listAppealsParams{
		Limit:    params.Limit,
		Status:   params.Status,
		SellerID: params.SellerID,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListAppeals(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appeals")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListAppealsResult{Items: rows, Cursor: cursor}, nil
}

// DecideAppeal settles a pending appeal. Accepting one reinstates a
// suspended seller.
func (s *service) DecideAppeal(ctx context.Context, params DecideAppealParams) (*models.Appeal, error) {
	appeal, err := s.GetAppeal(ctx, params.AppealID)
	if err != nil {
		return nil, err
	}
	if appeal.Status != enums.AppealStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appeal is already decided")
	}

	if params.Accept {
		seller, err := s.sellers.GetByID(ctx, appeal.SellerID)
		if err != nil {
			return nil, err
		}
		if seller.Status == enums.SellerStatusSuspended {
			if _, err := s.sellers.Reinstate(ctx, seller.ID, params.AdminID); err != nil {
				return nil, err
			}
		}
		appeal.Status = enums.AppealStatusAccepted
	} else {
		appeal.Status = enums.AppealStatusRejected
	}

	now := time.Now().UTC()
	appeal.DecidedBy = &params.AdminID
	appeal.DecidedAt = &now
	if note := strings.TrimSpace(params.Note); note != "" {
		appeal.DecisionNote = &note
	}
	if err := s.repo.UpdateAppeal(ctx, appeal); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update appeal")
	}
	return appeal, nil
}
