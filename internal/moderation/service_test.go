package moderation

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
	"gorm.io/gorm"
)

type fakeRepository struct {
	reports map[uuid.UUID]*models.Report
	appeals map[uuid.UUID]*models.Appeal
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		reports: make(map[uuid.UUID]*models.Report),
		appeals: make(map[uuid.UUID]*models.Appeal),
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) CreateReport(ctx context.Context, report *models.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	stored := *report
	f.reports[report.ID] = &stored
	return nil
}

func (f *fakeRepository) FindReportByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, nil
	}
	found := *report
	return &found, nil
}

func (f *fakeRepository) ListReports(ctx context.Context, params listReportsParams) ([]models.Report, *pagination.Cursor, error) {
	var out []models.Report
	for _, report := range f.reports {
		if params.Status != nil && report.Status != *params.Status {
			continue
		}
		if params.SellerID != nil && report.SellerID != *params.SellerID {
			continue
		}
		out = append(out, *report)
	}
	return out, nil, nil
}

func (f *fakeRepository) UpdateReport(ctx context.Context, report *models.Report) error {
	stored := *report
	f.reports[report.ID] = &stored
	return nil
}

func (f *fakeRepository) CreateAppeal(ctx context.Context, appeal *models.Appeal) error {
	if appeal.ID == uuid.Nil {
		appeal.ID = uuid.New()
	}
	stored := *appeal
	f.appeals[appeal.ID] = &stored
	return nil
}

func (f *fakeRepository) FindAppealByID(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	appeal, ok := f.appeals[id]
	if !ok {
		return nil, nil
	}
	found := *appeal
	return &found, nil
}

func (f *fakeRepository) ListAppeals(ctx context.Context, params listAppealsParams) ([]models.Appeal, *pagination.Cursor, error) {
	var out []models.Appeal
	for _, appeal := range f.appeals {
		if params.Status != nil && appeal.Status != *params.Status {
			continue
		}
		if params.SellerID != nil && appeal.SellerID != *params.SellerID {
			continue
		}
		out = append(out, *appeal)
	}
	return out, nil, nil
}

func (f *fakeRepository) UpdateAppeal(ctx context.Context, appeal *models.Appeal) error {
	stored := *appeal
	f.appeals[appeal.ID] = &stored
	return nil
}

type fakeSellerDirectory struct {
	seller     *models.Seller
	suspended  []uuid.UUID
	reinstated []uuid.UUID
}

func (f *fakeSellerDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	if f.seller == nil || f.seller.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	found := *f.seller
	return &found, nil
}

func (f *fakeSellerDirectory) Suspend(ctx context.Context, sellerID, adminID uuid.UUID, note *string) (*models.Seller, error) {
	f.suspended = append(f.suspended, sellerID)
	f.seller.Status = enums.SellerStatusSuspended
	found := *f.seller
	return &found, nil
}

func (f *fakeSellerDirectory) Reinstate(ctx context.Context, sellerID, adminID uuid.UUID) (*models.Seller, error) {
	f.reinstated = append(f.reinstated, sellerID)
	f.seller.Status = enums.SellerStatusApproved
	found := *f.seller
	return &found, nil
}

type fixture struct {
	svc     Service
	repo    *fakeRepository
	sellers *fakeSellerDirectory
	seller  *models.Seller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seller := &models.Seller{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		StoreName: "Taller Luna",
		Status:    enums.SellerStatusApproved,
	}
	repo := newFakeRepository()
	sellers := &fakeSellerDirectory{seller: seller}
	svc, err := NewService(repo, sellers)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo, sellers: sellers, seller: seller}
}

func (f *fixture) fileReport(t *testing.T) *models.Report {
	t.Helper()
	report, err := f.svc.FileReport(context.Background(), FileReportParams{
		ReporterID: uuid.New(),
		SellerID:   f.seller.ID,
		Reason:     "counterfeit",
		Detail:     "  item arrived without the advertised certification  ",
	})
	if err != nil {
		t.Fatalf("FileReport: %v", err)
	}
	return report
}

func TestFileReportCreatesOpenReport(t *testing.T) {
	f := newFixture(t)

	report := f.fileReport(t)

	if report.Status != enums.ReportStatusOpen {
		t.Fatalf("status = %s, want OPEN", report.Status)
	}
	if report.Detail == nil || *report.Detail != "item arrived without the advertised certification" {
		t.Fatalf("detail not trimmed: %v", report.Detail)
	}
	if _, ok := f.repo.reports[report.ID]; !ok {
		t.Fatal("report not persisted")
	}
}

func TestFileReportUnknownSeller(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FileReport(context.Background(), FileReportParams{
		ReporterID: uuid.New(),
		SellerID:   uuid.New(),
		Reason:     "counterfeit",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestFileReportRequiresReason(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FileReport(context.Background(), FileReportParams{
		ReporterID: uuid.New(),
		SellerID:   f.seller.ID,
		Reason:     "   ",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestStartReviewClaimsReport(t *testing.T) {
	f := newFixture(t)
	report := f.fileReport(t)
	adminID := uuid.New()

	claimed, err := f.svc.StartReview(context.Background(), report.ID, adminID)
	if err != nil {
		t.Fatalf("StartReview: %v", err)
	}
	if claimed.Status != enums.ReportStatusUnderReview {
		t.Fatalf("status = %s, want UNDER_REVIEW", claimed.Status)
	}
	if claimed.ResolvedBy == nil || *claimed.ResolvedBy != adminID {
		t.Fatal("reviewer not recorded")
	}

	_, err = f.svc.StartReview(context.Background(), report.ID, adminID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("second claim err = %v, want state conflict", err)
	}
}

func TestResolveReportSuspendsSeller(t *testing.T) {
	f := newFixture(t)
	report := f.fileReport(t)
	adminID := uuid.New()

	resolved, err := f.svc.ResolveReport(context.Background(), ResolveReportParams{
		ReportID:      report.ID,
		AdminID:       adminID,
		Resolution:    "listing removed, seller suspended",
		SuspendSeller: true,
	})
	if err != nil {
		t.Fatalf("ResolveReport: %v", err)
	}
	if resolved.Status != enums.ReportStatusResolved {
		t.Fatalf("status = %s, want RESOLVED", resolved.Status)
	}
	if resolved.ResolvedAt == nil || resolved.Resolution == nil {
		t.Fatal("resolution fields not stamped")
	}
	if len(f.sellers.suspended) != 1 || f.sellers.suspended[0] != f.seller.ID {
		t.Fatalf("suspended = %v, want [%s]", f.sellers.suspended, f.seller.ID)
	}
}

func TestResolveReportDismissLeavesSellerAlone(t *testing.T) {
	f := newFixture(t)
	report := f.fileReport(t)

	resolved, err := f.svc.ResolveReport(context.Background(), ResolveReportParams{
		ReportID:   report.ID,
		AdminID:    uuid.New(),
		Dismiss:    true,
		Resolution: "no policy violation found",
	})
	if err != nil {
		t.Fatalf("ResolveReport: %v", err)
	}
	if resolved.Status != enums.ReportStatusDismissed {
		t.Fatalf("status = %s, want DISMISSED", resolved.Status)
	}
	if len(f.sellers.suspended) != 0 {
		t.Fatalf("suspended = %v, want none", f.sellers.suspended)
	}
}

func TestResolveReportRejectsDismissWithSuspension(t *testing.T) {
	f := newFixture(t)
	report := f.fileReport(t)

	_, err := f.svc.ResolveReport(context.Background(), ResolveReportParams{
		ReportID:      report.ID,
		AdminID:       uuid.New(),
		Dismiss:       true,
		Resolution:    "dismissed",
		SuspendSeller: true,
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestResolveReportRejectsSettledReport(t *testing.T) {
	f := newFixture(t)
	report := f.fileReport(t)

	params := ResolveReportParams{
		ReportID:   report.ID,
		AdminID:    uuid.New(),
		Resolution: "warning issued",
	}
	if _, err := f.svc.ResolveReport(context.Background(), params); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	_, err := f.svc.ResolveReport(context.Background(), params)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestFileAppealRejectsForeignReport(t *testing.T) {
	f := newFixture(t)
	foreign := &models.Report{
		ID:       uuid.New(),
		SellerID: uuid.New(),
		Reason:   "counterfeit",
		Status:   enums.ReportStatusResolved,
	}
	f.repo.reports[foreign.ID] = foreign

	_, err := f.svc.FileAppeal(context.Background(), FileAppealParams{
		SellerID: f.seller.ID,
		ReportID: &foreign.ID,
		Message:  "this decision was wrong",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestDecideAppealAcceptReinstatesSuspendedSeller(t *testing.T) {
	f := newFixture(t)
	f.seller.Status = enums.SellerStatusSuspended
	adminID := uuid.New()

	appeal, err := f.svc.FileAppeal(context.Background(), FileAppealParams{
		SellerID: f.seller.ID,
		Message:  "the report was mistaken, see attached invoices",
	})
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	decided, err := f.svc.DecideAppeal(context.Background(), DecideAppealParams{
		AppealID: appeal.ID,
		AdminID:  adminID,
		Accept:   true,
		Note:     "evidence checks out",
	})
	if err != nil {
		t.Fatalf("DecideAppeal: %v", err)
	}
	if decided.Status != enums.AppealStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", decided.Status)
	}
	if decided.DecidedBy == nil || *decided.DecidedBy != adminID {
		t.Fatal("decider not recorded")
	}
	if len(f.sellers.reinstated) != 1 || f.sellers.reinstated[0] != f.seller.ID {
		t.Fatalf("reinstated = %v, want [%s]", f.sellers.reinstated, f.seller.ID)
	}
}

func TestDecideAppealRejectLeavesSellerSuspended(t *testing.T) {
	f := newFixture(t)
	f.seller.Status = enums.SellerStatusSuspended

	appeal, err := f.svc.FileAppeal(context.Background(), FileAppealParams{
		SellerID: f.seller.ID,
		Message:  "please reconsider",
	})
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	decided, err := f.svc.DecideAppeal(context.Background(), DecideAppealParams{
		AppealID: appeal.ID,
		AdminID:  uuid.New(),
		Accept:   false,
		Note:     "no new evidence",
	})
	if err != nil {
		t.Fatalf("DecideAppeal: %v", err)
	}
	if decided.Status != enums.AppealStatusRejected {
		t.Fatalf("status = %s, want REJECTED", decided.Status)
	}
	if len(f.sellers.reinstated) != 0 {
		t.Fatalf("reinstated = %v, want none", f.sellers.reinstated)
	}
	if f.seller.Status != enums.SellerStatusSuspended {
		t.Fatalf("seller status = %s, want SUSPENDED", f.seller.Status)
	}
}

func TestDecideAppealRejectsDecidedAppeal(t *testing.T) {
	f := newFixture(t)

	appeal, err := f.svc.FileAppeal(context.Background(), FileAppealParams{
		SellerID: f.seller.ID,
		Message:  "please reconsider",
	})
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	params := DecideAppealParams{AppealID: appeal.ID, AdminID: uuid.New(), Accept: false}
	if _, err := f.svc.DecideAppeal(context.Background(), params); err != nil {
		t.Fatalf("first decide: %v", err)
	}

	_, err = f.svc.DecideAppeal(context.Background(), params)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("err = %v, want state conflict", err)
	}
}
