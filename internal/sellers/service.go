package sellers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/users"
	"github.com/juan12312121/mercado-backend/pkg/db"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines seller onboarding and the admin review flow.
type Service interface {
	Apply(ctx context.Context, userID uuid.UUID, params ApplyParams) (*models.Seller, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Review(ctx context.Context, sellerID, adminID uuid.UUID, approve bool, note *string) (*models.Seller, error)
	Suspend(ctx context.Context, sellerID, adminID uuid.UUID, note *string) (*models.Seller, error)
	Reinstate(ctx context.Context, sellerID, adminID uuid.UUID) (*models.Seller, error)
	CanSell(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

type service struct {
	repo   Repository
	users  users.Repository
	tx     txRunner
	events outboxPublisher
}

// ApplyParams carries the storefront fields a user submits.
type ApplyParams struct {
	StoreName   string
	Description *string
}

// ListParams configures pagination for the admin seller listing.
type ListParams struct {
	Limit  int
	Cursor string
	Status *enums.SellerStatus
}

// ListResult wraps returned sellers and the cursor for the next page.
type ListResult struct {
	Items  []models.Seller `json:"items"`
	Cursor string          `json:"cursor"`
}

// NewService wires seller dependencies.
func NewService(repo Repository, userRepo users.Repository, tx txRunner, events outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sellers repository required")
	}
	if userRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, users: userRepo, tx: tx, events: events}, nil
}

// Apply opens a PENDING seller profile for review. The user keeps the buyer
// role until an admin approves the application.
func (s *service) Apply(ctx context.Context, userID uuid.UUID, params ApplyParams) (*models.Seller, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	storeName := strings.TrimSpace(params.StoreName)
	if storeName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name required")
	}

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find seller profile")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "seller profile already exists")
	}

	seller := &models.Seller{
		UserID:      userID,
		StoreName:   storeName,
		Description: params.Description,
		Status:      enums.SellerStatusPending,
	}
	if err := s.repo.Create(ctx, seller); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "store name already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create seller profile")
	}
	return seller, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	seller, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find seller")
	}
	if seller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	return seller, nil
}

func (s *service) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	seller, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find seller by user")
	}
	if seller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller profile not found")
	}
	return seller, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listSellersParams{Limit: params.Limit, Status: params.Status}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sellers")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Review settles a PENDING application. Approval also promotes the user to
// the seller role inside the same transaction.
func (s *service) Review(ctx context.Context, sellerID, adminID uuid.UUID, approve bool, note *string) (*models.Seller, error) {
	target := enums.SellerStatusRejected
	if approve {
		target = enums.SellerStatusApproved
	}
	return s.transition(ctx, sellerID, adminID, enums.SellerStatusPending, target, note)
}

func (s *service) Suspend(ctx context.Context, sellerID, adminID uuid.UUID, note *string) (*models.Seller, error) {
	return s.transition(ctx, sellerID, adminID, enums.SellerStatusApproved, enums.SellerStatusSuspended, note)
}

func (s *service) Reinstate(ctx context.Context, sellerID, adminID uuid.UUID) (*models.Seller, error) {
	return s.transition(ctx, sellerID, adminID, enums.SellerStatusSuspended, enums.SellerStatusApproved, nil)
}

// CanSell implements the catalog's seller gate.
func (s *service) CanSell(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	seller, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find seller")
	}
	if seller == nil {
		return false, nil
	}
	return seller.Status.CanSell(), nil
}

func (s *service) transition(ctx context.Context, sellerID, adminID uuid.UUID, from, to enums.SellerStatus, note *string) (*models.Seller, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id required")
	}
	seller, err := s.GetByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "seller is not in "+from.String())
	}

	previous := seller.Status
	seller.Status = to
	seller.ReviewedBy = &adminID
	seller.ReviewNote = note
	if to == enums.SellerStatusSuspended {
		now := time.Now().UTC()
		seller.SuspendedAt = &now
	} else {
		seller.SuspendedAt = nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, seller); err != nil {
			return err
		}
		if to == enums.SellerStatusApproved && previous == enums.SellerStatusPending {
			if err := s.users.WithTx(tx).SetRole(ctx, seller.UserID, enums.RoleSeller); err != nil {
				return err
			}
		}
		reason := ""
		if note != nil {
			reason = *note
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerStatusChanged,
			AggregateType: enums.AggregateSeller,
			AggregateID:   seller.ID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.RoleAdmin.String()},
			Data: payloads.SellerStatusChangedEvent{
				SellerID:   seller.ID,
				UserID:     seller.UserID,
				FromStatus: previous,
				ToStatus:   to,
				Reason:     reason,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update seller status")
	}
	return seller, nil
}
