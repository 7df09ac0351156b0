package reviews

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/db"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

// Service handles buyer feedback on products. A review requires a delivered
// order containing the product and each buyer reviews a product once.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Review, error)
	ListByProduct(ctx context.Context, params ListParams) (*ListResult, error)
	ListMine(ctx context.Context, params ListMineParams) (*ListResult, error)
	Summary(ctx context.Context, productID uuid.UUID) (*RatingSummary, error)
	SetHidden(ctx context.Context, reviewID uuid.UUID, hidden bool) (*models.Review, error)
	Delete(ctx context.Context, params DeleteParams) error
}

type service struct {
	repo Repository
}

// NewService wires review dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reviews repository required")
	}
	return &service{repo: repo}, nil
}

// CreateParams captures a new review.
type CreateParams struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	OrderID   uuid.UUID
	Rating    int
	Comment   string
}

// ListParams filters a product's review page.
type ListParams struct {
	ProductID     uuid.UUID
	IncludeHidden bool
	Limit         int
	Cursor        string
}

// ListMineParams filters the caller's own review page.
type ListMineParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// DeleteParams identifies a review removal request. Admins may remove any
// review, buyers only their own.
type DeleteParams struct {
	ReviewID uuid.UUID
	ActorID  uuid.UUID
	IsAdmin  bool
}

// ListResult is one page of reviews.
type ListResult struct {
	Items  []models.Review
	Cursor string
}

// RatingSummary aggregates visible reviews for a product.
type RatingSummary struct {
	ProductID uuid.UUID `json:"product_id"`
	Average   float64   `json:"average"`
	Count     int64     `json:"count"`
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if params.ProductID == uuid.Nil || params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and order ids required")
	}

	purchased, err := s.repo.HasDeliveredPurchase(ctx, params.UserID, params.ProductID, params.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify purchase")
	}
	if !purchased {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reviews require a delivered order containing the product")
	}

	review := &models.Review{
		ProductID: params.ProductID,
		UserID:    params.UserID,
		OrderID:   params.OrderID,
		Rating:    params.Rating,
	}
	if comment := strings.TrimSpace(params.Comment); comment != "" {
		review.Comment = &comment
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	return review, nil
}

func (s *service) ListByProduct(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	query := listReviewsParams{
		Limit:         params.Limit,
		ProductID:     params.ProductID,
		IncludeHidden: params.IncludeHidden,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByProduct(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// ListMine returns the caller's reviews, hidden ones included so authors see
// moderation outcomes.
func (s *service) ListMine(ctx context.Context, params ListMineParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	query := listUserReviewsParams{
		Limit:  params.Limit,
		UserID: params.UserID,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByUser(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Summary(ctx context.Context, productID uuid.UUID) (*RatingSummary, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	average, count, err := s.repo.AverageRating(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
	}
	return &RatingSummary{ProductID: productID, Average: average, Count: count}, nil
}

// SetHidden is the moderation hook. Hidden reviews drop out of public lists
// and the rating aggregate but stay on record.
func (s *service) SetHidden(ctx context.Context, reviewID uuid.UUID, hidden bool) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find review")
	}
	if review == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	if review.IsHidden == hidden {
		return review, nil
	}

	review.IsHidden = hidden
	if err := s.repo.Update(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
	}
	return review, nil
}

// Delete removes a review permanently. The rating aggregate recomputes from
// the remaining rows on the next read.
func (s *service) Delete(ctx context.Context, params DeleteParams) error {
	review, err := s.repo.FindByID(ctx, params.ReviewID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find review")
	}
	if review == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	if !params.IsAdmin && review.UserID != params.ActorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "review belongs to another user")
	}
	if err := s.repo.Delete(ctx, review.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}
