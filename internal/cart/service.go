package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/catalog"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
)

// Service defines cart mutation and the snapshot read used by checkout.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, variantID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	ClearItemsInTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, itemIDs []uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalog.Repository
}

// NewService wires cart dependencies.
func NewService(repo Repository, catalogRepo catalog.Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	if catalogRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo, catalog: catalogRepo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cart, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// AddItem merges quantity into any existing line for the same variant. The
// merged quantity is checked against current stock so a cart cannot grow
// past what the seller can fulfill at add time.
func (s *service) AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart item")
	}
	merged := quantity
	if existing != nil {
		merged += existing.Quantity
	}

	if err := s.checkVariant(ctx, variantID, merged); err != nil {
		return nil, err
	}

	item := &models.CartItem{CartID: cart.ID, VariantID: variantID, Quantity: merged}
	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
	}
	return s.reload(ctx, userID)
}

// UpdateItem sets an absolute quantity. Zero or negative removes the line.
func (s *service) UpdateItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, variantID)
	}
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart item")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if err := s.checkVariant(ctx, variantID, quantity); err != nil {
		return nil, err
	}

	existing.Quantity = quantity
	if err := s.repo.UpsertItem(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.reload(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, variantID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	affected, err := s.repo.DeleteItem(ctx, cart.ID, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.reload(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// ClearItemsInTx removes the named items inside the caller's transaction.
// Checkout passes the ids it snapshotted, so a row added to the cart in the
// meantime is not swept away, and a failed order leaves the cart untouched.
func (s *service) ClearItemsInTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, itemIDs []uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if err := s.repo.WithTx(tx).DeleteItemsByID(ctx, cartID, itemIDs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}

func (s *service) checkVariant(ctx context.Context, variantID uuid.UUID, quantity int) error {
	lookups, err := s.catalog.LookupVariants(ctx, []uuid.UUID{variantID}, false)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variant")
	}
	if len(lookups) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	lookup := lookups[0]
	if !lookup.ProductStatus.Purchasable() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not available for purchase")
	}
	if lookup.Stock < quantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock for "+lookup.ProductName)
	}
	return nil
}
