package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/db"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
	"github.com/juan12312121/mercado-backend/pkg/types"
)

// SellerDirectory answers whether a seller is allowed to list products.
// Implemented by the sellers service.
type SellerDirectory interface {
	CanSell(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

// Service defines catalog management and the variant lookup used by checkout.
type Service interface {
	CreateCategory(ctx context.Context, params CategoryParams) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, params CategoryParams) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateProduct(ctx context.Context, sellerID uuid.UUID, params ProductParams) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) (*ListProductsResult, error)
	UpdateProduct(ctx context.Context, sellerID, productID uuid.UUID, params ProductParams) (*models.Product, error)
	SetProductStatus(ctx context.Context, productID uuid.UUID, status enums.ProductStatus) error

	AddVariant(ctx context.Context, sellerID, productID uuid.UUID, params VariantParams) (*models.ProductVariant, error)
	UpdateVariant(ctx context.Context, sellerID, variantID uuid.UUID, params VariantParams) (*models.ProductVariant, error)
	RemoveVariant(ctx context.Context, sellerID, variantID uuid.UUID) error

	Repo() Repository
}

type service struct {
	repo    Repository
	sellers SellerDirectory
}

// CategoryParams carries admin-supplied category fields.
type CategoryParams struct {
	Name        string
	Description *string
}

// ProductParams carries seller-supplied product fields.
type ProductParams struct {
	CategoryID  uuid.UUID
	Name        string
	Description *string
	IsFeatured  bool
}

// VariantParams carries seller-supplied variant fields.
type VariantParams struct {
	SKU        string
	Price      decimal.Decimal
	Stock      int
	Attributes types.JSONMap
}

// ListProductsParams configures the public and seller product listings.
type ListProductsParams struct {
	Limit        int
	Cursor       string
	SellerID     *uuid.UUID
	CategoryID   *uuid.UUID
	Status       *enums.ProductStatus
	Query        string
	FeaturedOnly bool
}

// ListProductsResult wraps returned products and the cursor for the next page.
type ListProductsResult struct {
	Items  []models.Product `json:"items"`
	Cursor string           `json:"cursor"`
}

// NewService wires catalog dependencies.
func NewService(repo Repository, sellers SellerDirectory) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if sellers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "seller directory required")
	}
	return &service{repo: repo, sellers: sellers}, nil
}

// Repo exposes the repository so checkout can run lookups and stock updates
// inside its own transaction.
func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) CreateCategory(ctx context.Context, params CategoryParams) (*models.Category, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}
	category := &models.Category{
		Name:        name,
		Slug:        slugify(name),
		Description: params.Description,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, params CategoryParams) (*models.Category, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	category.Name = name
	category.Slug = slugify(name)
	category.Description = params.Description
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
	}
	return category, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, sellerID uuid.UUID, params ProductParams) (*models.Product, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if params.CategoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id required")
	}

	allowed, err := s.sellers.CanSell(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller is not approved to list products")
	}

	category, err := s.repo.FindCategoryByID(ctx, params.CategoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category")
	}

	product := &models.Product{
		SellerID:    sellerID,
		CategoryID:  params.CategoryID,
		Name:        name,
		Slug:        slugify(name),
		Description: params.Description,
		Status:      enums.ProductStatusActive,
		IsFeatured:  params.IsFeatured,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			// slug collision; retry once with a random suffix
			product.Slug = product.Slug + "-" + uuid.NewString()[:8]
			if retryErr := s.repo.CreateProduct(ctx, product); retryErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, retryErr, "create product")
			}
			return product, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug required")
	}
	product, err := s.repo.FindProductBySlug(ctx, slug)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product by slug")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, params ListProductsParams) (*ListProductsResult, error) {
	query := listProductsParams{
		Limit:        params.Limit,
		SellerID:     params.SellerID,
		CategoryID:   params.CategoryID,
		Status:       params.Status,
		Query:        params.Query,
		FeaturedOnly: params.FeaturedOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListProducts(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListProductsResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) UpdateProduct(ctx context.Context, sellerID, productID uuid.UUID, params ProductParams) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if params.CategoryID != uuid.Nil && params.CategoryID != product.CategoryID {
		category, err := s.repo.FindCategoryByID(ctx, params.CategoryID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find category")
		}
		if category == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category")
		}
		product.CategoryID = params.CategoryID
	}
	product.Name = name
	product.Description = params.Description
	product.IsFeatured = params.IsFeatured
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

// SetProductStatus is the moderation hook. Suspension and reinstatement go
// through here; sellers toggle active/inactive through the same path.
func (s *service) SetProductStatus(ctx context.Context, productID uuid.UUID, status enums.ProductStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown product status")
	}
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product")
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.Status == status {
		return nil
	}
	product.Status = status
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product status")
	}
	return nil
}

func (s *service) AddVariant(ctx context.Context, sellerID, productID uuid.UUID, params VariantParams) (*models.ProductVariant, error) {
	if _, err := s.ownedProduct(ctx, sellerID, productID); err != nil {
		return nil, err
	}
	if err := validateVariantParams(params); err != nil {
		return nil, err
	}

	variant := &models.ProductVariant{
		ProductID:  productID,
		SKU:        strings.TrimSpace(params.SKU),
		Price:      params.Price,
		Stock:      params.Stock,
		Attributes: params.Attributes,
	}
	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}
	return variant, nil
}

func (s *service) UpdateVariant(ctx context.Context, sellerID, variantID uuid.UUID, params VariantParams) (*models.ProductVariant, error) {
	variant, err := s.ownedVariant(ctx, sellerID, variantID)
	if err != nil {
		return nil, err
	}
	if err := validateVariantParams(params); err != nil {
		return nil, err
	}
	variant.SKU = strings.TrimSpace(params.SKU)
	variant.Price = params.Price
	variant.Stock = params.Stock
	variant.Attributes = params.Attributes
	if err := s.repo.UpdateVariant(ctx, variant); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant")
	}
	return variant, nil
}

func (s *service) RemoveVariant(ctx context.Context, sellerID, variantID uuid.UUID) error {
	if _, err := s.ownedVariant(ctx, sellerID, variantID); err != nil {
		return err
	}
	affected, err := s.repo.DeleteVariant(ctx, variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variant")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return nil
}

func (s *service) ownedProduct(ctx context.Context, sellerID, productID uuid.UUID) (*models.Product, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another seller")
	}
	return product, nil
}

func (s *service) ownedVariant(ctx context.Context, sellerID, variantID uuid.UUID) (*models.ProductVariant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	variant, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find variant")
	}
	if variant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	if _, err := s.ownedProduct(ctx, sellerID, variant.ProductID); err != nil {
		return nil, err
	}
	return variant, nil
}

func validateVariantParams(params VariantParams) error {
	if strings.TrimSpace(params.SKU) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	if !params.Price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if params.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
