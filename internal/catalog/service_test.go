package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

type fakeRepository struct {
	createCategoryFn   func(ctx context.Context, category *models.Category) error
	findCategoryByIDFn func(ctx context.Context, id uuid.UUID) (*models.Category, error)
	createProductFn    func(ctx context.Context, product *models.Product) error
	findProductByIDFn  func(ctx context.Context, id uuid.UUID) (*models.Product, error)
	updateProductFn    func(ctx context.Context, product *models.Product) error
	createVariantFn    func(ctx context.Context, variant *models.ProductVariant) error
	findVariantByIDFn  func(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	listProductsFn     func(ctx context.Context, params listProductsParams) ([]models.Product, *pagination.Cursor, error)
	lookupVariantsFn   func(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]VariantLookup, error)
	decrementStockFn   func(ctx context.Context, variantID uuid.UUID, quantity int) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	if f.createCategoryFn != nil {
		return f.createCategoryFn(ctx, category)
	}
	return nil
}

func (f *fakeRepository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if f.findCategoryByIDFn != nil {
		return f.findCategoryByIDFn(ctx, id)
	}
	return &models.Category{ID: id, Name: "General"}, nil
}

func (f *fakeRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	return nil, nil
}

func (f *fakeRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	return nil
}

func (f *fakeRepository) DeleteCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	return 1, nil
}

func (f *fakeRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if f.createProductFn != nil {
		return f.createProductFn(ctx, product)
	}
	return nil
}

func (f *fakeRepository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if f.findProductByIDFn != nil {
		return f.findProductByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRepository) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return nil, nil
}

func (f *fakeRepository) ListProducts(ctx context.Context, params listProductsParams) ([]models.Product, *pagination.Cursor, error) {
	if f.listProductsFn != nil {
		return f.listProductsFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	if f.updateProductFn != nil {
		return f.updateProductFn(ctx, product)
	}
	return nil
}

func (f *fakeRepository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	if f.createVariantFn != nil {
		return f.createVariantFn(ctx, variant)
	}
	return nil
}

func (f *fakeRepository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	if f.findVariantByIDFn != nil {
		return f.findVariantByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRepository) UpdateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return nil
}

func (f *fakeRepository) DeleteVariant(ctx context.Context, id uuid.UUID) (int64, error) {
	return 1, nil
}

func (f *fakeRepository) LookupVariants(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]VariantLookup, error) {
	if f.lookupVariantsFn != nil {
		return f.lookupVariantsFn(ctx, ids, forUpdate)
	}
	return nil, nil
}

func (f *fakeRepository) DecrementStock(ctx context.Context, variantID uuid.UUID, quantity int) (int64, error) {
	if f.decrementStockFn != nil {
		return f.decrementStockFn(ctx, variantID, quantity)
	}
	return 1, nil
}

func (f *fakeRepository) RestoreStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	return nil
}

type fakeSellerDirectory struct {
	canSell bool
	err     error
}

func (f *fakeSellerDirectory) CanSell(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	return f.canSell, f.err
}

func newServiceWithRepo(repo Repository, sellers SellerDirectory) Service {
	if sellers == nil {
		sellers = &fakeSellerDirectory{canSell: true}
	}
	svc, _ := NewService(repo, sellers)
	return svc
}

func TestService_CreateProduct(t *testing.T) {
	sellerID := uuid.New()
	categoryID := uuid.New()
	var created *models.Product
	repo := &fakeRepository{
		createProductFn: func(ctx context.Context, product *models.Product) error {
			created = product
			return nil
		},
	}
	svc := newServiceWithRepo(repo, nil)

	product, err := svc.CreateProduct(context.Background(), sellerID, ProductParams{
		CategoryID: categoryID,
		Name:       "Wireless Mouse 2000",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created == nil {
		t.Fatal("expected product insert")
	}
	if product.Slug != "wireless-mouse-2000" {
		t.Fatalf("unexpected slug %q", product.Slug)
	}
	if product.Status != enums.ProductStatusActive {
		t.Fatalf("expected new product active, got %s", product.Status)
	}
}

func TestService_CreateProductSellerNotApproved(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, &fakeSellerDirectory{canSell: false})
	_, err := svc.CreateProduct(context.Background(), uuid.New(), ProductParams{
		CategoryID: uuid.New(),
		Name:       "Desk Lamp",
	})
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestService_CreateProductUnknownCategory(t *testing.T) {
	repo := &fakeRepository{
		findCategoryByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Category, error) {
			return nil, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	_, err := svc.CreateProduct(context.Background(), uuid.New(), ProductParams{
		CategoryID: uuid.New(),
		Name:       "Desk Lamp",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_UpdateProductOwnership(t *testing.T) {
	owner := uuid.New()
	product := &models.Product{ID: uuid.New(), SellerID: owner, Name: "Desk Lamp", CategoryID: uuid.New()}
	repo := &fakeRepository{
		findProductByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)

	_, err := svc.UpdateProduct(context.Background(), uuid.New(), product.ID, ProductParams{Name: "Desk Lamp v2"})
	if err == nil {
		t.Fatal("expected forbidden error for non owner")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	updated, err := svc.UpdateProduct(context.Background(), owner, product.ID, ProductParams{Name: "Desk Lamp v2"})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Name != "Desk Lamp v2" {
		t.Fatalf("expected renamed product, got %q", updated.Name)
	}
}

func TestService_AddVariantValidation(t *testing.T) {
	owner := uuid.New()
	product := &models.Product{ID: uuid.New(), SellerID: owner}
	repo := &fakeRepository{
		findProductByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)

	cases := map[string]VariantParams{
		"empty sku":      {SKU: " ", Price: decimal.NewFromInt(10)},
		"zero price":     {SKU: "SKU-1", Price: decimal.Zero},
		"negative stock": {SKU: "SKU-1", Price: decimal.NewFromInt(10), Stock: -1},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AddVariant(context.Background(), owner, product.ID, params)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_SetProductStatusNoopWhenUnchanged(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Status: enums.ProductStatusSuspended}
	repo := &fakeRepository{
		findProductByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		},
		updateProductFn: func(ctx context.Context, p *models.Product) error {
			t.Fatal("update must not run when status is unchanged")
			return nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	if err := svc.SetProductStatus(context.Background(), product.ID, enums.ProductStatusSuspended); err != nil {
		t.Fatalf("unexpected status error: %v", err)
	}
}

func TestService_ListProductsInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, nil)
	_, err := svc.ListProducts(context.Background(), ListProductsParams{Cursor: "nope"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Wireless Mouse 2000":  "wireless-mouse-2000",
		"  Café / Olla 5L  ":   "caf-olla-5l",
		"--Already--Slugged--": "already-slugged",
	}
	for input, want := range cases {
		if got := slugify(input); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", input, got, want)
		}
	}
}
