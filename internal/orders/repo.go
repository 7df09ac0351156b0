package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

// Repository exposes persistence helpers for orders and seller sub orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error)
	Update(ctx context.Context, order *models.Order) error
	FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	FindSubOrderLineItems(ctx context.Context, subOrderID uuid.UUID) ([]models.OrderLineItem, error)
	FindSubOrderByID(ctx context.Context, id uuid.UUID) (*models.SellerSubOrder, error)
	FindSubOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.SellerSubOrder, error)
	FindSubOrdersByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SellerSubOrder, error)
	ListSubOrders(ctx context.Context, params listSubOrdersParams) ([]models.SellerSubOrder, *pagination.Cursor, error)
	UpdateSubOrder(ctx context.Context, subOrder *models.SellerSubOrder) error
	UpdateSubOrdersStatus(ctx context.Context, orderID uuid.UUID, from, to enums.SubOrderStatus) error
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listOrdersParams struct {
	Limit  int
	Cursor *pagination.Cursor
	UserID uuid.UUID
	Status *enums.OrderStatus
}

type listSubOrdersParams struct {
	Limit    int
	Cursor   *pagination.Cursor
	SellerID uuid.UUID
	Status   *enums.SubOrderStatus
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("LineItems").Create(order).Error
}

func (r *repositoryImpl) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row without preloading associations.
func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", params.UserID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, nil, err
	}

	if len(orders) > normalized {
		next := orders[normalized]
		orders = orders[:normalized]
		return orders, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return orders, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Omit("LineItems", "SubOrders", "Payments").
		Save(order).Error
}

func (r *repositoryImpl) FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repositoryImpl) FindSubOrderLineItems(ctx context.Context, subOrderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("sub_order_id = ?", subOrderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repositoryImpl) FindSubOrderByID(ctx context.Context, id uuid.UUID) (*models.SellerSubOrder, error) {
	var subOrder models.SellerSubOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&subOrder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subOrder, nil
}

func (r *repositoryImpl) FindSubOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.SellerSubOrder, error) {
	var subOrder models.SellerSubOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&subOrder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subOrder, nil
}

func (r *repositoryImpl) FindSubOrdersByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SellerSubOrder, error) {
	var subOrders []models.SellerSubOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&subOrders).Error
	if err != nil {
		return nil, err
	}
	return subOrders, nil
}

func (r *repositoryImpl) ListSubOrders(ctx context.Context, params listSubOrdersParams) ([]models.SellerSubOrder, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Where("seller_id = ?", params.SellerID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var subOrders []models.SellerSubOrder
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&subOrders).Error; err != nil {
		return nil, nil, err
	}

	if len(subOrders) > normalized {
		next := subOrders[normalized]
		subOrders = subOrders[:normalized]
		return subOrders, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return subOrders, nil, nil
}

func (r *repositoryImpl) UpdateSubOrder(ctx context.Context, subOrder *models.SellerSubOrder) error {
	return r.db.WithContext(ctx).
		Omit("Items").
		Save(subOrder).Error
}

// UpdateSubOrdersStatus moves every sub order of the order still in the from
// status to the target status in one statement.
func (r *repositoryImpl) UpdateSubOrdersStatus(ctx context.Context, orderID uuid.UUID, from, to enums.SubOrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Where("order_id = ? AND status = ?", orderID, from).
		UpdateColumn("status", to).Error
}

// ListStalePending returns pending orders created before the cutoff, oldest
// first, for the TTL sweep.
func (r *repositoryImpl) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
