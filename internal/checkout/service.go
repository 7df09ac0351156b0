package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/catalog"
	"github.com/juan12312121/mercado-backend/internal/coupons"
	"github.com/juan12312121/mercado-backend/internal/orders"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ClearItemsInTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, itemIDs []uuid.UUID) error
}

type addressBook interface {
	OwnedAddress(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type couponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*coupons.Evaluation, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service assembles an order from the buyer's cart. Everything happens in one
// transaction: stock is locked and decremented, money is snapshotted, lines
// are split per seller and the cart is emptied.
type Service interface {
	Execute(ctx context.Context, params ExecuteParams) (*models.Order, error)
}

// ExecuteParams captures a checkout request.
type ExecuteParams struct {
	UserID     uuid.UUID
	AddressID  uuid.UUID
	CouponCode string
	Notes      string
}

type service struct {
	tx         txRunner
	cart       cartReader
	addresses  addressBook
	inventory  catalog.Repository
	ordersRepo orders.Repository
	coupons    couponEvaluator
	events     outboxPublisher
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cart cartReader,
	addresses addressBook,
	inventory catalog.Repository,
	ordersRepo orders.Repository,
	couponSvc couponEvaluator,
	events outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart service required")
	}
	if addresses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "address book required")
	}
	if inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if ordersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if couponSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon service required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{
		tx:         tx,
		cart:       cart,
		addresses:  addresses,
		inventory:  inventory,
		ordersRepo: ordersRepo,
		coupons:    couponSvc,
		events:     events,
	}, nil
}

func (s *service) Execute(ctx context.Context, params ExecuteParams) (*models.Order, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}

	cart, err := s.cart.Get(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	address, err := s.addresses.OwnedAddress(ctx, params.UserID, params.AddressID)
	if err != nil {
		return nil, err
	}

	var result *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		inventory := s.inventory.WithTx(tx)

		variantIDs := make([]uuid.UUID, 0, len(cart.Items))
		itemIDs := make([]uuid.UUID, 0, len(cart.Items))
		for _, item := range cart.Items {
			variantIDs = append(variantIDs, item.VariantID)
			itemIDs = append(itemIDs, item.ID)
		}
		lookups, err := inventory.LookupVariants(ctx, variantIDs, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variants")
		}
		byVariant := make(map[uuid.UUID]catalog.VariantLookup, len(lookups))
		for _, lookup := range lookups {
			byVariant[lookup.VariantID] = lookup
		}

		orderID := uuid.New()
		subtotal := decimal.Zero
		lineItems := make([]models.OrderLineItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			lookup, ok := byVariant[item.VariantID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "a cart item is no longer available")
			}
			if !lookup.ProductStatus.Purchasable() {
				return pkgerrors.New(pkgerrors.CodeValidation, lookup.ProductName+" is not available for purchase")
			}
			if lookup.Stock < item.Quantity {
				return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock for "+lookup.ProductName)
			}

			lineTotal := lookup.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			lineItems = append(lineItems, models.OrderLineItem{
				ID:          uuid.New(),
				OrderID:     orderID,
				SellerID:    lookup.SellerID,
				VariantID:   lookup.VariantID,
				ProductName: lookup.ProductName,
				SKU:         lookup.SKU,
				UnitPrice:   lookup.Price,
				Quantity:    item.Quantity,
				LineTotal:   lineTotal,
			})
		}

		order := &models.Order{
			ID:       orderID,
			UserID:   params.UserID,
			Status:   enums.OrderStatusPending,
			Currency: enums.CurrencyMXN,
			Subtotal: subtotal,

			ShippingLine1:      address.Line1,
			ShippingLine2:      address.Line2,
			ShippingCity:       address.City,
			ShippingState:      address.State,
			ShippingPostalCode: address.PostalCode,
			ShippingCountry:    address.Country,
		}
		if notes := strings.TrimSpace(params.Notes); notes != "" {
			order.Notes = &notes
		}

		discount := decimal.Zero
		code := strings.TrimSpace(params.CouponCode)
		if code != "" {
			evaluation, err := s.coupons.Evaluate(ctx, code, subtotal, time.Now().UTC())
			if err != nil {
				return err
			}
			discount = evaluation.Discount
			order.CouponID = &evaluation.Coupon.ID
			order.CouponCode = &evaluation.Coupon.Code
		}
		order.DiscountAmount = discount
		order.ShippingCost = decimal.Zero
		order.Total = subtotal.Sub(discount).Add(order.ShippingCost)

		order.SubOrders = buildSubOrders(orderID, lineItems)

		for _, item := range lineItems {
			affected, err := inventory.DecrementStock(ctx, item.VariantID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock for "+item.ProductName)
			}
		}

		ordersRepo := s.ordersRepo.WithTx(tx)
		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := ordersRepo.CreateLineItems(ctx, lineItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}
		order.LineItems = lineItems

		// Only the snapshotted rows go; an item added to the cart after the
		// snapshot was taken survives checkout.
		if err := s.cart.ClearItemsInTx(ctx, tx, cart.ID, itemIDs); err != nil {
			return err
		}

		subOrderIDs := make([]uuid.UUID, 0, len(order.SubOrders))
		for _, subOrder := range order.SubOrders {
			subOrderIDs = append(subOrderIDs, subOrder.ID)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: params.UserID, Role: enums.RoleBuyer.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				SubOrderIDs: subOrderIDs,
				Total:       order.Total,
				CouponCode:  order.CouponCode,
			},
			Version: 1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildSubOrders partitions line items per seller and stamps each line with
// its sub order id. Line order follows the cart, sub orders follow first
// appearance of the seller.
func buildSubOrders(orderID uuid.UUID, lineItems []models.OrderLineItem) []models.SellerSubOrder {
	index := make(map[uuid.UUID]int)
	subOrders := make([]models.SellerSubOrder, 0)
	for i := range lineItems {
		sellerID := lineItems[i].SellerID
		pos, ok := index[sellerID]
		if !ok {
			pos = len(subOrders)
			index[sellerID] = pos
			subOrders = append(subOrders, models.SellerSubOrder{
				ID:       uuid.New(),
				OrderID:  orderID,
				SellerID: sellerID,
				Status:   enums.SubOrderStatusPending,
				Subtotal: decimal.Zero,
			})
		}
		subOrderID := subOrders[pos].ID
		lineItems[i].SubOrderID = &subOrderID
		subOrders[pos].Subtotal = subOrders[pos].Subtotal.Add(lineItems[i].LineTotal)
	}
	return subOrders
}
