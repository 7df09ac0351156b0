package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/catalog"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

// Service drives the order lifecycle after checkout: buyer reads and
// cancellation, seller fulfillment updates, admin transitions, and the
// settlement hook payments calls when a charge clears.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Order, error)
	GetSubOrder(ctx context.Context, sellerID, subOrderID uuid.UUID) (*models.SellerSubOrder, error)
	ListSubOrders(ctx context.Context, params ListSubOrdersParams) (*ListSubOrdersResult, error)
	UpdateSubOrderStatus(ctx context.Context, params UpdateSubOrderStatusParams) (*models.SellerSubOrder, error)
	MarkPaidInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error)
	CancelExpired(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      Repository
	inventory catalog.Repository
	tx        txRunner
	events    outboxPublisher
}

// NewService constructs an orders service with the provided dependencies.
func NewService(repo Repository, inventory catalog.Repository, tx txRunner, events outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, inventory: inventory, tx: tx, events: events}, nil
}

// ListParams filters a buyer's order history.
type ListParams struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult is one page of orders.
type ListResult struct {
	Items  []models.Order
	Cursor string
}

// UpdateStatusParams describes an admin-driven order transition.
type UpdateStatusParams struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	ActorID uuid.UUID
}

// ListSubOrdersParams filters a seller's fulfillment queue.
type ListSubOrdersParams struct {
	SellerID uuid.UUID
	Status   *enums.SubOrderStatus
	Limit    int
	Cursor   string
}

// ListSubOrdersResult is one page of seller sub orders.
type ListSubOrdersResult struct {
	Items  []models.SellerSubOrder
	Cursor string
}

// UpdateSubOrderStatusParams describes a seller advancing their slice.
type UpdateSubOrderStatusParams struct {
	SubOrderID uuid.UUID
	SellerID   uuid.UUID
	Target     enums.SubOrderStatus
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// GetOwned fetches an order and rejects readers who are not the buyer.
func (s *service) GetOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	query := listOrdersParams{
		Limit:  params.Limit,
		UserID: params.UserID,
		Status: params.Status,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Cancel lets the buyer abandon an order that has not been paid. Reserved
// stock goes back to the variants and every sub order is cancelled with it.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
		}

		if err := s.cancelLocked(ctx, tx, repo, order, time.Now().UTC()); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleBuyer.String()},
			Data: payloads.OrderStateChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: enums.OrderStatusPending,
				ToStatus:   enums.OrderStatusCancelled,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order cancelled")
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// cancelLocked flips a locked pending order to CANCELLED, returns its stock
// and cancels the pending sub orders. Callers hold the row lock.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) error {
	items, err := repo.FindLineItems(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line items")
	}
	subOrders, err := repo.FindSubOrdersByOrderID(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub orders")
	}
	// Slices a seller already cancelled have had their stock returned.
	alreadyReturned := make(map[uuid.UUID]bool, len(subOrders))
	for _, subOrder := range subOrders {
		if subOrder.Status == enums.SubOrderStatusCancelled {
			alreadyReturned[subOrder.ID] = true
		}
	}
	inventory := s.inventory.WithTx(tx)
	for _, item := range items {
		if item.SubOrderID != nil && alreadyReturned[*item.SubOrderID] {
			continue
		}
		if err := inventory.RestoreStock(ctx, item.VariantID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}

	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	if err := repo.Update(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	for _, from := range []enums.SubOrderStatus{enums.SubOrderStatusPending, enums.SubOrderStatusProcessing} {
		if err := repo.UpdateSubOrdersStatus(ctx, order.ID, from, enums.SubOrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sub orders")
		}
	}
	return nil
}

// UpdateStatus applies an admin transition to the order. Moves outside the
// lifecycle table are rejected; cancelling a not-yet-shipped order returns
// its stock the same way a buyer cancellation does.
func (s *service) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Order, error) {
	if !params.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, params.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		from := order.Status
		if !from.CanTransitionTo(params.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move order from "+from.String()+" to "+params.Target.String())
		}

		now := time.Now().UTC()
		switch params.Target {
		case enums.OrderStatusCancelled:
			if err := s.cancelLocked(ctx, tx, repo, order, now); err != nil {
				return err
			}
		case enums.OrderStatusPaid:
			order.Status = params.Target
			order.PaidAt = &now
			if err := repo.Update(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
			}
		default:
			order.Status = params.Target
			if err := repo.Update(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: params.ActorID, Role: enums.RoleAdmin.String()},
			Data: payloads.OrderStateChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: from,
				ToStatus:   params.Target,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order state changed")
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) GetSubOrder(ctx context.Context, sellerID, subOrderID uuid.UUID) (*models.SellerSubOrder, error) {
	subOrder, err := s.repo.FindSubOrderByID(ctx, subOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find sub order")
	}
	if subOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub order not found")
	}
	if subOrder.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sub order belongs to another seller")
	}
	return subOrder, nil
}

func (s *service) ListSubOrders(ctx context.Context, params ListSubOrdersParams) (*ListSubOrdersResult, error) {
	if params.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	query := listSubOrdersParams{
		Limit:    params.Limit,
		SellerID: params.SellerID,
		Status:   params.Status,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListSubOrders(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sub orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListSubOrdersResult{Items: rows, Cursor: cursor}, nil
}

// UpdateSubOrderStatus advances a seller's slice and rolls the aggregate up
// to the parent order when every slice has moved.
func (s *service) UpdateSubOrderStatus(ctx context.Context, params UpdateSubOrderStatusParams) (*models.SellerSubOrder, error) {
	if !params.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sub order status")
	}

	var updated *models.SellerSubOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrder, err := repo.FindSubOrderForUpdate(ctx, params.SubOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find sub order")
		}
		if subOrder == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sub order not found")
		}
		if subOrder.SellerID != params.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sub order belongs to another seller")
		}
		from := subOrder.Status
		if !from.CanTransitionTo(params.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move sub order from "+from.String()+" to "+params.Target.String())
		}

		order, err := repo.FindByIDForUpdate(ctx, subOrder.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeDependency, "sub order has no parent order")
		}
		if order.Status == enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been paid")
		}

		now := time.Now().UTC()
		subOrder.Status = params.Target
		if params.Target == enums.SubOrderStatusShipped {
			subOrder.ShippedAt = &now
		}
		if params.Target == enums.SubOrderStatusCancelled {
			items, err := repo.FindSubOrderLineItems(ctx, subOrder.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order items")
			}
			inventory := s.inventory.WithTx(tx)
			for _, item := range items {
				if err := inventory.RestoreStock(ctx, item.VariantID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
				}
			}
		}
		if err := repo.UpdateSubOrder(ctx, subOrder); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sub order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSubOrderStateChanged,
			AggregateType: enums.AggregateSubOrder,
			AggregateID:   subOrder.ID,
			Actor:         &outbox.ActorRef{UserID: params.SellerID, Role: enums.RoleSeller.String()},
			Data: payloads.SubOrderStateChangedEvent{
				SubOrderID: subOrder.ID,
				OrderID:    subOrder.OrderID,
				SellerID:   subOrder.SellerID,
				FromStatus: from,
				ToStatus:   params.Target,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit sub order state changed")
		}

		if err := s.rollUpOrderStatus(ctx, tx, repo, order); err != nil {
			return err
		}

		updated = subOrder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// rollUpOrderStatus recomputes the parent order status from its sub orders.
// The order follows the slowest active slice; cancelled slices are ignored
// unless every slice was cancelled.
func (s *service) rollUpOrderStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	subOrders, err := repo.FindSubOrdersByOrderID(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub orders")
	}

	target := aggregateStatus(order.Status, subOrders)
	if target == order.Status {
		return nil
	}

	// Transitions are single-step, so walk the fulfillment ladder until the
	// aggregate is reached or the next hop is not allowed.
	from := order.Status
	for order.Status != target {
		next := nextFulfillmentStep(order.Status, target)
		if next == order.Status || !order.Status.CanTransitionTo(next) {
			break
		}
		order.Status = next
	}
	if order.Status == from {
		return nil
	}
	target = order.Status
	if err := repo.Update(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStateChangedEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			FromStatus: from,
			ToStatus:   target,
		},
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order state changed")
	}
	return nil
}

var fulfillmentLadder = []enums.OrderStatus{
	enums.OrderStatusPaid,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
	enums.OrderStatusDelivered,
}

func nextFulfillmentStep(current, target enums.OrderStatus) enums.OrderStatus {
	if target == enums.OrderStatusCancelled {
		return enums.OrderStatusCancelled
	}
	for i, status := range fulfillmentLadder {
		if status == current && i+1 < len(fulfillmentLadder) {
			return fulfillmentLadder[i+1]
		}
	}
	return current
}

func aggregateStatus(current enums.OrderStatus, subOrders []models.SellerSubOrder) enums.OrderStatus {
	if len(subOrders) == 0 {
		return current
	}

	active := 0
	processing, shipped, delivered := 0, 0, 0
	for _, subOrder := range subOrders {
		if subOrder.Status == enums.SubOrderStatusCancelled {
			continue
		}
		active++
		switch subOrder.Status {
		case enums.SubOrderStatusProcessing:
			processing++
		case enums.SubOrderStatusShipped:
			shipped++
		case enums.SubOrderStatusDelivered:
			delivered++
		}
	}

	switch {
	case active == 0:
		return enums.OrderStatusCancelled
	case delivered == active:
		return enums.OrderStatusDelivered
	case shipped+delivered == active:
		return enums.OrderStatusShipped
	case processing+shipped+delivered > 0:
		return enums.OrderStatusProcessing
	default:
		return current
	}
}

// MarkPaidInTx settles a pending order inside the caller's transaction. The
// payment reconciler calls it while holding the payment row lock.
func (s *service) MarkPaidInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	order.Status = enums.OrderStatusPaid
	order.PaidAt = &paidAt
	if err := repo.Update(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return order, nil
}

// CancelExpired sweeps pending orders older than the cutoff. Each order is
// re-checked under its row lock so an order paid mid-sweep survives.
func (s *service) CancelExpired(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, olderThan, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	expired := 0
	for _, candidate := range stale {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
			}
			if order == nil || order.Status != enums.OrderStatusPending {
				return nil
			}

			now := time.Now().UTC()
			if err := s.cancelLocked(ctx, tx, repo, order, now); err != nil {
				return err
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderExpiredEvent{
					OrderID:   order.ID,
					UserID:    order.UserID,
					ExpiredAt: now,
				},
			}
			if err := s.events.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order expired")
			}

			expired++
			return nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}
