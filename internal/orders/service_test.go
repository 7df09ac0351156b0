package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/catalog"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type fakeInventory struct {
	catalog.Repository

	restored map[uuid.UUID]int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{restored: make(map[uuid.UUID]int)}
}

func (f *fakeInventory) WithTx(tx *gorm.DB) catalog.Repository { return f }

func (f *fakeInventory) RestoreStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	f.restored[variantID] += quantity
	return nil
}

type fakeRepository struct {
	orders    map[uuid.UUID]*models.Order
	subOrders map[uuid.UUID]*models.SellerSubOrder
	lineItems []models.OrderLineItem
	stale     []models.Order
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		orders:    make(map[uuid.UUID]*models.Order),
		subOrders: make(map[uuid.UUID]*models.SellerSubOrder),
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, order *models.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeRepository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	f.lineItems = append(f.lineItems, items...)
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.orders[id], nil
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.orders[id], nil
}

func (f *fakeRepository) List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, order *models.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeRepository) FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	for _, item := range f.lineItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeRepository) FindSubOrderLineItems(ctx context.Context, subOrderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	for _, item := range f.lineItems {
		if item.SubOrderID != nil && *item.SubOrderID == subOrderID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeRepository) FindSubOrderByID(ctx context.Context, id uuid.UUID) (*models.SellerSubOrder, error) {
	return f.subOrders[id], nil
}

func (f *fakeRepository) FindSubOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.SellerSubOrder, error) {
	return f.subOrders[id], nil
}

func (f *fakeRepository) FindSubOrdersByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SellerSubOrder, error) {
	var subOrders []models.SellerSubOrder
	for _, subOrder := range f.subOrders {
		if subOrder.OrderID == orderID {
			subOrders = append(subOrders, *subOrder)
		}
	}
	return subOrders, nil
}

func (f *fakeRepository) ListSubOrders(ctx context.Context, params listSubOrdersParams) ([]models.SellerSubOrder, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeRepository) UpdateSubOrder(ctx context.Context, subOrder *models.SellerSubOrder) error {
	f.subOrders[subOrder.ID] = subOrder
	return nil
}

func (f *fakeRepository) UpdateSubOrdersStatus(ctx context.Context, orderID uuid.UUID, from, to enums.SubOrderStatus) error {
	for _, subOrder := range f.subOrders {
		if subOrder.OrderID == orderID && subOrder.Status == from {
			subOrder.Status = to
		}
	}
	return nil
}

func (f *fakeRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	return f.stale, nil
}

func buildTestService(t *testing.T, repo *fakeRepository) (Service, *fakeInventory, *stubOutboxPublisher) {
	t.Helper()
	inventory := newFakeInventory()
	events := &stubOutboxPublisher{}
	svc, err := NewService(repo, inventory, stubTxRunner{}, events)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, inventory, events
}

func seedOrder(repo *fakeRepository, status enums.OrderStatus) *models.Order {
	order := &models.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: status,
	}
	repo.orders[order.ID] = order
	return order
}

func seedSubOrder(repo *fakeRepository, orderID uuid.UUID, status enums.SubOrderStatus) *models.SellerSubOrder {
	subOrder := &models.SellerSubOrder{
		ID:       uuid.New(),
		OrderID:  orderID,
		SellerID: uuid.New(),
		Status:   status,
	}
	repo.subOrders[subOrder.ID] = subOrder
	return subOrder
}

func seedLineItem(repo *fakeRepository, orderID uuid.UUID, subOrderID *uuid.UUID, quantity int) models.OrderLineItem {
	item := models.OrderLineItem{
		ID:         uuid.New(),
		OrderID:    orderID,
		SubOrderID: subOrderID,
		VariantID:  uuid.New(),
		Quantity:   quantity,
	}
	repo.lineItems = append(repo.lineItems, item)
	return item
}

func TestServiceCancelRestoresStockAndCancelsSubOrders(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPending)
	subOrder := seedSubOrder(repo, order.ID, enums.SubOrderStatusPending)
	itemA := seedLineItem(repo, order.ID, &subOrder.ID, 2)
	itemB := seedLineItem(repo, order.ID, &subOrder.ID, 3)
	svc, inventory, events := buildTestService(t, repo)

	cancelled, err := svc.Cancel(context.Background(), order.UserID, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled_at to be set")
	}
	if inventory.restored[itemA.VariantID] != 2 || inventory.restored[itemB.VariantID] != 3 {
		t.Fatalf("expected stock restored, got %v", inventory.restored)
	}
	if repo.subOrders[subOrder.ID].Status != enums.SubOrderStatusCancelled {
		t.Fatalf("expected sub order cancelled, got %s", repo.subOrders[subOrder.ID].Status)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("expected one order_cancelled event, got %+v", events.events)
	}
}

func TestServiceCancelRejectsNonOwner(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPending)
	svc, _, _ := buildTestService(t, repo)

	_, err := svc.Cancel(context.Background(), uuid.New(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestServiceCancelRejectsPaidOrder(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPaid)
	svc, _, _ := buildTestService(t, repo)

	_, err := svc.Cancel(context.Background(), order.UserID, order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestServiceUpdateStatusRejectsIllegalTransition(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPending)
	svc, _, _ := buildTestService(t, repo)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		OrderID: order.ID,
		Target:  enums.OrderStatusDelivered,
		ActorID: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestServiceUpdateStatusPaidSetsPaidAt(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPending)
	svc, _, events := buildTestService(t, repo)

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		OrderID: order.ID,
		Target:  enums.OrderStatusPaid,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != enums.OrderStatusPaid || updated.PaidAt == nil {
		t.Fatalf("expected paid order with paid_at, got %+v", updated)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventOrderStateChanged {
		t.Fatalf("expected order_state_changed event, got %+v", events.events)
	}
}

func TestServiceUpdateSubOrderStatusShipsAndRollsUp(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPaid)
	seedSubOrder(repo, order.ID, enums.SubOrderStatusShipped)
	processing := seedSubOrder(repo, order.ID, enums.SubOrderStatusProcessing)
	svc, _, events := buildTestService(t, repo)

	updated, err := svc.UpdateSubOrderStatus(context.Background(), UpdateSubOrderStatusParams{
		SubOrderID: processing.ID,
		SellerID:   processing.SellerID,
		Target:     enums.SubOrderStatusShipped,
	})
	if err != nil {
		t.Fatalf("update sub order: %v", err)
	}

	if updated.Status != enums.SubOrderStatusShipped || updated.ShippedAt == nil {
		t.Fatalf("expected shipped sub order, got %+v", updated)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusShipped {
		t.Fatalf("expected parent order shipped, got %s", repo.orders[order.ID].Status)
	}
	if len(events.events) != 2 {
		t.Fatalf("expected sub order and order events, got %+v", events.events)
	}
	if events.events[0].EventType != enums.EventSubOrderStateChanged {
		t.Fatalf("expected sub_order_state_changed first, got %s", events.events[0].EventType)
	}
	if events.events[1].EventType != enums.EventOrderStateChanged {
		t.Fatalf("expected order_state_changed second, got %s", events.events[1].EventType)
	}
}

func TestServiceUpdateSubOrderStatusRejectsOtherSeller(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPaid)
	subOrder := seedSubOrder(repo, order.ID, enums.SubOrderStatusPending)
	svc, _, _ := buildTestService(t, repo)

	_, err := svc.UpdateSubOrderStatus(context.Background(), UpdateSubOrderStatusParams{
		SubOrderID: subOrder.ID,
		SellerID:   uuid.New(),
		Target:     enums.SubOrderStatusProcessing,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestServiceUpdateSubOrderStatusRejectsUnpaidOrder(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPending)
	subOrder := seedSubOrder(repo, order.ID, enums.SubOrderStatusPending)
	svc, _, _ := buildTestService(t, repo)

	_, err := svc.UpdateSubOrderStatus(context.Background(), UpdateSubOrderStatusParams{
		SubOrderID: subOrder.ID,
		SellerID:   subOrder.SellerID,
		Target:     enums.SubOrderStatusProcessing,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestServiceUpdateSubOrderCancelRestoresSliceStock(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPaid)
	cancelling := seedSubOrder(repo, order.ID, enums.SubOrderStatusPending)
	other := seedSubOrder(repo, order.ID, enums.SubOrderStatusPending)
	cancelItem := seedLineItem(repo, order.ID, &cancelling.ID, 4)
	otherItem := seedLineItem(repo, order.ID, &other.ID, 1)
	svc, inventory, _ := buildTestService(t, repo)

	_, err := svc.UpdateSubOrderStatus(context.Background(), UpdateSubOrderStatusParams{
		SubOrderID: cancelling.ID,
		SellerID:   cancelling.SellerID,
		Target:     enums.SubOrderStatusCancelled,
	})
	if err != nil {
		t.Fatalf("cancel sub order: %v", err)
	}

	if inventory.restored[cancelItem.VariantID] != 4 {
		t.Fatalf("expected slice stock restored, got %v", inventory.restored)
	}
	if inventory.restored[otherItem.VariantID] != 0 {
		t.Fatalf("expected other slice untouched, got %v", inventory.restored)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusPaid {
		t.Fatalf("expected parent order unchanged, got %s", repo.orders[order.ID].Status)
	}
}

func TestServiceMarkPaidInTx(t *testing.T) {
	repo := newFakeRepository()
	order := seedOrder(repo, enums.OrderStatusPending)
	svc, _, _ := buildTestService(t, repo)

	paidAt := time.Now().UTC()
	paid, err := svc.MarkPaidInTx(context.Background(), nil, order.ID, paidAt)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != enums.OrderStatusPaid || paid.PaidAt == nil || !paid.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paid order, got %+v", paid)
	}

	_, err = svc.MarkPaidInTx(context.Background(), nil, order.ID, paidAt)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on replay, got %v", err)
	}
}

func TestServiceCancelExpiredSkipsOrdersPaidMidSweep(t *testing.T) {
	repo := newFakeRepository()
	stale := seedOrder(repo, enums.OrderStatusPending)
	racedToPaid := seedOrder(repo, enums.OrderStatusPaid)
	repo.stale = []models.Order{*stale, *racedToPaid}
	svc, _, events := buildTestService(t, repo)

	expired, err := svc.CancelExpired(context.Background(), time.Now().UTC(), 50)
	if err != nil {
		t.Fatalf("cancel expired: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected one expired order, got %d", expired)
	}
	if repo.orders[stale.ID].Status != enums.OrderStatusCancelled {
		t.Fatalf("expected stale order cancelled, got %s", repo.orders[stale.ID].Status)
	}
	if repo.orders[racedToPaid.ID].Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid order untouched, got %s", repo.orders[racedToPaid.ID].Status)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventOrderExpired {
		t.Fatalf("expected one order_expired event, got %+v", events.events)
	}
}
