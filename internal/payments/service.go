package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/metrics"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderGateway interface {
	GetOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	MarkPaidInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) (*models.Order, error)
}

type couponRedeemer interface {
	RecordUse(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service orchestrates payment collection: it opens hosted checkouts and
// settles orders when gateway webhooks come back.
type Service interface {
	Initiate(ctx context.Context, params InitiateParams) (*models.Payment, error)
	Reconcile(ctx context.Context, params ReconcileParams) error
	Get(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error)
	ListForOrder(ctx context.Context, userID, orderID uuid.UUID) ([]models.Payment, error)
}

// InitiateParams describes a buyer starting a payment attempt.
type InitiateParams struct {
	UserID   uuid.UUID
	OrderID  uuid.UUID
	Provider enums.PaymentProvider
}

// ReconcileParams carries a normalized webhook outcome. ExternalRef is the
// provider-side id; OrderID is the fallback correlation when the provider
// reports against the order instead of the stored ref.
type ReconcileParams struct {
	Provider    enums.PaymentProvider
	ExternalRef string
	OrderID     uuid.UUID
	Succeeded   bool
	FailureCode string
}

type service struct {
	repo      Repository
	orders    orderGateway
	coupons   couponRedeemer
	providers map[enums.PaymentProvider]CheckoutProvider
	tx        txRunner
	events    outboxPublisher
	metrics   *metrics.PaymentMetrics
}

// NewService constructs the payment orchestrator. At least one checkout
// provider must be registered.
func NewService(
	repo Repository,
	orders orderGateway,
	coupons couponRedeemer,
	providers []CheckoutProvider,
	tx txRunner,
	events outboxPublisher,
	paymentMetrics *metrics.PaymentMetrics,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	}
	if coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon service required")
	}
	if len(providers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "at least one checkout provider required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}

	registry := make(map[enums.PaymentProvider]CheckoutProvider, len(providers))
	for _, provider := range providers {
		registry[provider.Name()] = provider
	}
	return &service{
		repo:      repo,
		orders:    orders,
		coupons:   coupons,
		providers: registry,
		tx:        tx,
		events:    events,
		metrics:   paymentMetrics,
	}, nil
}

// Initiate opens a hosted checkout for a pending order. Nothing is persisted
// unless the gateway accepted the session.
func (s *service) Initiate(ctx context.Context, params InitiateParams) (*models.Payment, error) {
	if !params.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment provider")
	}
	provider, ok := s.providers[params.Provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment provider not enabled")
	}

	order, err := s.orders.GetOwned(ctx, params.UserID, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	checkout, err := provider.CreateCheckout(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		Provider:    params.Provider,
		Status:      enums.PaymentStatusPending,
		Amount:      order.Total,
		Currency:    order.Currency,
		ExternalRef: &checkout.ExternalRef,
		CheckoutURL: &checkout.URL,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return payment, nil
}

// Reconcile settles one webhook outcome. Re-deliveries of a settled payment
// are no-ops; the payment row lock serializes concurrent deliveries.
func (s *service) Reconcile(ctx context.Context, params ReconcileParams) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.locatePayment(ctx, repo, params)
		if err != nil {
			return err
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if payment.Status.IsFinal() {
			return nil
		}

		if params.Succeeded {
			return s.settle(ctx, tx, repo, payment, params)
		}
		return s.fail(ctx, tx, repo, payment, params)
	})
	if err != nil {
		return err
	}
	return nil
}

func (s *service) locatePayment(ctx context.Context, repo Repository, params ReconcileParams) (*models.Payment, error) {
	if params.ExternalRef != "" {
		payment, err := repo.FindByExternalRefForUpdate(ctx, params.Provider, params.ExternalRef)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment")
		}
		if payment != nil {
			return payment, nil
		}
	}
	if params.OrderID != uuid.Nil {
		payment, err := repo.FindPendingByOrderForUpdate(ctx, params.OrderID, params.Provider)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment")
		}
		return payment, nil
	}
	return nil, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, repo Repository, payment *models.Payment, params ReconcileParams) error {
	now := time.Now().UTC()
	payment.Status = enums.PaymentStatusCompleted
	payment.CompletedAt = &now
	if params.ExternalRef != "" {
		payment.ExternalRef = &params.ExternalRef
	}
	if err := repo.Update(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}

	order, err := s.orders.MarkPaidInTx(ctx, tx, payment.OrderID, now)
	if err != nil {
		return err
	}
	if order.CouponID != nil {
		if err := s.coupons.RecordUse(ctx, tx, *order.CouponID); err != nil {
			return err
		}
	}

	externalRef := ""
	if payment.ExternalRef != nil {
		externalRef = *payment.ExternalRef
	}
	completed := outbox.DomainEvent{
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentCompletedEvent{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			Provider:    payment.Provider,
			Amount:      payment.Amount,
			ExternalRef: externalRef,
		},
	}
	if err := s.events.Emit(ctx, tx, completed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment completed")
	}

	paid := outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaidEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			PaymentID: payment.ID,
			Provider:  payment.Provider,
			Amount:    payment.Amount,
			PaidAt:    now,
		},
	}
	if err := s.events.Emit(ctx, tx, paid); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order paid")
	}

	if s.metrics != nil {
		s.metrics.IncOutcome(payment.Provider.String(), enums.PaymentStatusCompleted.String())
	}
	return nil
}

func (s *service) fail(ctx context.Context, tx *gorm.DB, repo Repository, payment *models.Payment, params ReconcileParams) error {
	payment.Status = enums.PaymentStatusFailed
	if params.FailureCode != "" {
		code := params.FailureCode
		payment.FailureCode = &code
	}
	if err := repo.Update(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}

	failureCode := ""
	if payment.FailureCode != nil {
		failureCode = *payment.FailureCode
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentFailedEvent{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			Provider:    payment.Provider,
			FailureCode: failureCode,
		},
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed")
	}

	if s.metrics != nil {
		s.metrics.IncOutcome(payment.Provider.String(), enums.PaymentStatusFailed.String())
	}
	return nil
}

func (s *service) Get(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if _, err := s.orders.GetOwned(ctx, userID, payment.OrderID); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) ListForOrder(ctx context.Context, userID, orderID uuid.UUID) ([]models.Payment, error) {
	if _, err := s.orders.GetOwned(ctx, userID, orderID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}
