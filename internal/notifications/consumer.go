package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/idempotency"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
	"github.com/juan12312121/mercado-backend/pkg/types"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns order, payment, and seller
// transitions into in-app notifications for the affected user.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !c.handles(eventType) {
		c.logg.Debug(logCtx, "skipping event without a notification mapping")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, envelope.EventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderPaid,
		enums.EventOrderStateChanged,
		enums.EventOrderCancelled,
		enums.EventOrderExpired,
		enums.EventSellerStatusChanged:
		return true
	default:
		return false
	}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyOrderPaid(ctx, payload, logCtx)
	case enums.EventOrderStateChanged, enums.EventOrderCancelled:
		var payload payloads.OrderStateChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyOrderStateChanged(ctx, payload, logCtx)
	case enums.EventOrderExpired:
		var payload payloads.OrderExpiredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyOrderExpired(ctx, payload, logCtx)
	case enums.EventSellerStatusChanged:
		var payload payloads.SellerStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifySellerStatusChanged(ctx, payload, logCtx)
	default:
		return nil
	}
}

func (c *Consumer) notifyOrderPaid(ctx context.Context, payload payloads.OrderPaidEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypePaymentResult,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Your payment of %s for order %s was confirmed.", payload.Amount.StringFixed(2), payload.OrderID),
		Data: types.JSONMap{
			"order_id":   payload.OrderID.String(),
			"payment_id": payload.PaymentID.String(),
			"provider":   string(payload.Provider),
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of payment")
	return nil
}

func (c *Consumer) notifyOrderStateChanged(ctx context.Context, payload payloads.OrderStateChangedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	title := "Order updated"
	message := fmt.Sprintf("Order %s moved from %s to %s.", payload.OrderID, payload.FromStatus, payload.ToStatus)
	switch payload.ToStatus {
	case enums.OrderStatusShipped:
		title = "Order shipped"
		message = fmt.Sprintf("Order %s is on its way.", payload.OrderID)
	case enums.OrderStatusDelivered:
		title = "Order delivered"
		message = fmt.Sprintf("Order %s has been delivered.", payload.OrderID)
	case enums.OrderStatusCancelled:
		title = "Order cancelled"
		message = fmt.Sprintf("Order %s was cancelled.", payload.OrderID)
	}
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeOrderStatus,
		Title:   title,
		Message: message,
		Data: types.JSONMap{
			"order_id":    payload.OrderID.String(),
			"from_status": string(payload.FromStatus),
			"to_status":   string(payload.ToStatus),
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of order transition")
	return nil
}

func (c *Consumer) notifyOrderExpired(ctx context.Context, payload payloads.OrderExpiredEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeOrderStatus,
		Title:   "Order expired",
		Message: fmt.Sprintf("Order %s was cancelled because payment was not completed in time.", payload.OrderID),
		Data: types.JSONMap{
			"order_id": payload.OrderID.String(),
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of expired order")
	return nil
}

func (c *Consumer) notifySellerStatusChanged(ctx context.Context, payload payloads.SellerStatusChangedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	title := "Seller account updated"
	message := fmt.Sprintf("Your seller account status changed to %s.", payload.ToStatus)
	switch payload.ToStatus {
	case enums.SellerStatusApproved:
		title = "Seller application approved"
		message = "Your shop has been approved. You can start listing products."
	case enums.SellerStatusRejected:
		title = "Seller application rejected"
		if payload.Reason != "" {
			message = fmt.Sprintf("Your seller application was rejected. Reason: %s", payload.Reason)
		} else {
			message = "Your seller application was rejected."
		}
	case enums.SellerStatusSuspended:
		title = "Seller account suspended"
		if payload.Reason != "" {
			message = fmt.Sprintf("Your seller account was suspended. Reason: %s", payload.Reason)
		} else {
			message = "Your seller account was suspended."
		}
	}
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeSellerOnboarding,
		Title:   title,
		Message: message,
		Data: types.JSONMap{
			"seller_id":   payload.SellerID.String(),
			"from_status": string(payload.FromStatus),
			"to_status":   string(payload.ToStatus),
		},
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "seller notified of status change")
	return nil
}
