package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/juan12312121/mercado-backend/api/responses"
	"github.com/juan12312121/mercado-backend/internal/payments"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/metrics"
	"github.com/juan12312121/mercado-backend/pkg/stripe"
)

const stripeWebhookConsumer = "stripe-webhook"

type paymentReconciler interface {
	Reconcile(ctx context.Context, params payments.ReconcileParams) error
}

type webhookGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type stripeSigner interface {
	WebhookSecret() string
}

// acknowledge logs a webhook processing failure and still answers 200.
// Providers retry on non-2xx responses, so processing errors never
// propagate back to the caller; the delivery is logged and dropped.
func acknowledge(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
	responses.WriteSuccess(w, nil)
}

// StripeWebhook settles payments from Stripe checkout session events. Every
// delivery is acknowledged with 200 regardless of outcome; bad input makes
// no state change.
func StripeWebhook(svc paymentReconciler, client stripeSigner, guard webhookGuard, pm *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			pm.IncWebhook("stripe", "failed")
			acknowledge(ctx, logg, w, "stripe.webhook.read_failed", err)
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			pm.IncWebhook("stripe", "rejected")
			acknowledge(ctx, logg, w, "stripe.webhook.signature_missing", nil)
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.WebhookSecret())
		if err != nil {
			pm.IncWebhook("stripe", "rejected")
			acknowledge(ctx, logg, w, "stripe.webhook.signature_invalid", err)
			return
		}

		outcome, handled := stripeOutcome(string(event.Type))
		if !handled {
			pm.IncWebhook("stripe", "skipped")
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, stripeWebhookConsumer, event.ID)
		if err != nil {
			pm.IncWebhook("stripe", "failed")
			acknowledge(ctx, logg, w, "stripe.webhook.idempotency_check_failed", err)
			return
		}
		if alreadyProcessed {
			pm.IncWebhook("stripe", "duplicate")
			responses.WriteSuccess(w, nil)
			return
		}

		var session stripe.CheckoutSessionEvent
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			_ = guard.Delete(ctx, stripeWebhookConsumer, event.ID)
			pm.IncWebhook("stripe", "failed")
			acknowledge(ctx, logg, w, "stripe.webhook.decode_session_failed", err)
			return
		}

		// Delayed payment methods complete the session before settling.
		// The async_payment_succeeded event covers those later.
		if string(event.Type) == "checkout.session.completed" && session.PaymentStatus == "unpaid" {
			_ = guard.Delete(ctx, stripeWebhookConsumer, event.ID)
			pm.IncWebhook("stripe", "skipped")
			responses.WriteSuccess(w, nil)
			return
		}

		params := payments.ReconcileParams{
			Provider:    enums.PaymentProviderStripe,
			ExternalRef: session.ID,
			Succeeded:   outcome,
		}
		if !outcome {
			params.FailureCode = string(event.Type)
		}
		if orderID, parseErr := uuid.Parse(session.ClientReferenceID); parseErr == nil {
			params.OrderID = orderID
		}

		if err := svc.Reconcile(ctx, params); err != nil {
			_ = guard.Delete(ctx, stripeWebhookConsumer, event.ID)
			pm.IncWebhook("stripe", "failed")
			acknowledge(ctx, logg, w, "stripe.webhook.reconcile_failed", err)
			return
		}

		pm.IncWebhook("stripe", "processed")
		if logg != nil {
			logg.Info(logg.WithField(ctx, "event_id", event.ID), "stripe.webhook.processed")
		}
		responses.WriteSuccess(w, nil)
	}
}

// stripeOutcome maps a checkout session event type to a settlement result.
func stripeOutcome(eventType string) (succeeded, handled bool) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return true, true
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		return false, true
	default:
		return false, false
	}
}
