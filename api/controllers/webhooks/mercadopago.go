package webhooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/api/responses"
	"github.com/juan12312121/mercado-backend/api/validators"
	"github.com/juan12312121/mercado-backend/internal/payments"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/mercadopago"
	"github.com/juan12312121/mercado-backend/pkg/metrics"
)

const mercadoPagoWebhookConsumer = "mercadopago-webhook"

type mercadoPagoGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.PaymentInfo, error)
}

// MercadoPagoWebhook settles payments from MercadoPago payment notifications.
// The notification only carries the payment id; the handler pulls the full
// payment to learn its status and order reference.
func MercadoPagoWebhook(svc paymentReconciler, client mercadoPagoGateway, guard webhookGuard, pm *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mercadopago client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		var notification mercadopago.WebhookNotification
		if err := validators.DecodeJSONBody(r, &notification); err != nil {
			pm.IncWebhook("mercadopago", "rejected")
			acknowledge(ctx, logg, w, "mercadopago.webhook.decode_failed", err)
			return
		}

		if notification.Type != "payment" || notification.Data.ID == "" {
			pm.IncWebhook("mercadopago", "skipped")
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, mercadoPagoWebhookConsumer, notification.Data.ID)
		if err != nil {
			pm.IncWebhook("mercadopago", "failed")
			acknowledge(ctx, logg, w, "mercadopago.webhook.idempotency_check_failed", err)
			return
		}
		if alreadyProcessed {
			pm.IncWebhook("mercadopago", "duplicate")
			responses.WriteSuccess(w, nil)
			return
		}

		info, err := client.GetPayment(ctx, notification.Data.ID)
		if err != nil {
			_ = guard.Delete(ctx, mercadoPagoWebhookConsumer, notification.Data.ID)
			pm.IncWebhook("mercadopago", "failed")
			acknowledge(ctx, logg, w, "mercadopago.webhook.fetch_payment_failed", err)
			return
		}

		succeeded, handled := mercadoPagoOutcome(info.Status)
		if !handled {
			// Pending states resolve with a later notification.
			_ = guard.Delete(ctx, mercadoPagoWebhookConsumer, notification.Data.ID)
			pm.IncWebhook("mercadopago", "skipped")
			responses.WriteSuccess(w, nil)
			return
		}

		params := payments.ReconcileParams{
			Provider:    enums.PaymentProviderMercadoPago,
			ExternalRef: fmt.Sprintf("%d", info.ID),
			Succeeded:   succeeded,
		}
		if !succeeded {
			params.FailureCode = info.StatusDetail
		}
		if orderID, parseErr := uuid.Parse(info.ExternalReference); parseErr == nil {
			params.OrderID = orderID
		}

		if err := svc.Reconcile(ctx, params); err != nil {
			_ = guard.Delete(ctx, mercadoPagoWebhookConsumer, notification.Data.ID)
			pm.IncWebhook("mercadopago", "failed")
			acknowledge(ctx, logg, w, "mercadopago.webhook.reconcile_failed", err)
			return
		}

		pm.IncWebhook("mercadopago", "processed")
		if logg != nil {
			logg.Info(logg.WithField(ctx, "payment_id", notification.Data.ID), "mercadopago.webhook.processed")
		}
		responses.WriteSuccess(w, nil)
	}
}

func mercadoPagoOutcome(status string) (succeeded, handled bool) {
	switch status {
	case "approved":
		return true, true
	case "rejected", "cancelled", "refunded", "charged_back":
		return false, true
	default:
		return false, false
	}
}
