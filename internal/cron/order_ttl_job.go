package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/juan12312121/mercado-backend/pkg/logger"
)

const expireBatchSize = 100

type expiredOrderCanceller interface {
	CancelExpired(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// OrderTTLJobParams configure the pending order expiry sweep.
type OrderTTLJobParams struct {
	Logger *logger.Logger
	Orders expiredOrderCanceller
	TTL    time.Duration
}

// NewOrderTTLJob builds the cron job that cancels pending orders whose
// payment window has lapsed.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    params.TTL,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders expiredOrderCanceller
	ttl    time.Duration
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for {
		count, err := j.orders.CancelExpired(ctx, cutoff, expireBatchSize)
		if err != nil {
			return fmt.Errorf("expire pending orders: %w", err)
		}
		total += count
		if count < expireBatchSize {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": total})
	j.logg.Info(logCtx, "order expiration sweep complete")
	return nil
}
