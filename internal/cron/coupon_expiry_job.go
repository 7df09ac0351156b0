package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/internal/coupons"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CouponExpiryJobParams configure the coupon expiry sweep.
type CouponExpiryJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Coupons coupons.Repository
	Outbox  outboxEmitter
}

// NewCouponExpiryJob builds the cron job that deactivates lapsed coupons.
func NewCouponExpiryJob(params CouponExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &couponExpiryJob{
		logg:    params.Logger,
		db:      params.DB,
		coupons: params.Coupons,
		outbox:  params.Outbox,
		now:     time.Now,
	}, nil
}

type couponExpiryJob struct {
	logg    *logger.Logger
	db      txRunner
	coupons coupons.Repository
	outbox  outboxEmitter
	now     func() time.Time
}

func (j *couponExpiryJob) Name() string { return "coupon-expiry" }

func (j *couponExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	count := 0
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		lapsed, err := j.coupons.WithTx(tx).DeactivateLapsed(ctx, now)
		if err != nil {
			return fmt.Errorf("deactivate lapsed coupons: %w", err)
		}
		for _, coupon := range lapsed {
			event := outbox.DomainEvent{
				EventType:     enums.EventCouponExpired,
				AggregateType: enums.AggregateCoupon,
				AggregateID:   coupon.ID,
				Version:       1,
				OccurredAt:    now,
				Data: payloads.CouponExpiredEvent{
					CouponID:  coupon.ID,
					Code:      coupon.Code,
					ExpiredAt: now,
				},
			}
			if err := j.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		count = len(lapsed)
		return nil
	})
	if err != nil {
		return err
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "coupon expiry sweep complete")
	return nil
}
