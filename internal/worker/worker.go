package worker

import (
	"context"
	"time"

	"negotiation-service/internal/broker"
	"negotiation-service/internal/models"
	"negotiation-service/internal/negotiation"
	"negotiation-service/internal/redisclient"
	"negotiation-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sweepLockKey   = "expiry-sweep"
	sweepBatchSize = 200
)

// Sweeper periodically expires stale active negotiations and reconciles the
// registry index. Correctness does not depend on it: expiry is evaluated
// lazily on every read and write. The sweep keeps dashboards fresh.
type Sweeper struct {
	service  *negotiation.Service
	redis    *redisclient.Client
	interval time.Duration
	token    string
	logger   *zap.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(service *negotiation.Service, redis *redisclient.Client, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		redis:    redis,
		interval: interval,
		token:    uuid.New().String(),
		logger:   util.NamedLogger("sweeper"),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (sw *Sweeper) Start(ctx context.Context) error {
	sw.logger.Info("starting expiry sweeper", zap.Duration("interval", sw.interval))

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			sw.runOnce(ctx)
		}
	}
}

func (sw *Sweeper) runOnce(ctx context.Context) {
	// One sweeper across all instances; the others skip this tick.
	if sw.redis != nil {
		acquired, err := sw.redis.AcquireLock(ctx, sweepLockKey, sw.token, sw.interval)
		if err != nil {
			sw.logger.Warn("sweep lock error", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := sw.redis.ReleaseLock(ctx, sweepLockKey, sw.token); err != nil {
				sw.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	swept, err := sw.service.SweepExpired(ctx, sweepBatchSize)
	if err != nil {
		sw.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	util.SweepDuration.Observe(time.Since(start).Seconds())
	if swept > 0 {
		util.SweptNegotiationsTotal.Add(float64(swept))
		sw.logger.Info("expired stale negotiations", zap.Int("count", swept))
	}

	if err := sw.service.ReconcileIndex(ctx); err != nil {
		sw.logger.Warn("index reconciliation failed", zap.Error(err))
	}
}

// NotificationWorker consumes negotiation events and relays them to the
// notification collaborator. Delivery itself (email, push) is external;
// this worker is the hand-off point.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a worker wired to seller/buyer notifications.
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	logger := util.NamedLogger("notify")
	eventHandler := broker.NewEventHandler()

	eventHandler.OnNegotiationOpened(func(ctx context.Context, e *models.NegotiationOpenedEvent) error {
		logger.Info("notify seller: new offer",
			zap.String("seller_id", e.SellerID),
			zap.String("negotiation_id", e.NegotiationID),
			zap.Int64("offer", e.OfferAmount))
		return nil
	})
	eventHandler.OnOfferCountered(func(ctx context.Context, e *models.OfferCounteredEvent) error {
		logger.Info("notify counterpart: counteroffer",
			zap.String("negotiation_id", e.NegotiationID),
			zap.String("by", e.ProposedBy),
			zap.Int64("amount", e.Amount))
		return nil
	})
	eventHandler.OnNegotiationAccepted(func(ctx context.Context, e *models.NegotiationAcceptedEvent) error {
		logger.Info("notify buyer: offer accepted, code issued",
			zap.String("buyer_id", e.BuyerID),
			zap.String("negotiation_id", e.NegotiationID),
			zap.Int64("final_price", e.FinalPrice))
		return nil
	})
	eventHandler.OnNegotiationClosed(func(ctx context.Context, e *models.NegotiationClosedEvent) error {
		logger.Info("notify parties: negotiation closed",
			zap.String("negotiation_id", e.NegotiationID),
			zap.String("status", e.Status))
		return nil
	})

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("stopping notification worker")
	return w.consumer.Close()
}
