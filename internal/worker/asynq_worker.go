package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/provider"
	"github.com/dukani-next/internal/queue"
	"github.com/dukani-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer asynq task handlers
type Consumer struct {
	*provider.Container
}

// NewConsumer builds the consumer
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register binds the task types to their handlers
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
	mux.HandleFunc(queue.TaskMpesaStatusQuery, c.handleMpesaStatusQuery)
}

func (c *Consumer) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || c.NotificationService == nil || task == nil {
		logger.Debugw("worker_notification_dispatch_skip_nil", "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_dispatch_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	err := c.NotificationService.Dispatch(ctx, payload)
	if err == nil {
		return nil
	}
	logger.Warnw("worker_notification_dispatch_failed",
		"channel", payload.Channel,
		"event_type", payload.EventType,
		"order_id", payload.OrderID,
		"error", err,
	)
	if isPermanentNotificationError(err) {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	return err
}

func isPermanentNotificationError(err error) bool {
	return errors.Is(err, service.ErrNotificationEventInvalid) ||
		errors.Is(err, service.ErrNotificationChannelInvalid) ||
		errors.Is(err, service.ErrNotificationMessageEmpty)
}

func (c *Consumer) handleMpesaStatusQuery(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || c.PaymentService == nil || task == nil {
		logger.Debugw("worker_mpesa_query_skip_nil", "task_nil", task == nil)
		return nil
	}
	var payload queue.MpesaStatusQueryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_mpesa_query_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	if payload.OrderID == 0 || payload.CheckoutRequestID == "" {
		logger.Debugw("worker_mpesa_query_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if err := c.PaymentService.ReconcileMpesa(ctx, payload); err != nil {
		logger.Warnw("worker_mpesa_query_failed",
			"order_id", payload.OrderID,
			"checkout_request_id", payload.CheckoutRequestID,
			"attempt", payload.Attempt,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) reconcileStale(ctx context.Context, age time.Duration) {
	checked, err := c.PaymentService.ReconcileStale(ctx, age, reconcileBatchSize)
	if err != nil {
		logger.Warnw("worker_reconcile_stale_failed", "checked", checked, "error", err)
		return
	}
	if checked > 0 {
		logger.Infow("worker_reconcile_stale_done", "checked", checked)
	}
}
