package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultReconcileInterval = 5 * time.Minute
	defaultReconcileAge      = 10 * time.Minute
	reconcileBatchSize       = 50
)

// Service asynq server plus the stale STK push sweep
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	interval time.Duration
	age      time.Duration
}

// NewService builds the worker; a disabled queue is an error
func NewService(cfg *config.QueueConfig, orderCfg config.OrderConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	interval, age := reconcileSchedule(orderCfg)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		interval: interval,
		age:      age,
	}, nil
}

func reconcileSchedule(cfg config.OrderConfig) (interval, age time.Duration) {
	interval = time.Duration(cfg.ReconcileIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	age = time.Duration(cfg.ReconcileAfterMinutes) * time.Minute
	if age <= 0 {
		age = defaultReconcileAge
	}
	return interval, age
}

// Name service name
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start runs the sweep in the background and blocks on the asynq server
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil && s.consumer.PaymentService != nil {
		go s.runReconcileLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop shuts the asynq server down
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runReconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	logger.Infow("worker_reconcile_loop_started", "interval", s.interval.String(), "age", s.age.String())
	for {
		select {
		case <-ctx.Done():
			logger.Infow("worker_reconcile_loop_stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			s.consumer.reconcileStale(ctx, s.age)
		}
	}
}
