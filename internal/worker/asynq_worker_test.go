package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/provider"
	"github.com/dukani-next/internal/queue"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type workerFixture struct {
	consumer *Consumer
	logs     *repository.GormNotificationLogRepository
	mux      *asynq.ServeMux
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{}
	settings := service.NewSettingService(repository.NewSettingRepository(db), cfg)
	orders := repository.NewOrderRepository(db)
	logs := repository.NewNotificationLogRepository(db)
	email := service.NewEmailService(settings, cfg.Email)
	notify := service.NewNotificationService(settings, email, nil, orders, logs)
	payments := service.NewPaymentService(orders, settings, nil, notify, cfg.Order)

	consumer := NewConsumer(&provider.Container{
		Config:              cfg,
		OrderRepo:           orders,
		NotificationLogRepo: logs,
		SettingService:      settings,
		NotificationService: notify,
		PaymentService:      payments,
	})
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &workerFixture{consumer: consumer, logs: logs, mux: mux}
}

func mustTask(t *testing.T, typename string, payload interface{}) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(typename, body)
}

func TestNotificationDispatchTask(t *testing.T) {
	f := newWorkerFixture(t)
	task := mustTask(t, queue.TaskNotificationDispatch, queue.NotificationDispatchPayload{
		Channel:   constants.NotificationChannelSMS,
		EventType: constants.NotificationEventTest,
		To:        "254712345678",
		Message:   "Habari from Dukani",
	})
	if err := f.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("dispatch task failed: %v", err)
	}
	logs, total, err := f.logs.List(repository.NotificationLogListFilter{Page: 1, PageSize: 10})
	if err != nil || total != 1 {
		t.Fatalf("expected one log row, total=%d err=%v", total, err)
	}
	if logs[0].Status != constants.NotificationStatusSimulated || logs[0].Channel != constants.NotificationChannelSMS {
		t.Fatalf("unexpected log %+v", logs[0])
	}
}

func TestNotificationDispatchTaskSkipsRetryOnBadInput(t *testing.T) {
	f := newWorkerFixture(t)

	bad := asynq.NewTask(queue.TaskNotificationDispatch, []byte("{"))
	if err := f.mux.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should skip retry, got %v", err)
	}

	wrongChannel := mustTask(t, queue.TaskNotificationDispatch, queue.NotificationDispatchPayload{
		Channel:   "telegram",
		EventType: constants.NotificationEventTest,
		To:        "254712345678",
		Message:   "hi",
	})
	err := f.mux.ProcessTask(context.Background(), wrongChannel)
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, service.ErrNotificationChannelInvalid) {
		t.Fatalf("unknown channel should skip retry, got %v", err)
	}
}

func TestMpesaStatusQueryTask(t *testing.T) {
	f := newWorkerFixture(t)

	bad := asynq.NewTask(queue.TaskMpesaStatusQuery, []byte("not-json"))
	if err := f.mux.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should skip retry, got %v", err)
	}

	for _, payload := range []queue.MpesaStatusQueryPayload{
		{OrderID: 0, CheckoutRequestID: "ws_CO_1"},
		{OrderID: 7, CheckoutRequestID: ""},
		{OrderID: 404, CheckoutRequestID: "ws_CO_missing", Attempt: 1},
	} {
		if err := f.mux.ProcessTask(context.Background(), mustTask(t, queue.TaskMpesaStatusQuery, payload)); err != nil {
			t.Fatalf("payload %+v should be acknowledged, got %v", payload, err)
		}
	}
}

func TestConsumerNilSafety(t *testing.T) {
	var consumer *Consumer
	consumer.Register(asynq.NewServeMux())
	empty := NewConsumer(nil)
	if err := empty.handleNotificationDispatch(context.Background(), asynq.NewTask(queue.TaskNotificationDispatch, nil)); err != nil {
		t.Fatalf("consumer without services should ignore tasks, got %v", err)
	}
	if err := empty.handleMpesaStatusQuery(context.Background(), nil); err != nil {
		t.Fatalf("nil task should be ignored, got %v", err)
	}
}

func TestReconcileSchedule(t *testing.T) {
	interval, age := reconcileSchedule(config.OrderConfig{})
	if interval != defaultReconcileInterval || age != defaultReconcileAge {
		t.Fatalf("defaults not applied: %v %v", interval, age)
	}
	interval, age = reconcileSchedule(config.OrderConfig{ReconcileIntervalSeconds: 30, ReconcileAfterMinutes: 2})
	if interval != 30*time.Second || age != 2*time.Minute {
		t.Fatalf("unexpected schedule: %v %v", interval, age)
	}
}

func TestNewServiceRequiresQueue(t *testing.T) {
	if _, err := NewService(&config.QueueConfig{Enabled: false}, config.OrderConfig{}, NewConsumer(nil)); err == nil {
		t.Fatalf("disabled queue should fail")
	}
	if _, err := NewService(&config.QueueConfig{Enabled: true}, config.OrderConfig{}, nil); err == nil {
		t.Fatalf("nil consumer should fail")
	}
}

func TestReconcileLoopStopsWithContext(t *testing.T) {
	f := newWorkerFixture(t)
	svc := &Service{consumer: f.consumer, interval: time.Millisecond, age: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.runReconcileLoop(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reconcile loop did not stop after cancel")
	}
}
