package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/queue"

	"github.com/shopspring/decimal"
)

type fakeDaraja struct {
	mu            sync.Mutex
	stkResponse   string
	stkStatus     int
	queryResponse string
	lastSTK       map[string]interface{}
	stkCalls      int
}

func newFakeDaraja(t *testing.T) (*fakeDaraja, *httptest.Server) {
	t.Helper()
	fake := &fakeDaraja{
		stkStatus:   http.StatusOK,
		stkResponse: `{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_100","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpushrequest/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		fake.stkCalls++
		_ = json.NewDecoder(r.Body).Decode(&fake.lastSTK)
		w.WriteHeader(fake.stkStatus)
		_, _ = w.Write([]byte(fake.stkResponse))
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		_, _ = w.Write([]byte(fake.queryResponse))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fake, srv
}

func (f *fakeDaraja) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stkCalls
}

func (f *serviceFixture) enableMpesa(t *testing.T, baseURL string, extra map[string]interface{}) {
	t.Helper()
	value := map[string]interface{}{
		"enabled":         true,
		"environment":     "sandbox",
		"payment_mode":    "paybill",
		"short_code":      "174379",
		"consumer_key":    "key",
		"consumer_secret": "secret",
		"pass_key":        "passkey",
		"base_url":        baseURL,
	}
	for k, v := range extra {
		value[k] = v
	}
	f.saveSetting(t, constants.SettingKeyMpesaConfig, value)
}

func newTestPaymentService(f *serviceFixture) *PaymentService {
	return NewPaymentService(f.orders, f.settings, nil, f.notifier, config.OrderConfig{})
}

func successCallback(checkoutID, receipt string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"` + checkoutID + `","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1750.00},{"Name":"MpesaReceiptNumber","Value":"` + receipt + `"},{"Name":"TransactionDate","Value":20240101120000},{"Name":"PhoneNumber","Value":254712345678}]}}}}`)
}

func failedCallback(checkoutID string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"` + checkoutID + `","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)
}

func TestInitiateSTKPushDisabledConfigDoesNotTouchOrder(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "blender", 1500, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})
	svc := newTestPaymentService(f)

	_, err := svc.InitiateSTKPush(context.Background(), STKPushInput{OrderID: order.ID})
	if !errors.Is(err, ErrMpesaNotEnabled) {
		t.Fatalf("expected ErrMpesaNotEnabled, got %v", err)
	}
	if err.Error() != "M-Pesa Express is not enabled" {
		t.Fatalf("message must reach the caller verbatim, got %q", err.Error())
	}

	f.saveSetting(t, constants.SettingKeyMpesaConfig, map[string]interface{}{"enabled": true, "short_code": "174379"})
	if _, err := svc.InitiateSTKPush(context.Background(), STKPushInput{OrderID: order.ID}); !errors.Is(err, ErrMpesaCredentials) {
		t.Fatalf("expected ErrMpesaCredentials, got %v", err)
	}

	reloaded := f.reload(t, order.ID)
	if reloaded.PaymentStatus != constants.PaymentStatusPending || reloaded.PaymentReference != "" {
		t.Fatalf("order must be untouched: %+v", reloaded)
	}
}

func TestInitiateSTKPushAccepted(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	product := f.seedProduct(t, "blender", 1500, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})
	svc := newTestPaymentService(f)

	outcome, err := svc.InitiateSTKPush(context.Background(), STKPushInput{
		OrderID: order.ID,
		Phone:   "0722 000 111",
		Amount:  decimal.RequireFromString("1749.20"),
	})
	if err != nil {
		t.Fatalf("InitiateSTKPush error: %v", err)
	}
	if outcome.CheckoutRequestID != "ws_CO_100" || outcome.MerchantRequestID != "29115-1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.Message != "Success. Request accepted for processing" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}

	fake.mu.Lock()
	sent := fake.lastSTK
	fake.mu.Unlock()
	if sent["Amount"] != float64(1750) {
		t.Fatalf("amount should be rounded up to whole shillings, got %v", sent["Amount"])
	}
	if sent["PhoneNumber"] != "254722000111" {
		t.Fatalf("unexpected phone %v", sent["PhoneNumber"])
	}
	if sent["CallBackURL"] != "https://shop.example"+mpesa.CallbackPath {
		t.Fatalf("callback should derive from the site url, got %v", sent["CallBackURL"])
	}

	stored := f.reload(t, order.ID)
	if stored.PaymentStatus != constants.PaymentStatusProcessing || stored.Status != constants.OrderStatusPending {
		t.Fatalf("expected processing/pending, got %s", StateOf(stored))
	}
	if stored.PaymentReference != "ws_CO_100" || stored.MerchantRequestID != "29115-1" || stored.ReceiptNumber != "" {
		t.Fatalf("correlation and receipt must stay separate: %+v", stored)
	}
	if stored.PaymentPhone != "254722000111" {
		t.Fatalf("unexpected payment phone %s", stored.PaymentPhone)
	}
}

func TestInitiateSTKPushGatewayRejection(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	fake.stkStatus = http.StatusBadRequest
	fake.stkResponse = `{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`
	f.enableMpesa(t, srv.URL, nil)
	product := f.seedProduct(t, "kettle", 900, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})

	_, err := newTestPaymentService(f).InitiateSTKPush(context.Background(), STKPushInput{OrderID: order.ID})
	var gwErr *mpesa.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Message != "Bad Request - Invalid PhoneNumber" {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if stored := f.reload(t, order.ID); stored.PaymentStatus != constants.PaymentStatusPending {
		t.Fatalf("rejected push must not move the order, got %s", stored.PaymentStatus)
	}
}

func TestInitiateSTKPushPrechecks(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	product := f.seedProduct(t, "mat", 400, 0)
	manual := f.checkout(t, "manual", CheckoutItem{ProductID: product.ID, Quantity: 1})
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})
	svc := newTestPaymentService(f)
	ctx := context.Background()

	if _, err := svc.InitiateSTKPush(ctx, STKPushInput{OrderID: manual.ID}); !errors.Is(err, ErrPaymentMethodNotGateway) {
		t.Fatalf("expected ErrPaymentMethodNotGateway, got %v", err)
	}
	if _, err := svc.InitiateSTKPush(ctx, STKPushInput{OrderID: 4242}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := svc.InitiateSTKPush(ctx, STKPushInput{OrderID: order.ID, Phone: "12345"}); !errors.Is(err, ErrPaymentPhoneInvalid) {
		t.Fatalf("expected ErrPaymentPhoneInvalid, got %v", err)
	}
	if _, err := svc.InitiateSTKPush(ctx, STKPushInput{OrderID: order.ID, Amount: decimal.NewFromInt(-5)}); !errors.Is(err, ErrPaymentAmountInvalid) {
		t.Fatalf("expected ErrPaymentAmountInvalid, got %v", err)
	}
	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "cancelled"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.InitiateSTKPush(ctx, STKPushInput{OrderID: order.ID}); !errors.Is(err, ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}
	if fake.calls() != 0 {
		t.Fatalf("prechecks must fail before calling Daraja, got %d calls", fake.calls())
	}
}

// pushedOrder returns an order with an accepted STK push outstanding
func pushedOrder(t *testing.T, f *serviceFixture, svc *PaymentService) *models.Order {
	t.Helper()
	product := f.seedProduct(t, "water-tank", 1500, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})
	if _, err := svc.InitiateSTKPush(context.Background(), STKPushInput{OrderID: order.ID}); err != nil {
		t.Fatalf("InitiateSTKPush error: %v", err)
	}
	return f.reload(t, order.ID)
}

func TestHandleMpesaCallbackSuccessAndReplay(t *testing.T) {
	f := newServiceFixture(t)
	_, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	order := pushedOrder(t, f, svc)

	result, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB12CD34E"), "")
	if err != nil {
		t.Fatalf("HandleMpesaCallback error: %v", err)
	}
	if !result.Success || result.Outcome != CallbackOutcomeApplied {
		t.Fatalf("unexpected result: %+v", result)
	}
	paid := f.reload(t, order.ID)
	if paid.PaymentStatus != constants.PaymentStatusCompleted || paid.Status != constants.OrderStatusConfirmed {
		t.Fatalf("expected completed/confirmed, got %s", StateOf(paid))
	}
	if paid.ReceiptNumber != "SAB12CD34E" || paid.PaymentReference != "ws_CO_100" {
		t.Fatalf("receipt and reference mixed up: %+v", paid)
	}
	if paid.PaidAmount.String() != "1750.00" || paid.PaidAt == nil {
		t.Fatalf("payment details not stored: amount=%s paid_at=%v", paid.PaidAmount, paid.PaidAt)
	}

	replay, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB12CD34E"), "")
	if err != nil || !replay.Success || replay.Outcome != CallbackOutcomeDuplicate {
		t.Fatalf("replay should be an acknowledged no-op: %+v err=%v", replay, err)
	}
	late, err := svc.HandleMpesaCallback(context.Background(), failedCallback("ws_CO_100"), "")
	if err != nil || late.Outcome != CallbackOutcomeDuplicate {
		t.Fatalf("failure after success must not change the order: %+v err=%v", late, err)
	}
	if again := f.reload(t, order.ID); again.PaymentStatus != constants.PaymentStatusCompleted {
		t.Fatalf("payment regressed to %s", again.PaymentStatus)
	}

	received := 0
	for _, event := range f.notifier.Events() {
		if event == constants.NotificationEventPaymentReceived {
			received++
		}
	}
	if received != 1 {
		t.Fatalf("expected exactly one payment_received notification, got %d", received)
	}
}

func TestHandleMpesaCallbackFailureAllowsRetry(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	order := pushedOrder(t, f, svc)

	result, err := svc.HandleMpesaCallback(context.Background(), failedCallback("ws_CO_100"), "")
	if err != nil || !result.Success || result.Outcome != CallbackOutcomeApplied {
		t.Fatalf("unexpected result: %+v err=%v", result, err)
	}
	failed := f.reload(t, order.ID)
	if failed.PaymentStatus != constants.PaymentStatusFailed || failed.Status != constants.OrderStatusPending {
		t.Fatalf("expected failed/pending, got %s", StateOf(failed))
	}
	if !strings.Contains(failed.Notes, "Request cancelled by user") {
		t.Fatalf("failure reason not noted: %q", failed.Notes)
	}

	fake.mu.Lock()
	fake.stkResponse = `{"MerchantRequestID":"29115-2","CheckoutRequestID":"ws_CO_200","ResponseCode":"0","CustomerMessage":"Success"}`
	fake.mu.Unlock()
	if _, err := svc.InitiateSTKPush(context.Background(), STKPushInput{OrderID: order.ID}); err != nil {
		t.Fatalf("retry after failure should be allowed: %v", err)
	}
	retried := f.reload(t, order.ID)
	if retried.PaymentStatus != constants.PaymentStatusProcessing || retried.PaymentReference != "ws_CO_200" {
		t.Fatalf("retry should reset to processing with the new reference: %+v", retried)
	}
}

func TestHandleMpesaCallbackUnknownReference(t *testing.T) {
	f := newServiceFixture(t)
	svc := newTestPaymentService(f)

	result, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_missing", "X1"), "")
	if err != nil {
		t.Fatalf("HandleMpesaCallback error: %v", err)
	}
	if result.Success || result.Outcome != CallbackOutcomeUnknown || result.Order != nil {
		t.Fatalf("unknown reference should be acknowledged without success: %+v", result)
	}
	if _, err := svc.HandleMpesaCallback(context.Background(), []byte(`{"nope":true}`), ""); !errors.Is(err, ErrPaymentCallbackInvalid) {
		t.Fatalf("expected ErrPaymentCallbackInvalid, got %v", err)
	}
}

func TestHandleMpesaCallbackTokenMismatch(t *testing.T) {
	f := newServiceFixture(t)
	_, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, map[string]interface{}{"callback_token": "s3cret"})
	svc := newTestPaymentService(f)
	order := pushedOrder(t, f, svc)

	if _, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB1"), "wrong"); !errors.Is(err, ErrPaymentCallbackForbidden) {
		t.Fatalf("expected ErrPaymentCallbackForbidden, got %v", err)
	}
	if stored := f.reload(t, order.ID); stored.PaymentStatus != constants.PaymentStatusProcessing {
		t.Fatalf("forbidden callback must not write, got %s", stored.PaymentStatus)
	}
	result, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB1"), "s3cret")
	if err != nil || result.Outcome != CallbackOutcomeApplied {
		t.Fatalf("callback with token should apply: %+v err=%v", result, err)
	}
}

func TestLateSuccessReinstatesCancelledOrder(t *testing.T) {
	f := newServiceFixture(t)
	_, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	order := pushedOrder(t, f, svc)

	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "cancelled"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB9"), ""); err != nil {
		t.Fatalf("HandleMpesaCallback error: %v", err)
	}
	stored := f.reload(t, order.ID)
	if stored.Status != constants.OrderStatusConfirmed || stored.CanceledAt != nil {
		t.Fatalf("paid order should be reinstated: %+v", stored)
	}
	if !strings.Contains(stored.Notes, "reinstated") {
		t.Fatalf("reinstatement not noted: %q", stored.Notes)
	}
}

func TestReconcileMpesaAppliesQueryResult(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	order := pushedOrder(t, f, svc)

	fake.mu.Lock()
	fake.queryResponse = `{"errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`
	fake.mu.Unlock()
	payload := queue.MpesaStatusQueryPayload{OrderID: order.ID, CheckoutRequestID: "ws_CO_100", Attempt: 1}
	if err := svc.ReconcileMpesa(context.Background(), payload); err != nil {
		t.Fatalf("pending query should not error: %v", err)
	}
	if stored := f.reload(t, order.ID); stored.PaymentStatus != constants.PaymentStatusProcessing {
		t.Fatalf("pending query must not settle the order, got %s", stored.PaymentStatus)
	}

	fake.mu.Lock()
	fake.queryResponse = `{"ResponseCode":"0","MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_100","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`
	fake.mu.Unlock()
	if err := svc.ReconcileMpesa(context.Background(), payload); err != nil {
		t.Fatalf("ReconcileMpesa error: %v", err)
	}
	stored := f.reload(t, order.ID)
	if stored.PaymentStatus != constants.PaymentStatusCompleted || stored.PaidAt == nil {
		t.Fatalf("query success should complete the payment: %+v", stored)
	}
	if stored.PaidAmount.String() != stored.TotalAmount.String() {
		t.Fatalf("query result should record the order total, got %s", stored.PaidAmount)
	}

	stale := queue.MpesaStatusQueryPayload{OrderID: order.ID, CheckoutRequestID: "ws_CO_other", Attempt: 1}
	if err := svc.ReconcileMpesa(context.Background(), stale); err != nil {
		t.Fatalf("stale reference should be ignored: %v", err)
	}
}

func TestReconcileStaleSkipsFreshOrders(t *testing.T) {
	f := newServiceFixture(t)
	_, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	pushedOrder(t, f, svc)

	checked, err := svc.ReconcileStale(context.Background(), time.Hour, 10)
	if err != nil || checked != 0 {
		t.Fatalf("fresh pushes should not be reconciled yet: checked=%d err=%v", checked, err)
	}
}

func TestQueryMpesaStatus(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)

	product := f.seedProduct(t, "blender", 1500, 0)
	fresh := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})
	if _, err := svc.QueryMpesaStatus(context.Background(), fresh.ID); !errors.Is(err, ErrPaymentNotProcessing) {
		t.Fatalf("expected ErrPaymentNotProcessing, got %v", err)
	}
	if _, err := svc.QueryMpesaStatus(context.Background(), 9999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	order := pushedOrder(t, f, svc)
	fake.mu.Lock()
	fake.queryResponse = `{"ResponseCode":"0","MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_100","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`
	fake.mu.Unlock()
	updated, err := svc.QueryMpesaStatus(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("QueryMpesaStatus error: %v", err)
	}
	if updated.PaymentStatus != constants.PaymentStatusFailed {
		t.Fatalf("cancelled prompt should fail the payment, got %s", updated.PaymentStatus)
	}
}

func TestLateSuccessReservesStockAgain(t *testing.T) {
	f := newServiceFixture(t)
	_, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	cylinder := f.seedProduct(t, "gas-cylinder", 3200, 2)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: cylinder.ID, Quantity: 2})
	if _, err := svc.InitiateSTKPush(context.Background(), STKPushInput{OrderID: order.ID}); err != nil {
		t.Fatalf("InitiateSTKPush error: %v", err)
	}

	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "cancelled"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if stored, _ := f.products.GetByID(cylinder.ID); stored.Stock != 2 {
		t.Fatalf("cancel should release stock, got %d", stored.Stock)
	}
	if _, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB7"), ""); err != nil {
		t.Fatalf("HandleMpesaCallback error: %v", err)
	}
	if stored, _ := f.products.GetByID(cylinder.ID); stored.Stock != 0 {
		t.Fatalf("reinstated order should hold its units again, got %d", stored.Stock)
	}
}

func TestCallbackAfterQueryBackfillsReceipt(t *testing.T) {
	f := newServiceFixture(t)
	fake, srv := newFakeDaraja(t)
	f.enableMpesa(t, srv.URL, nil)
	svc := newTestPaymentService(f)
	order := pushedOrder(t, f, svc)

	fake.mu.Lock()
	fake.queryResponse = `{"ResponseCode":"0","MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_100","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`
	fake.mu.Unlock()
	payload := queue.MpesaStatusQueryPayload{OrderID: order.ID, CheckoutRequestID: "ws_CO_100", Attempt: 1}
	if err := svc.ReconcileMpesa(context.Background(), payload); err != nil {
		t.Fatalf("ReconcileMpesa error: %v", err)
	}
	settled := f.reload(t, order.ID)
	if settled.PaymentStatus != constants.PaymentStatusCompleted || settled.ReceiptNumber != "" {
		t.Fatalf("query should settle without a receipt: %+v", settled)
	}

	result, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB12CD34E"), "")
	if err != nil || !result.Success || result.Outcome != CallbackOutcomeBackfilled {
		t.Fatalf("late callback should backfill: %+v err=%v", result, err)
	}
	stored := f.reload(t, order.ID)
	if stored.ReceiptNumber != "SAB12CD34E" || stored.PaidAmount.String() != "1750.00" {
		t.Fatalf("receipt details not backfilled: receipt=%q amount=%s", stored.ReceiptNumber, stored.PaidAmount)
	}
	if stored.PaidAt == nil || stored.PaidAt.In(mpesa.EAT).Format("2006-01-02 15:04:05") != "2024-01-01 12:00:00" {
		t.Fatalf("paid_at should come from the callback, got %v", stored.PaidAt)
	}
	if stored.PaymentStatus != constants.PaymentStatusCompleted || stored.Status != settled.Status {
		t.Fatalf("backfill must not change state: %s", StateOf(stored))
	}

	replay, err := svc.HandleMpesaCallback(context.Background(), successCallback("ws_CO_100", "SAB12CD34E"), "")
	if err != nil || replay.Outcome != CallbackOutcomeDuplicate {
		t.Fatalf("second callback should be a duplicate: %+v err=%v", replay, err)
	}
	received := 0
	for _, event := range f.notifier.Events() {
		if event == constants.NotificationEventPaymentReceived {
			received++
		}
	}
	if received != 1 {
		t.Fatalf("expected one payment_received notification, got %d", received)
	}
}
