package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/metrics"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/phone"
	"github.com/dukani-next/internal/queue"
	"github.com/dukani-next/internal/repository"
)

// Callback outcomes
const (
	CallbackOutcomeApplied   = "applied"
	CallbackOutcomeDuplicate = "duplicate"
	// CallbackOutcomeBackfilled a settled payment gained the receipt details it was missing
	CallbackOutcomeBackfilled = "backfilled"
	CallbackOutcomeUnknown   = "unknown"
)

const (
	paymentSourceCallback = "callback"
	paymentSourceQuery    = "query"
)

// MpesaCallbackResult acknowledgement for Daraja
type MpesaCallbackResult struct {
	Success bool
	Outcome string
	Order   *models.Order
}

// gatewayResult a final STK push answer from either the callback or the status query
type gatewayResult struct {
	Source            string
	CheckoutRequestID string
	Success           bool
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Phone             string
	Amount            models.Money
	PaidAt            *time.Time
}

// HandleMpesaCallback applies a Daraja STK callback. Unknown references are acknowledged
// with Success false and nothing is written; replays of a settled payment are no-ops.
func (s *PaymentService) HandleMpesaCallback(ctx context.Context, body []byte, token string) (*MpesaCallbackResult, error) {
	setting, err := s.settingService.GetMpesaSetting()
	if err != nil {
		return nil, err
	}
	if setting.CallbackToken != "" && subtle.ConstantTimeCompare([]byte(setting.CallbackToken), []byte(strings.TrimSpace(token))) != 1 {
		metrics.MpesaCallbacks.WithLabelValues(paymentSourceCallback, "forbidden").Inc()
		paymentLogger().Warnw("mpesa_callback_token_mismatch")
		return nil, ErrPaymentCallbackForbidden
	}

	callback, err := mpesa.ParseCallback(body)
	if err != nil {
		metrics.MpesaCallbacks.WithLabelValues(paymentSourceCallback, "invalid").Inc()
		paymentLogger().Warnw("mpesa_callback_invalid", "error", err)
		return nil, err
	}

	result := gatewayResult{
		Source:            paymentSourceCallback,
		CheckoutRequestID: callback.CheckoutRequestID,
		Success:           callback.Succeeded(),
		ResultCode:        callback.ResultCode,
		ResultDesc:        callback.ResultDesc,
		ReceiptNumber:     callback.Metadata.MpesaReceiptNumber,
		Phone:             callback.Metadata.PhoneNumber,
		Amount:            models.NewMoneyFromDecimal(callback.Metadata.Amount),
		PaidAt:            callback.Metadata.TransactionDate,
	}
	return s.applyGatewayResult(ctx, result)
}

func (s *PaymentService) applyGatewayResult(ctx context.Context, result gatewayResult) (*MpesaCallbackResult, error) {
	log := paymentLogger(
		"source", result.Source,
		"checkout_request_id", result.CheckoutRequestID,
		"result_code", result.ResultCode,
	)
	log.Infow("mpesa_result_received", "result_desc", result.ResultDesc)

	var (
		outcome    = CallbackOutcomeApplied
		orderID    uint
		next       OrderState
		reinstated bool
	)
	err := s.orderRepo.Transaction(func(tx repository.OrderRepository) error {
		order, err := tx.LockByPaymentReference(result.CheckoutRequestID)
		if err != nil {
			return err
		}
		if order == nil {
			outcome = CallbackOutcomeUnknown
			return nil
		}
		orderID = order.ID

		var changed bool
		next, changed, reinstated, err = StateOf(order).ApplyPaymentResult(result.Success)
		if err != nil {
			return err
		}
		if !changed {
			if updates := receiptBackfill(order, result); len(updates) > 0 {
				outcome = CallbackOutcomeBackfilled
				return tx.Update(order.ID, updates)
			}
			outcome = CallbackOutcomeDuplicate
			return nil
		}
		updates := paymentResultUpdates(order, next, result, reinstated)
		if reinstated {
			short, err := reserveOrderStock(tx, repository.NewProductRepository(tx.DB()), order.ID)
			if err != nil {
				return err
			}
			if len(short) > 0 {
				log.Warnw("mpesa_reinstated_stock_short", "order_id", order.ID, "products", short)
				notes, _ := updates["notes"].(string)
				updates["notes"] = appendNote(notes, "Stock short for: "+strings.Join(short, ", "))
			}
		}
		return tx.Update(order.ID, updates)
	})
	if err != nil {
		metrics.MpesaCallbacks.WithLabelValues(result.Source, "error").Inc()
		log.Errorw("mpesa_result_apply_failed", "error", err)
		return nil, err
	}
	metrics.MpesaCallbacks.WithLabelValues(result.Source, outcome).Inc()

	switch outcome {
	case CallbackOutcomeUnknown:
		log.Warnw("mpesa_result_order_not_found")
		return &MpesaCallbackResult{Success: false, Outcome: outcome}, nil
	case CallbackOutcomeDuplicate:
		log.Infow("mpesa_result_duplicate", "order_id", orderID)
		order, _ := s.orderRepo.GetByID(orderID)
		return &MpesaCallbackResult{Success: true, Outcome: outcome, Order: order}, nil
	case CallbackOutcomeBackfilled:
		log.Infow("mpesa_receipt_backfilled", "order_id", orderID, "receipt_number", result.ReceiptNumber)
		order, _ := s.orderRepo.GetByID(orderID)
		return &MpesaCallbackResult{Success: true, Outcome: outcome, Order: order}, nil
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil || order == nil {
		return &MpesaCallbackResult{Success: true, Outcome: outcome}, nil
	}
	metrics.OrderTransitions.WithLabelValues("payment", next.Payment, result.Source).Inc()
	log.Infow("mpesa_result_applied",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"payment_status", order.PaymentStatus,
		"status", order.Status,
		"receipt_number", order.ReceiptNumber,
		"reinstated", reinstated,
	)
	if s.notifier != nil {
		if next.Payment == constants.PaymentStatusCompleted {
			s.notifier.NotifyOrder(order, constants.NotificationEventPaymentReceived)
		} else {
			s.notifier.NotifyOrder(order, constants.NotificationEventPaymentFailed)
		}
	}
	return &MpesaCallbackResult{Success: true, Outcome: outcome, Order: order}, nil
}

func paymentResultUpdates(order *models.Order, next OrderState, result gatewayResult, reinstated bool) map[string]interface{} {
	updates := map[string]interface{}{
		"payment_status": next.Payment,
		"status":         next.Fulfillment,
	}
	if !result.Success {
		desc := firstNonEmptyString(result.ResultDesc, fmt.Sprintf("result code %d", result.ResultCode))
		updates["notes"] = appendNote(order.Notes, "M-Pesa payment failed: "+desc)
		return updates
	}

	updates["receipt_number"] = strings.TrimSpace(result.ReceiptNumber)
	updates["paid_amount"] = result.Amount
	updates["paid_at"] = result.PaidAt
	if result.Phone != "" {
		if normalized, err := phone.Normalize(result.Phone); err == nil {
			updates["payment_phone"] = normalized
		} else {
			updates["payment_phone"] = result.Phone
		}
	}
	if reinstated {
		updates["canceled_at"] = nil
		updates["notes"] = appendNote(order.Notes, "Payment received after cancellation; order reinstated")
	}
	return updates
}

// receiptBackfill fills in what the status query cannot report when the callback
// arrives after the query already settled the payment. The state is left alone.
func receiptBackfill(order *models.Order, result gatewayResult) map[string]interface{} {
	receipt := strings.TrimSpace(result.ReceiptNumber)
	if !result.Success || receipt == "" || order.PaymentStatus != constants.PaymentStatusCompleted || order.ReceiptNumber != "" {
		return nil
	}
	updates := map[string]interface{}{"receipt_number": receipt}
	if result.Amount.IsPositive() {
		updates["paid_amount"] = result.Amount
	}
	if result.PaidAt != nil {
		updates["paid_at"] = result.PaidAt
	}
	if result.Phone != "" {
		if normalized, err := phone.Normalize(result.Phone); err == nil {
			updates["payment_phone"] = normalized
		}
	}
	return updates
}

// ReconcileMpesa asks Daraja for the outcome of an STK push still marked processing.
// A prompt the customer has not answered is re-queued until maxMpesaQueryAttempts.
func (s *PaymentService) ReconcileMpesa(ctx context.Context, payload queue.MpesaStatusQueryPayload) error {
	log := paymentLogger("order_id", payload.OrderID, "checkout_request_id", payload.CheckoutRequestID, "attempt", payload.Attempt)

	order, err := s.orderRepo.GetByID(payload.OrderID)
	if err != nil {
		return err
	}
	if order == nil || order.PaymentReference != payload.CheckoutRequestID || order.PaymentStatus != constants.PaymentStatusProcessing {
		log.Debugw("mpesa_reconcile_not_needed")
		return nil
	}

	setting, err := s.settingService.GetMpesaSetting()
	if err != nil {
		return err
	}
	gatewayCfg := setting.ToGatewayConfig()
	if err := mpesa.ValidateConfig(gatewayCfg); err != nil {
		log.Warnw("mpesa_reconcile_skipped", "error", err)
		return nil
	}

	status, err := s.gatewayClient(gatewayCfg).QuerySTKStatus(ctx, payload.CheckoutRequestID)
	if err != nil {
		var gwErr *mpesa.GatewayError
		if errors.As(err, &gwErr) {
			log.Warnw("mpesa_reconcile_rejected", "code", gwErr.Code, "message", gwErr.Message)
			return nil
		}
		return err
	}
	if status.Pending {
		if payload.Attempt < maxMpesaQueryAttempts {
			s.enqueueStatusQuery(order.ID, payload.CheckoutRequestID, payload.Attempt+1)
		} else {
			log.Infow("mpesa_reconcile_gave_up")
		}
		return nil
	}

	now := time.Now()
	_, err = s.applyGatewayResult(ctx, gatewayResult{
		Source:            paymentSourceQuery,
		CheckoutRequestID: payload.CheckoutRequestID,
		Success:           status.ResultCode == mpesa.ResultCodeSuccess,
		ResultCode:        status.ResultCode,
		ResultDesc:        status.ResultDesc,
		Phone:             order.PaymentPhone,
		Amount:            order.TotalAmount,
		PaidAt:            &now,
	})
	return err
}

// QueryMpesaStatus admin-triggered status query for the order's outstanding STK push
func (s *PaymentService) QueryMpesaStatus(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus != constants.PaymentStatusProcessing || order.PaymentReference == "" {
		return nil, fmt.Errorf("%w: payment is %s", ErrPaymentNotProcessing, order.PaymentStatus)
	}
	setting, err := s.settingService.GetMpesaSetting()
	if err != nil {
		return nil, err
	}
	if err := mpesa.ValidateConfig(setting.ToGatewayConfig()); err != nil {
		return nil, err
	}
	err = s.ReconcileMpesa(ctx, queue.MpesaStatusQueryPayload{
		OrderID:           order.ID,
		CheckoutRequestID: order.PaymentReference,
		Attempt:           maxMpesaQueryAttempts,
	})
	if err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(order.ID)
}

// ReconcileStale queries every STK push that has been processing longer than age
func (s *PaymentService) ReconcileStale(ctx context.Context, age time.Duration, limit int) (int, error) {
	orders, err := s.orderRepo.ListAwaitingPayment(time.Now().Add(-age), limit)
	if err != nil {
		return 0, err
	}
	checked := 0
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return checked, err
		}
		err := s.ReconcileMpesa(ctx, queue.MpesaStatusQueryPayload{
			OrderID:           order.ID,
			CheckoutRequestID: order.PaymentReference,
			Attempt:           maxMpesaQueryAttempts,
		})
		if err != nil {
			paymentLogger("order_id", order.ID).Warnw("mpesa_reconcile_failed", "error", err)
			continue
		}
		checked++
	}
	return checked, nil
}
