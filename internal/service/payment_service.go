package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/metrics"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/phone"
	"github.com/dukani-next/internal/queue"
	"github.com/dukani-next/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMpesaQueryDelay = 60 * time.Second
	maxMpesaQueryAttempts  = 5
)

// PaymentService M-Pesa Express payments
type PaymentService struct {
	orderRepo      repository.OrderRepository
	settingService *SettingService
	queueClient    *queue.Client
	notifier       OrderNotifier
	orderCfg       config.OrderConfig
	httpClient     *http.Client
}

// NewPaymentService builds the service
func NewPaymentService(orderRepo repository.OrderRepository, settingService *SettingService, queueClient *queue.Client, notifier OrderNotifier, orderCfg config.OrderConfig) *PaymentService {
	return &PaymentService{
		orderRepo:      orderRepo,
		settingService: settingService,
		queueClient:    queueClient,
		notifier:       notifier,
		orderCfg:       orderCfg,
	}
}

// SetHTTPClient overrides the client used for Daraja calls
func (s *PaymentService) SetHTTPClient(hc *http.Client) {
	s.httpClient = hc
}

// STKPushInput payment prompt request
type STKPushInput struct {
	Phone            string
	Amount           decimal.Decimal
	OrderID          uint
	AccountReference string
}

// STKPushOutcome accepted prompt
type STKPushOutcome struct {
	Order             *models.Order
	Message           string
	CheckoutRequestID string
	MerchantRequestID string
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// InitiateSTKPush sends the M-Pesa prompt and moves the order to processing.
// Configuration and order checks fail before any gateway call or write.
func (s *PaymentService) InitiateSTKPush(ctx context.Context, input STKPushInput) (*STKPushOutcome, error) {
	log := paymentLogger("order_id", input.OrderID)

	setting, err := s.settingService.GetMpesaSetting()
	if err != nil {
		log.Errorw("mpesa_setting_load_failed", "error", err)
		return nil, err
	}
	gatewayCfg := setting.ToGatewayConfig()
	if err := mpesa.ValidateConfig(gatewayCfg); err != nil {
		metrics.STKPushRequests.WithLabelValues("not_configured").Inc()
		return nil, err
	}

	if input.OrderID == 0 {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != constants.PaymentMethodMpesa {
		return nil, ErrPaymentMethodNotGateway
	}
	if _, err := StateOf(order).StartPayment(); err != nil {
		return nil, err
	}

	rawPhone := strings.TrimSpace(input.Phone)
	if rawPhone == "" {
		rawPhone = order.CustomerPhone
	}
	msisdn, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, ErrPaymentPhoneInvalid
	}

	amount := input.Amount
	if amount.IsZero() {
		amount = order.TotalAmount.Decimal
	}
	// Daraja only takes whole shillings
	amount = amount.Ceil()
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrPaymentAmountInvalid
	}

	accountRef := strings.TrimSpace(input.AccountReference)
	if accountRef == "" {
		accountRef = firstNonEmptyString(setting.AccountReference, order.OrderNo)
	}

	site, err := s.settingService.GetSiteSetting()
	if err != nil {
		log.Warnw("mpesa_site_setting_load_failed", "error", err)
	}

	client := s.gatewayClient(gatewayCfg)
	result, err := client.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            msisdn,
		Amount:           amount.IntPart(),
		AccountReference: accountRef,
		TransactionDesc:  "Order " + order.OrderNo,
		CallbackURL:      setting.CallbackURLFor(site.BaseURL),
	})
	if err != nil {
		var gwErr *mpesa.GatewayError
		if errors.As(err, &gwErr) {
			metrics.STKPushRequests.WithLabelValues("rejected").Inc()
			log.Warnw("mpesa_stk_push_rejected", "code", gwErr.Code, "message", gwErr.Message)
			return nil, err
		}
		metrics.STKPushRequests.WithLabelValues("error").Inc()
		log.Errorw("mpesa_stk_push_failed", "error", err)
		if errors.Is(err, mpesa.ErrPhoneInvalid) || errors.Is(err, mpesa.ErrAmountInvalid) || errors.Is(err, mpesa.ErrConfigInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	metrics.STKPushRequests.WithLabelValues("accepted").Inc()

	err = s.orderRepo.Transaction(func(tx repository.OrderRepository) error {
		locked, err := tx.LockByID(order.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrOrderNotFound
		}
		next, err := StateOf(locked).StartPayment()
		if err != nil {
			return err
		}
		return tx.Update(locked.ID, map[string]interface{}{
			"payment_status":      next.Payment,
			"payment_reference":   result.CheckoutRequestID,
			"merchant_request_id": result.MerchantRequestID,
			"payment_phone":       msisdn,
		})
	})
	if err != nil {
		// the prompt is out; the status query still reconciles it once the customer answers
		log.Errorw("mpesa_stk_push_persist_failed", "checkout_request_id", result.CheckoutRequestID, "error", err)
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues("payment", constants.PaymentStatusProcessing, "stk_push").Inc()
	log.Infow("mpesa_stk_push_accepted",
		"order_no", order.OrderNo,
		"checkout_request_id", result.CheckoutRequestID,
		"merchant_request_id", result.MerchantRequestID,
		"phone", logger.MaskPhone(msisdn),
		"amount", amount.String(),
	)

	s.enqueueStatusQuery(order.ID, result.CheckoutRequestID, 1)

	updated, err := s.orderRepo.GetByID(order.ID)
	if err != nil || updated == nil {
		updated = order
	}
	return &STKPushOutcome{
		Order:             updated,
		Message:           firstNonEmptyString(result.CustomerMessage, result.ResponseDescription, "STK push sent"),
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
	}, nil
}

func (s *PaymentService) gatewayClient(cfg *mpesa.Config) *mpesa.Client {
	opts := make([]mpesa.Option, 0, 2)
	if store := cache.NewTokenStore(); store != nil {
		opts = append(opts, mpesa.WithTokenStore(store))
	}
	if s.httpClient != nil {
		opts = append(opts, mpesa.WithHTTPClient(s.httpClient))
	}
	return mpesa.NewClient(cfg, opts...)
}

func (s *PaymentService) queryDelay() time.Duration {
	if s.orderCfg.MpesaQueryDelaySeconds > 0 {
		return time.Duration(s.orderCfg.MpesaQueryDelaySeconds) * time.Second
	}
	return defaultMpesaQueryDelay
}

func (s *PaymentService) enqueueStatusQuery(orderID uint, checkoutRequestID string, attempt int) {
	if s.queueClient == nil || !s.queueClient.Enabled() {
		return
	}
	err := s.queueClient.EnqueueMpesaStatusQuery(queue.MpesaStatusQueryPayload{
		OrderID:           orderID,
		CheckoutRequestID: checkoutRequestID,
		Attempt:           attempt,
	}, s.queryDelay()*time.Duration(attempt))
	if err != nil {
		paymentLogger("order_id", orderID).Warnw("mpesa_status_query_enqueue_failed", "attempt", attempt, "error", err)
	}
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
