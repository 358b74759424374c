package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/metrics"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/phone"
	"github.com/dukani-next/internal/queue"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/sms"

	"github.com/hibiken/asynq"
)

var notificationTemplateVarPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

const notificationMaxRetry = 5

// NotificationService order notifications. Order transitions record intents on the
// queue; the worker calls Dispatch to deliver them.
type NotificationService struct {
	settingService *SettingService
	emailService   *EmailService
	queueClient    *queue.Client
	orderRepo      repository.OrderRepository
	logRepo        repository.NotificationLogRepository
	httpClient     *http.Client
}

// NewNotificationService builds the service
func NewNotificationService(settingService *SettingService, emailService *EmailService, queueClient *queue.Client, orderRepo repository.OrderRepository, logRepo repository.NotificationLogRepository) *NotificationService {
	return &NotificationService{
		settingService: settingService,
		emailService:   emailService,
		queueClient:    queueClient,
		orderRepo:      orderRepo,
		logRepo:        logRepo,
	}
}

// SetHTTPClient overrides the client used for the SMS provider
func (s *NotificationService) SetHTTPClient(hc *http.Client) {
	s.httpClient = hc
}

// NotifyOrder records one intent per enabled channel. Failures are logged and never
// returned to the order flow.
func (s *NotificationService) NotifyOrder(order *models.Order, eventType string) {
	if s == nil || order == nil {
		return
	}
	setting, err := s.settingService.GetNotificationSetting()
	if err != nil {
		logger.Warnw("notification_setting_load_failed", "order_id", order.ID, "error", err)
		return
	}

	payloads := make([]queue.NotificationDispatchPayload, 0, 4)
	for _, channel := range []string{constants.NotificationChannelSMS, constants.NotificationChannelEmail} {
		if !setting.ChannelEnabled(eventType, channel) {
			continue
		}
		if channel == constants.NotificationChannelEmail && strings.TrimSpace(order.CustomerEmail) == "" {
			continue
		}
		payloads = append(payloads, queue.NotificationDispatchPayload{
			Channel:   channel,
			EventType: eventType,
			OrderID:   order.ID,
			Status:    order.Status,
		})
	}

	if eventType == constants.NotificationEventOrderPlaced && setting.Enabled {
		site, _ := s.settingService.GetSiteSetting()
		message := renderNotificationTemplate(setting.Templates.AdminOrderPlaced, orderTemplateVariables(order, site, ContactSetting{}))
		for _, target := range setting.AdminPhones {
			payloads = append(payloads, queue.NotificationDispatchPayload{
				Channel:   constants.NotificationChannelSMS,
				EventType: eventType,
				OrderID:   order.ID,
				To:        target,
				Message:   message,
			})
		}
		for _, target := range setting.AdminEmails {
			payloads = append(payloads, queue.NotificationDispatchPayload{
				Channel:   constants.NotificationChannelEmail,
				EventType: eventType,
				OrderID:   order.ID,
				To:        target,
				Message:   message,
			})
		}
	}

	for _, payload := range payloads {
		s.enqueue(payload)
	}
}

func (s *NotificationService) enqueue(payload queue.NotificationDispatchPayload) {
	if s.queueClient != nil && s.queueClient.Enabled() {
		err := s.queueClient.EnqueueNotification(payload, asynq.MaxRetry(notificationMaxRetry))
		if err == nil {
			return
		}
		logger.Warnw("notification_enqueue_failed",
			"channel", payload.Channel,
			"event_type", payload.EventType,
			"order_id", payload.OrderID,
			"error", err,
		)
	}
	// best effort without a queue
	if err := s.Dispatch(context.Background(), payload); err != nil {
		logger.Warnw("notification_inline_dispatch_failed",
			"channel", payload.Channel,
			"event_type", payload.EventType,
			"order_id", payload.OrderID,
			"error", err,
		)
	}
}

// Dispatch delivers one intent and writes a NotificationLog row. A returned error
// makes the worker retry.
func (s *NotificationService) Dispatch(ctx context.Context, payload queue.NotificationDispatchPayload) error {
	if s == nil {
		return nil
	}
	eventType := strings.ToLower(strings.TrimSpace(payload.EventType))
	if !isNotificationEventSupported(eventType) {
		return ErrNotificationEventInvalid
	}
	channel := strings.ToLower(strings.TrimSpace(payload.Channel))
	if channel != constants.NotificationChannelSMS && channel != constants.NotificationChannelEmail {
		return ErrNotificationChannelInvalid
	}
	payload.EventType = eventType
	payload.Channel = channel

	setting, err := s.settingService.GetNotificationSetting()
	if err != nil {
		return err
	}
	// admin targets only follow the global switch
	if !setting.Enabled || (payload.To == "" && !setting.ChannelEnabled(eventType, channel)) {
		s.record(ctx, payload, payload.To, constants.NotificationStatusSkipped, "", "disabled")
		return nil
	}

	var order *models.Order
	if payload.OrderID != 0 && s.orderRepo != nil {
		order, err = s.orderRepo.GetByID(payload.OrderID)
		if err != nil {
			return err
		}
	}

	target := strings.TrimSpace(payload.To)
	if target == "" && order != nil {
		if channel == constants.NotificationChannelSMS {
			target = order.CustomerPhone
		} else {
			target = order.CustomerEmail
		}
	}
	if target == "" {
		s.record(ctx, payload, "", constants.NotificationStatusSkipped, "", "no target")
		return nil
	}

	if eventType != constants.NotificationEventTest {
		ok, err := acquireNotificationDedupe(ctx, setting.DedupeTTLSeconds, payload, target)
		if err != nil {
			logger.Warnw("notification_dedupe_failed", "event_type", eventType, "error", err)
		}
		if err == nil && !ok {
			logger.Infow("notification_deduped", "channel", channel, "event_type", eventType, "order_id", payload.OrderID)
			return nil
		}
	}

	site, _ := s.settingService.GetSiteSetting()
	contact, _ := s.settingService.GetContactSetting()
	body := strings.TrimSpace(payload.Message)
	if body == "" && order != nil {
		variables := orderTemplateVariables(order, site, contact)
		body = renderNotificationTemplate(setting.Templates.Template(eventType), variables)
	}
	if body == "" {
		return ErrNotificationMessageEmpty
	}

	var (
		status    string
		messageID string
		sendErr   error
	)
	switch channel {
	case constants.NotificationChannelSMS:
		status, messageID, sendErr = s.sendSMS(ctx, target, body)
	case constants.NotificationChannelEmail:
		status, sendErr = s.sendEmail(target, eventType, body, order, site, contact)
	}
	if sendErr != nil {
		s.record(ctx, payload, target, constants.NotificationStatusFailed, "", sendErr.Error())
		// let the retry through
		if eventType != constants.NotificationEventTest {
			_ = cache.Del(ctx, buildNotificationDedupeKey(payload, target))
		}
		return fmt.Errorf("%w: %v", ErrNotificationSendFailed, sendErr)
	}
	s.record(ctx, payload, target, status, messageID, "")
	return nil
}

// SMSInput ad-hoc SMS
type SMSInput struct {
	Phone   string
	Message string
	OrderID uint
	Type    string
}

// SMSResult delivery outcome
type SMSResult struct {
	Simulated bool
	MessageID string
	Status    string
}

// SendSMS sends synchronously after the global and per event checks. An unconfigured
// provider yields a simulated success.
func (s *NotificationService) SendSMS(ctx context.Context, input SMSInput) (*SMSResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrNotificationMessageEmpty
	}
	eventType := strings.ToLower(strings.TrimSpace(input.Type))
	if eventType != "" && !isNotificationEventSupported(eventType) {
		return nil, ErrNotificationEventInvalid
	}
	setting, err := s.settingService.GetNotificationSetting()
	if err != nil {
		return nil, err
	}
	if !setting.Enabled {
		return nil, ErrNotificationDisabled
	}
	if eventType != "" && !setting.ChannelEnabled(eventType, constants.NotificationChannelSMS) {
		return nil, fmt.Errorf("%w: %s", ErrNotificationDisabled, eventType)
	}
	to, err := phone.E164(input.Phone)
	if err != nil {
		return nil, ErrNotificationTargetInvalid
	}

	payload := queue.NotificationDispatchPayload{
		Channel:   constants.NotificationChannelSMS,
		EventType: firstNonEmptyString(eventType, "adhoc"),
		OrderID:   input.OrderID,
		To:        to,
		Message:   message,
	}
	status, messageID, err := s.sendSMS(ctx, to, message)
	if err != nil {
		s.record(ctx, payload, to, constants.NotificationStatusFailed, "", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
	}
	s.record(ctx, payload, to, status, messageID, "")
	return &SMSResult{
		Simulated: status == constants.NotificationStatusSimulated,
		MessageID: messageID,
		Status:    status,
	}, nil
}

// SendCustomerSMS storefront variant of SendSMS: the recipient must be the customer or
// payer phone of the referenced order
func (s *NotificationService) SendCustomerSMS(ctx context.Context, input SMSInput) (*SMSResult, error) {
	if input.OrderID == 0 {
		return nil, ErrNotificationOrderRequired
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !phone.Equal(order.CustomerPhone, input.Phone) && !phone.Equal(order.PaymentPhone, input.Phone) {
		return nil, ErrPhoneMismatch
	}
	return s.SendSMS(ctx, input)
}

// SendTestSMS admin connectivity check; bypasses event toggles
func (s *NotificationService) SendTestSMS(ctx context.Context, to string) (*SMSResult, error) {
	site, _ := s.settingService.GetSiteSetting()
	message := fmt.Sprintf("Test message from %s. SMS delivery is working.", firstNonEmptyString(site.Name, "Dukani"))
	target, err := phone.E164(to)
	if err != nil {
		return nil, ErrNotificationTargetInvalid
	}
	payload := queue.NotificationDispatchPayload{
		Channel:   constants.NotificationChannelSMS,
		EventType: constants.NotificationEventTest,
		To:        target,
		Message:   message,
	}
	status, messageID, err := s.sendSMS(ctx, target, message)
	if err != nil {
		s.record(ctx, payload, target, constants.NotificationStatusFailed, "", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
	}
	s.record(ctx, payload, target, status, messageID, "")
	return &SMSResult{Simulated: status == constants.NotificationStatusSimulated, MessageID: messageID, Status: status}, nil
}

// ListLogs admin view of delivery attempts
func (s *NotificationService) ListLogs(filter repository.NotificationLogListFilter) ([]models.NotificationLog, int64, error) {
	return s.logRepo.List(filter)
}

func (s *NotificationService) sendSMS(ctx context.Context, to, body string) (status, messageID string, err error) {
	setting, err := s.settingService.GetSMSSetting()
	if err != nil {
		return "", "", err
	}
	cfg := setting.ToClientConfig()
	if !cfg.Configured() {
		logger.Infow("sms_simulated", "to", logger.MaskPhone(to), "message", body)
		return constants.NotificationStatusSimulated, "", nil
	}
	result, err := sms.NewClient(cfg, s.httpClient).Send(ctx, sms.Message{To: to, Body: body})
	if err != nil {
		return "", "", err
	}
	return constants.NotificationStatusSent, result.MessageID, nil
}

func (s *NotificationService) sendEmail(to, eventType, message string, order *models.Order, site SiteSetting, contact ContactSetting) (string, error) {
	if s.emailService == nil {
		return "", ErrEmailServiceNotConfigured
	}
	subject := notificationEmailSubject(eventType, order, site)
	html, err := RenderOrderEmail(OrderEmailData{
		SiteName:     site.Name,
		Heading:      subject,
		Message:      message,
		ContactPhone: contact.Phone,
		Order:        order,
	})
	if err != nil {
		return "", err
	}
	simulated, err := s.emailService.SendHTML(to, subject, html)
	if err != nil {
		return "", err
	}
	if simulated {
		return constants.NotificationStatusSimulated, nil
	}
	return constants.NotificationStatusSent, nil
}

func notificationEmailSubject(eventType string, order *models.Order, site SiteSetting) string {
	orderNo := ""
	if order != nil {
		orderNo = " " + order.OrderNo
	}
	switch eventType {
	case constants.NotificationEventOrderPlaced:
		return "Order" + orderNo + " received"
	case constants.NotificationEventStatusUpdate:
		return "Order" + orderNo + " update"
	case constants.NotificationEventPaymentReceived:
		return "Payment received for order" + orderNo
	case constants.NotificationEventPaymentFailed:
		return "Payment for order" + orderNo + " was not completed"
	default:
		return firstNonEmptyString(site.Name, "Dukani") + " notification"
	}
}

func (s *NotificationService) record(ctx context.Context, payload queue.NotificationDispatchPayload, target, status, messageID, errMsg string) {
	metrics.NotificationsDispatched.WithLabelValues(payload.Channel, payload.EventType, status).Inc()
	log := logger.SW("channel", payload.Channel, "event_type", payload.EventType, "order_id", payload.OrderID, "status", status)
	if status == constants.NotificationStatusFailed {
		log.Warnw("notification_dispatch_failed", "error", errMsg)
	} else {
		log.Infow("notification_dispatched")
	}
	if s.logRepo == nil {
		return
	}
	entry := &models.NotificationLog{
		Channel:           payload.Channel,
		EventType:         payload.EventType,
		Target:            maskNotificationTarget(payload.Channel, target),
		Status:            status,
		ProviderMessageID: messageID,
		Attempt:           notificationAttempt(ctx),
		Error:             truncateRunes(errMsg, 2000),
	}
	if payload.OrderID != 0 {
		orderID := payload.OrderID
		entry.OrderID = &orderID
	}
	if err := s.logRepo.Create(entry); err != nil {
		logger.Warnw("notification_log_write_failed", "error", err)
	}
}

// notificationAttempt 1-based attempt number when running inside an asynq handler
func notificationAttempt(ctx context.Context) int {
	if retried, ok := asynq.GetRetryCount(ctx); ok {
		return retried + 1
	}
	return 1
}

func maskNotificationTarget(channel, target string) string {
	if channel == constants.NotificationChannelSMS {
		return logger.MaskPhone(target)
	}
	return target
}

func orderTemplateVariables(order *models.Order, site SiteSetting, contact ContactSetting) map[string]interface{} {
	reason := ""
	if order.PaymentStatus == constants.PaymentStatusFailed {
		reason = lastNoteLine(order.Notes)
	}
	return map[string]interface{}{
		"customer_name":      order.CustomerName,
		"customer_phone":     order.CustomerPhone,
		"order_no":           order.OrderNo,
		"total_amount":       order.TotalAmount.StringFixed(2),
		"paid_amount":        order.PaidAmount.StringFixed(2),
		"receipt_number":     order.ReceiptNumber,
		"estimated_delivery": order.EstimatedDelivery,
		"status":             order.Status,
		"product_summary":    order.ProductSummary,
		"total_quantity":     order.TotalQuantity,
		"county":             order.County,
		"courier_id":         order.CourierID,
		"reason":             reason,
		"site_name":          site.Name,
		"contact_phone":      contact.Phone,
	}
}

// lastNoteLine latest note without its timestamp
func lastNoteLine(notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}
	lines := strings.Split(notes, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if strings.HasPrefix(last, "[") {
		if idx := strings.Index(last, "] "); idx > 0 {
			last = last[idx+2:]
		}
	}
	return strings.TrimPrefix(last, "M-Pesa payment failed: ")
}

func acquireNotificationDedupe(ctx context.Context, ttlSeconds int, payload queue.NotificationDispatchPayload, target string) (bool, error) {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return cache.SetNX(ctx, buildNotificationDedupeKey(payload, target), "1", time.Duration(ttlSeconds)*time.Second)
}

func buildNotificationDedupeKey(payload queue.NotificationDispatchPayload, target string) string {
	signature := strings.Join([]string{
		payload.Channel,
		payload.EventType,
		fmt.Sprintf("%d", payload.OrderID),
		payload.Status,
		strings.TrimSpace(target),
		strings.TrimSpace(payload.Message),
	}, "|")
	hash := sha1.Sum([]byte(signature))
	return "notification:dedupe:" + hex.EncodeToString(hash[:])
}

func renderNotificationTemplate(template string, variables map[string]interface{}) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return ""
	}
	return notificationTemplateVarPattern.ReplaceAllStringFunc(template, func(matched string) string {
		submatch := notificationTemplateVarPattern.FindStringSubmatch(matched)
		if len(submatch) != 2 {
			return matched
		}
		value, ok := variables[strings.TrimSpace(submatch[1])]
		if !ok {
			return ""
		}
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	})
}

