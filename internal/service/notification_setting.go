package service

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/phone"
)

const notificationTemplateMaxRunes = 480

// NotificationEventSetting channels enabled for one event
type NotificationEventSetting struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

// NotificationEventsSetting per event toggles
type NotificationEventsSetting struct {
	OrderPlaced     NotificationEventSetting `json:"order_placed"`
	StatusUpdate    NotificationEventSetting `json:"status_update"`
	PaymentReceived NotificationEventSetting `json:"payment_received"`
	PaymentFailed   NotificationEventSetting `json:"payment_failed"`
}

// NotificationTemplatesSetting message bodies with {{variable}} placeholders
type NotificationTemplatesSetting struct {
	OrderPlaced      string `json:"order_placed"`
	StatusUpdate     string `json:"status_update"`
	PaymentReceived  string `json:"payment_received"`
	PaymentFailed    string `json:"payment_failed"`
	AdminOrderPlaced string `json:"admin_order_placed"`
}

// NotificationSetting customer and shop-owner notification switches
type NotificationSetting struct {
	Enabled          bool                         `json:"enabled"`
	Events           NotificationEventsSetting    `json:"events"`
	AdminPhones      []string                     `json:"admin_phones"`
	AdminEmails      []string                     `json:"admin_emails"`
	Templates        NotificationTemplatesSetting `json:"templates"`
	DedupeTTLSeconds int                          `json:"dedupe_ttl_seconds"`
}

// NotificationDefaultSetting notifications on, SMS for every event, email for payments
func NotificationDefaultSetting() NotificationSetting {
	return NormalizeNotificationSetting(NotificationSetting{
		Enabled: true,
		Events: NotificationEventsSetting{
			OrderPlaced:     NotificationEventSetting{SMS: true, Email: true},
			StatusUpdate:    NotificationEventSetting{SMS: true, Email: false},
			PaymentReceived: NotificationEventSetting{SMS: true, Email: true},
			PaymentFailed:   NotificationEventSetting{SMS: true, Email: false},
		},
		AdminPhones: []string{},
		AdminEmails: []string{},
	})
}

func defaultNotificationTemplates() NotificationTemplatesSetting {
	return NotificationTemplatesSetting{
		OrderPlaced:      "Hi {{customer_name}}, we have received order {{order_no}} for KES {{total_amount}}. Estimated delivery: {{estimated_delivery}}. Thank you for shopping with {{site_name}}.",
		StatusUpdate:     "Hi {{customer_name}}, your order {{order_no}} is now {{status}}. {{site_name}}",
		PaymentReceived:  "Payment of KES {{paid_amount}} for order {{order_no}} received. M-Pesa receipt {{receipt_number}}. Thank you!",
		PaymentFailed:    "Payment for order {{order_no}} was not completed ({{reason}}). You can retry from the order page or call {{contact_phone}}.",
		AdminOrderPlaced: "New order {{order_no}}: {{product_summary}} x{{total_quantity}}, KES {{total_amount}}, {{county}} via {{courier_id}}. Customer {{customer_phone}}.",
	}
}

// Event toggles for eventType; test messages are always allowed on both channels
func (s NotificationSetting) Event(eventType string) NotificationEventSetting {
	switch eventType {
	case constants.NotificationEventOrderPlaced:
		return s.Events.OrderPlaced
	case constants.NotificationEventStatusUpdate:
		return s.Events.StatusUpdate
	case constants.NotificationEventPaymentReceived:
		return s.Events.PaymentReceived
	case constants.NotificationEventPaymentFailed:
		return s.Events.PaymentFailed
	case constants.NotificationEventTest:
		return NotificationEventSetting{SMS: true, Email: true}
	default:
		return NotificationEventSetting{}
	}
}

// ChannelEnabled global switch and per event toggle
func (s NotificationSetting) ChannelEnabled(eventType, channel string) bool {
	if !s.Enabled {
		return false
	}
	event := s.Event(eventType)
	switch channel {
	case constants.NotificationChannelSMS:
		return event.SMS
	case constants.NotificationChannelEmail:
		return event.Email
	default:
		return false
	}
}

// Template body for eventType
func (t NotificationTemplatesSetting) Template(eventType string) string {
	switch eventType {
	case constants.NotificationEventOrderPlaced:
		return t.OrderPlaced
	case constants.NotificationEventStatusUpdate:
		return t.StatusUpdate
	case constants.NotificationEventPaymentReceived:
		return t.PaymentReceived
	case constants.NotificationEventPaymentFailed:
		return t.PaymentFailed
	default:
		return ""
	}
}

// NormalizeNotificationSetting trims lists and restores blank templates
func NormalizeNotificationSetting(setting NotificationSetting) NotificationSetting {
	phones := make([]string, 0, len(setting.AdminPhones))
	for _, item := range dedupeTrimmed(setting.AdminPhones) {
		if normalized, err := phone.Normalize(item); err == nil {
			item = normalized
		}
		phones = append(phones, item)
	}
	setting.AdminPhones = dedupeTrimmed(phones)
	setting.AdminEmails = dedupeTrimmed(setting.AdminEmails)

	defaults := defaultNotificationTemplates()
	setting.Templates.OrderPlaced = templateOrDefault(setting.Templates.OrderPlaced, defaults.OrderPlaced)
	setting.Templates.StatusUpdate = templateOrDefault(setting.Templates.StatusUpdate, defaults.StatusUpdate)
	setting.Templates.PaymentReceived = templateOrDefault(setting.Templates.PaymentReceived, defaults.PaymentReceived)
	setting.Templates.PaymentFailed = templateOrDefault(setting.Templates.PaymentFailed, defaults.PaymentFailed)
	setting.Templates.AdminOrderPlaced = templateOrDefault(setting.Templates.AdminOrderPlaced, defaults.AdminOrderPlaced)

	if setting.DedupeTTLSeconds <= 0 {
		setting.DedupeTTLSeconds = 600
	}
	if setting.DedupeTTLSeconds > 86400 {
		setting.DedupeTTLSeconds = 86400
	}
	return setting
}

func templateOrDefault(value, fallback string) string {
	value = truncateRunes(value, notificationTemplateMaxRunes)
	if value == "" {
		return fallback
	}
	return value
}

// ValidateNotificationSetting checks admin recipients
func ValidateNotificationSetting(setting NotificationSetting) error {
	for _, item := range setting.AdminPhones {
		if _, err := phone.Normalize(item); err != nil {
			return fmt.Errorf("%w: admin phone %s is invalid", ErrNotificationConfigInvalid, item)
		}
	}
	for _, item := range setting.AdminEmails {
		if _, err := mail.ParseAddress(item); err != nil {
			return fmt.Errorf("%w: admin email %s is invalid", ErrNotificationConfigInvalid, item)
		}
	}
	return nil
}

func notificationEventToMap(event NotificationEventSetting) map[string]interface{} {
	return map[string]interface{}{"sms": event.SMS, "email": event.Email}
}

// NotificationSettingToMap settings table shape
func NotificationSettingToMap(setting NotificationSetting) models.JSON {
	return models.JSON{
		"enabled": setting.Enabled,
		"events": map[string]interface{}{
			constants.NotificationEventOrderPlaced:     notificationEventToMap(setting.Events.OrderPlaced),
			constants.NotificationEventStatusUpdate:    notificationEventToMap(setting.Events.StatusUpdate),
			constants.NotificationEventPaymentReceived: notificationEventToMap(setting.Events.PaymentReceived),
			constants.NotificationEventPaymentFailed:   notificationEventToMap(setting.Events.PaymentFailed),
		},
		"admin_phones": setting.AdminPhones,
		"admin_emails": setting.AdminEmails,
		"templates": map[string]interface{}{
			"order_placed":       setting.Templates.OrderPlaced,
			"status_update":      setting.Templates.StatusUpdate,
			"payment_received":   setting.Templates.PaymentReceived,
			"payment_failed":     setting.Templates.PaymentFailed,
			"admin_order_placed": setting.Templates.AdminOrderPlaced,
		},
		"dedupe_ttl_seconds": setting.DedupeTTLSeconds,
	}
}

func notificationEventFromJSON(raw interface{}, fallback NotificationEventSetting) NotificationEventSetting {
	source := toStringAnyMap(raw)
	if source == nil {
		return fallback
	}
	return NotificationEventSetting{
		SMS:   readBool(source, "sms", fallback.SMS),
		Email: readBool(source, "email", fallback.Email),
	}
}

func notificationSettingFromJSON(raw map[string]interface{}, fallback NotificationSetting) NotificationSetting {
	next := fallback
	if raw == nil {
		return next
	}
	next.Enabled = readBool(raw, "enabled", next.Enabled)
	if events := toStringAnyMap(raw["events"]); events != nil {
		next.Events.OrderPlaced = notificationEventFromJSON(events[constants.NotificationEventOrderPlaced], next.Events.OrderPlaced)
		next.Events.StatusUpdate = notificationEventFromJSON(events[constants.NotificationEventStatusUpdate], next.Events.StatusUpdate)
		next.Events.PaymentReceived = notificationEventFromJSON(events[constants.NotificationEventPaymentReceived], next.Events.PaymentReceived)
		next.Events.PaymentFailed = notificationEventFromJSON(events[constants.NotificationEventPaymentFailed], next.Events.PaymentFailed)
	}
	next.AdminPhones = readStringList(raw, "admin_phones", next.AdminPhones)
	next.AdminEmails = readStringList(raw, "admin_emails", next.AdminEmails)
	if templates := toStringAnyMap(raw["templates"]); templates != nil {
		next.Templates.OrderPlaced = readString(templates, "order_placed", next.Templates.OrderPlaced)
		next.Templates.StatusUpdate = readString(templates, "status_update", next.Templates.StatusUpdate)
		next.Templates.PaymentReceived = readString(templates, "payment_received", next.Templates.PaymentReceived)
		next.Templates.PaymentFailed = readString(templates, "payment_failed", next.Templates.PaymentFailed)
		next.Templates.AdminOrderPlaced = readString(templates, "admin_order_placed", next.Templates.AdminOrderPlaced)
	}
	next.DedupeTTLSeconds = readInt(raw, "dedupe_ttl_seconds", next.DedupeTTLSeconds)
	return next
}

// GetNotificationSetting stored value merged over defaults
func (s *SettingService) GetNotificationSetting() (NotificationSetting, error) {
	fallback := NotificationDefaultSetting()
	value, err := s.GetByKey(constants.SettingKeyNotificationConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return NormalizeNotificationSetting(notificationSettingFromJSON(value, fallback)), nil
}

func isNotificationEventSupported(eventType string) bool {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case constants.NotificationEventOrderPlaced,
		constants.NotificationEventStatusUpdate,
		constants.NotificationEventPaymentReceived,
		constants.NotificationEventPaymentFailed,
		constants.NotificationEventTest:
		return true
	default:
		return false
	}
}
