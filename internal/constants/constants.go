package constants

// Order fulfillment status
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment status
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
)

// Payment methods
const (
	PaymentMethodManual = "manual"
	PaymentMethodMpesa  = "mpesa"
)

// M-Pesa payment modes
const (
	MpesaModePaybill = "paybill"
	MpesaModeTill    = "till"
)

// M-Pesa environments
const (
	MpesaEnvSandbox    = "sandbox"
	MpesaEnvProduction = "production"
)

// SMS providers
const (
	SMSProviderNone           = ""
	SMSProviderAfricasTalking = "africastalking"
)

// Notification channels
const (
	NotificationChannelSMS   = "sms"
	NotificationChannelEmail = "email"
)

// Notification event types
const (
	NotificationEventOrderPlaced     = "order_placed"
	NotificationEventStatusUpdate    = "status_update"
	NotificationEventPaymentReceived = "payment_received"
	NotificationEventPaymentFailed   = "payment_failed"
	NotificationEventTest            = "test"
)

// Notification log status
const (
	NotificationStatusSent      = "sent"
	NotificationStatusFailed    = "failed"
	NotificationStatusSimulated = "simulated"
	NotificationStatusSkipped   = "skipped"
)

// Setting keys
const (
	SettingKeySiteConfig         = "site_config"
	SettingKeyContactConfig      = "contact_config"
	SettingKeyMpesaConfig        = "mpesa_config"
	SettingKeySMSConfig          = "sms_config"
	SettingKeySMTPConfig         = "smtp_config"
	SettingKeyNotificationConfig = "notification_config"
	SettingKeyDashboardConfig    = "dashboard_config"
)

// Captcha
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
	CaptchaSceneCheckout = "checkout"
	CaptchaSceneSMS      = "sms"
)

// Queues and task types
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskNotificationDispatch = "notification:dispatch"
	TaskMpesaStatusQuery     = "payment:mpesa_query"
)

// Currency
const (
	CurrencyKES   = "KES"
	CountryCodeKE = "254"
)
