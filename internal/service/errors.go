package service

import (
	"errors"

	"github.com/dukani-next/internal/delivery"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/phone"
)

// Order errors
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderItemsEmpty       = errors.New("order has no items")
	ErrOrderItemInvalid      = errors.New("order item invalid")
	ErrCustomerNameRequired  = errors.New("customer name is required")
	ErrCustomerPhoneInvalid  = errors.New("customer phone is invalid")
	ErrCustomerEmailInvalid  = errors.New("customer email is invalid")
	ErrPaymentMethodInvalid  = errors.New("payment method invalid")
	ErrPhoneMismatch         = errors.New("phone does not match the order")
	ErrInvalidTransition     = errors.New("invalid order state transition")
	ErrOrderPaidCannotCancel = errors.New("an order with a completed payment cannot be cancelled")
	ErrOrderStatusInvalid    = errors.New("order status invalid")
	ErrPaymentStatusInvalid  = errors.New("payment status invalid")
	ErrOrderAlreadyPaid      = errors.New("order is already paid")
	ErrOrderCancelled        = errors.New("order is cancelled")
	ErrOrderNoGenerate       = errors.New("order number generation failed")
)

// Delivery errors re-exported so handlers map a single set of sentinels
var (
	ErrDeliveryCountyRequired   = delivery.ErrCountyRequired
	ErrDeliveryCourierRequired  = delivery.ErrCourierRequired
	ErrDeliveryUnknownCounty    = delivery.ErrUnknownCounty
	ErrDeliveryUnknownSubCounty = delivery.ErrUnknownSubCounty
	ErrDeliveryUnknownTown      = delivery.ErrUnknownTown
	ErrDeliveryUnknownCourier   = delivery.ErrUnknownCourier
	ErrCourierUnavailable       = delivery.ErrCourierUnavailable
)

// Product errors
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrProductSlugExists  = errors.New("product slug already exists")
	ErrProductInvalid     = errors.New("product invalid")
	ErrStockInsufficient  = errors.New("insufficient stock")
)

// Payment errors; the M-Pesa messages are surfaced to the caller verbatim
var (
	ErrMpesaNotEnabled          = mpesa.ErrNotEnabled
	ErrMpesaCredentials         = mpesa.ErrCredentialsIncomplete
	ErrMpesaConfigInvalid       = mpesa.ErrConfigInvalid
	ErrPaymentPhoneInvalid      = phone.ErrInvalid
	ErrPaymentAmountInvalid     = errors.New("payment amount invalid")
	ErrPaymentGateway           = errors.New("payment gateway request failed")
	ErrPaymentMethodNotGateway  = errors.New("order is not paid through M-Pesa")
	ErrPaymentCallbackInvalid   = mpesa.ErrCallbackInvalid
	ErrPaymentCallbackForbidden = errors.New("payment callback token mismatch")
	ErrPaymentNotProcessing     = errors.New("no M-Pesa payment is awaiting confirmation")
)

// Notification errors
var (
	ErrNotificationDisabled       = errors.New("notifications are disabled")
	ErrNotificationEventInvalid   = errors.New("notification event invalid")
	ErrNotificationChannelInvalid = errors.New("notification channel invalid")
	ErrNotificationTargetInvalid  = errors.New("notification target invalid")
	ErrNotificationMessageEmpty   = errors.New("notification message is empty")
	ErrNotificationSendFailed     = errors.New("notification send failed")
	ErrNotificationOrderRequired  = errors.New("orderId is required")
	ErrEmailServiceNotConfigured  = errors.New("email service is not configured")
	ErrInvalidEmail               = errors.New("invalid email address")
	ErrEmailRecipientRejected     = errors.New("email recipient rejected")
)

// Setting errors
var (
	ErrSettingKeyInvalid         = errors.New("setting key invalid")
	ErrSiteConfigInvalid         = errors.New("site config invalid")
	ErrContactConfigInvalid      = errors.New("contact config invalid")
	ErrMpesaSettingInvalid       = errors.New("mpesa config invalid")
	ErrSMSConfigInvalid          = errors.New("sms config invalid")
	ErrSMTPConfigInvalid         = errors.New("smtp config invalid")
	ErrNotificationConfigInvalid = errors.New("notification config invalid")
)

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrWeakPassword       = errors.New("password does not meet the policy")
)

// Dashboard errors
var (
	ErrDashboardRangeInvalid = errors.New("dashboard range invalid")
)

// Captcha errors
var (
	ErrCaptchaRequired = errors.New("captcha is required")
	ErrCaptchaInvalid  = errors.New("captcha is invalid")
	ErrCaptchaDisabled = errors.New("captcha is disabled")
)
