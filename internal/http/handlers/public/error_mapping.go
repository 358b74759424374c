package public

import (
	"errors"

	handlershared "github.com/dukani-next/internal/http/handlers/shared"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError = handlershared.MappedError

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, rules, fallbackCode, fallbackMsg)
}

var deliveryErrorRules = []mappedHandlerError{
	{Target: service.ErrDeliveryCountyRequired, Code: response.CodeBadRequest, Message: "county is required"},
	{Target: service.ErrDeliveryCourierRequired, Code: response.CodeBadRequest, Message: "courier is required"},
	{Target: service.ErrDeliveryUnknownCounty, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrDeliveryUnknownSubCounty, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrDeliveryUnknownTown, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrDeliveryUnknownCourier, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrCourierUnavailable, Code: response.CodeBadRequest, Verbatim: true},
}

var checkoutErrorRules = handlershared.ConcatMappedErrors(deliveryErrorRules, []mappedHandlerError{
	{Target: service.ErrCustomerNameRequired, Code: response.CodeBadRequest, Message: "customer name is required"},
	{Target: service.ErrCustomerPhoneInvalid, Code: response.CodeBadRequest, Message: "customer phone is invalid"},
	{Target: service.ErrCustomerEmailInvalid, Code: response.CodeBadRequest, Message: "customer email is invalid"},
	{Target: service.ErrPaymentMethodInvalid, Code: response.CodeBadRequest, Message: "payment method is invalid"},
	{Target: service.ErrOrderItemsEmpty, Code: response.CodeBadRequest, Message: "order has no items"},
	{Target: service.ErrOrderItemInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrProductNotFound, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrProductUnavailable, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrStockInsufficient, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrCaptchaRequired, Code: response.CodeBadRequest, Message: "captcha is required"},
	{Target: service.ErrCaptchaInvalid, Code: response.CodeBadRequest, Message: "captcha is invalid"},
	{Target: service.ErrOrderNoGenerate, Code: response.CodeInternal, Message: "order number generation failed"},
})

var orderLookupErrorRules = []mappedHandlerError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Message: "order not found"},
	{Target: service.ErrPhoneMismatch, Code: response.CodeNotFound, Message: "order not found"},
	{Target: service.ErrCustomerPhoneInvalid, Code: response.CodeBadRequest, Message: "phone is invalid"},
}

// M-Pesa messages reach the customer verbatim
var stkPushErrorRules = []mappedHandlerError{
	{Target: service.ErrMpesaNotEnabled, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrMpesaCredentials, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrMpesaConfigInvalid, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Message: "order not found"},
	{Target: service.ErrPaymentMethodNotGateway, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrOrderAlreadyPaid, Code: response.CodeConflict, Verbatim: true},
	{Target: service.ErrOrderCancelled, Code: response.CodeConflict, Verbatim: true},
	{Target: service.ErrInvalidTransition, Code: response.CodeConflict, Verbatim: true},
	{Target: service.ErrPaymentPhoneInvalid, Code: response.CodeBadRequest, Message: "phone number is invalid"},
	{Target: service.ErrPaymentAmountInvalid, Code: response.CodeBadRequest, Message: "amount is invalid"},
	{Target: service.ErrPaymentGateway, Code: response.CodeBadGateway, Verbatim: true},
}

var smsErrorRules = []mappedHandlerError{
	{Target: service.ErrNotificationDisabled, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrNotificationEventInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrNotificationMessageEmpty, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrNotificationTargetInvalid, Code: response.CodeBadRequest, Message: "phone number is invalid"},
	{Target: service.ErrNotificationSendFailed, Code: response.CodeBadGateway, Verbatim: true},
	{Target: service.ErrNotificationOrderRequired, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrOrderNotFound, Code: response.CodeForbidden, Message: "phone does not match the order"},
	{Target: service.ErrPhoneMismatch, Code: response.CodeForbidden, Message: "phone does not match the order"},
	{Target: service.ErrCaptchaRequired, Code: response.CodeBadRequest, Message: "captcha is required"},
	{Target: service.ErrCaptchaInvalid, Code: response.CodeBadRequest, Message: "captcha is invalid"},
}

// mappedMessage message and code of the first matching rule, or the fallback with err's text
func mappedMessage(err error, rules []mappedHandlerError, fallbackCode int) (int, string) {
	if rule, ok := handlershared.MatchMappedError(err, rules); ok {
		return rule.Code, rule.MessageFor(err)
	}
	return fallbackCode, err.Error()
}

// stkPushFailure a Daraja rejection is an upstream failure whose message the customer sees as-is
func stkPushFailure(err error) (int, string) {
	if rule, ok := handlershared.MatchMappedError(err, stkPushErrorRules); ok {
		return rule.Code, rule.MessageFor(err)
	}
	var gatewayErr *mpesa.GatewayError
	if errors.As(err, &gatewayErr) {
		return response.CodeBadGateway, gatewayErr.Error()
	}
	return response.CodeInternal, err.Error()
}
