package admin

import (
	"github.com/dukani-next/internal/authz"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/service"
)

var orderAdminErrorRules = []mappedHandlerError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Message: "order not found"},
	{Target: service.ErrOrderStatusInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrPaymentStatusInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrOrderPaidCannotCancel, Code: response.CodeConflict, Verbatim: true},
	{Target: service.ErrInvalidTransition, Code: response.CodeConflict, Verbatim: true},
	{Target: service.ErrPaymentNotProcessing, Code: response.CodeConflict, Verbatim: true},
	{Target: service.ErrMpesaNotEnabled, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrMpesaCredentials, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrMpesaConfigInvalid, Code: response.CodeServiceUnavailable, Verbatim: true},
}

var productAdminErrorRules = []mappedHandlerError{
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound, Message: "product not found"},
	{Target: service.ErrProductInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrProductSlugExists, Code: response.CodeConflict, Message: "product slug already exists"},
}

var settingAdminErrorRules = []mappedHandlerError{
	{Target: service.ErrSettingKeyInvalid, Code: response.CodeNotFound, Message: "setting key not found"},
	{Target: service.ErrSiteConfigInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrContactConfigInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrMpesaSettingInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrSMSConfigInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrSMTPConfigInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrNotificationConfigInvalid, Code: response.CodeBadRequest, Verbatim: true},
}

var notificationAdminErrorRules = []mappedHandlerError{
	{Target: service.ErrNotificationTargetInvalid, Code: response.CodeBadRequest, Message: "phone number is invalid"},
	{Target: service.ErrNotificationSendFailed, Code: response.CodeBadGateway, Verbatim: true},
	{Target: service.ErrNotificationDisabled, Code: response.CodeServiceUnavailable, Verbatim: true},
	{Target: service.ErrNotificationEventInvalid, Code: response.CodeBadRequest, Verbatim: true},
	{Target: service.ErrNotificationMessageEmpty, Code: response.CodeBadRequest, Verbatim: true},
}

var authzAdminErrorRules = []mappedHandlerError{
	{Target: authz.ErrRoleRequired, Code: response.CodeBadRequest, Message: "role is required"},
	{Target: authz.ErrRoleReserved, Code: response.CodeBadRequest, Message: "role name is reserved"},
	{Target: authz.ErrActionRequired, Code: response.CodeBadRequest, Message: "action is required"},
	{Target: authz.ErrAdminRequired, Code: response.CodeBadRequest, Message: "admin id is required"},
	{Target: authz.ErrUnavailable, Code: response.CodeServiceUnavailable, Message: "authorization service unavailable"},
}
