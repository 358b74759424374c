package public

import (
	"net/http"

	"github.com/dukani-next/internal/constants"
	handlershared "github.com/dukani-next/internal/http/handlers/shared"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SendSMSRequest SMS dispatch body
type SendSMSRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	OrderID uint   `json:"orderId"`
	Type    string `json:"type"`
	handlershared.CaptchaPayloadRequest
}

// SendSMS immediate SMS to a phone on the referenced order; an unconfigured provider
// answers with a simulated success
func (h *Handler) SendSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "phone is required"})
		return
	}

	if err := h.CaptchaService.Verify(constants.CaptchaSceneSMS, req.ToServicePayload()); err != nil {
		code, msg := mappedMessage(err, smsErrorRules, response.CodeInternal)
		c.JSON(code, gin.H{"success": false, "error": msg})
		return
	}

	result, err := h.NotificationService.SendCustomerSMS(c.Request.Context(), service.SMSInput{
		Phone:   req.Phone,
		Message: req.Message,
		OrderID: req.OrderID,
		Type:    req.Type,
	})
	if err != nil {
		code, msg := mappedMessage(err, smsErrorRules, response.CodeInternal)
		if code >= response.CodeInternal {
			requestLog(c).Errorw("sms_handler_failed", "order_id", req.OrderID, "error", err)
		}
		c.JSON(code, gin.H{"success": false, "error": msg})
		return
	}
	message := "SMS sent"
	if result.Simulated {
		message = "SMS simulated: no provider configured"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}
