package public

import (
	"io"
	"net/http"

	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxCallbackBodyBytes = 64 << 10

// STKPushRequest payment initiation body
type STKPushRequest struct {
	Phone            string          `json:"phone"`
	Amount           decimal.Decimal `json:"amount"`
	OrderID          uint            `json:"orderId"`
	AccountReference string          `json:"accountReference"`
}

// InitiateMpesaPayment sends the STK prompt to the customer's phone
func (h *Handler) InitiateMpesaPayment(c *gin.Context) {
	var req STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.OrderID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderId is required"})
		return
	}

	outcome, err := h.PaymentService.InitiateSTKPush(c.Request.Context(), service.STKPushInput{
		Phone:            req.Phone,
		Amount:           req.Amount,
		OrderID:          req.OrderID,
		AccountReference: req.AccountReference,
	})
	if err != nil {
		code, msg := stkPushFailure(err)
		switch {
		case code == response.CodeBadGateway:
			requestLog(c).Warnw("mpesa_stk_push_upstream_failed", "order_id", req.OrderID, "error", err)
		case code >= response.CodeInternal:
			requestLog(c).Errorw("mpesa_stk_push_handler_failed", "order_id", req.OrderID, "error", err)
		}
		c.JSON(code, gin.H{"success": false, "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           outcome.Message,
		"checkoutRequestId": outcome.CheckoutRequestID,
		"merchantRequestId": outcome.MerchantRequestID,
	})
}

// MpesaCallback Daraja result webhook. Always HTTP 200; Daraja does not usefully retry.
func (h *Handler) MpesaCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBodyBytes))
	if err != nil {
		requestLog(c).Warnw("mpesa_callback_read_failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	result, err := h.PaymentService.HandleMpesaCallback(c.Request.Context(), body, c.Query("token"))
	if err != nil {
		requestLog(c).Warnw("mpesa_callback_rejected", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": result.Success})
}
