package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/dukani-next/internal/http/handlers/shared"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

// TestSMSRequest target of the connectivity check
type TestSMSRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// SendTestSMS sends a fixed message through the configured provider
func (h *Handler) SendTestSMS(c *gin.Context) {
	var req TestSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "phone is required", nil)
		return
	}
	result, err := h.NotificationService.SendTestSMS(c.Request.Context(), req.Phone)
	if err != nil {
		respondWithMappedError(c, err, notificationAdminErrorRules, response.CodeInternal, "failed to send test SMS")
		return
	}
	response.Success(c, gin.H{
		"status":     result.Status,
		"simulated":  result.Simulated,
		"message_id": result.MessageID,
	})
}

// AdminSMSRequest free-text SMS to any Kenyan number
type AdminSMSRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message"`
	OrderID uint   `json:"order_id"`
	Type    string `json:"type"`
}

// SendSMS staff-initiated SMS; the recipient need not be on an order
func (h *Handler) SendSMS(c *gin.Context) {
	var req AdminSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "phone is required", nil)
		return
	}
	result, err := h.NotificationService.SendSMS(c.Request.Context(), service.SMSInput{
		Phone:   req.Phone,
		Message: req.Message,
		OrderID: req.OrderID,
		Type:    req.Type,
	})
	if err != nil {
		respondWithMappedError(c, err, notificationAdminErrorRules, response.CodeInternal, "failed to send SMS")
		return
	}
	response.Success(c, gin.H{
		"status":     result.Status,
		"simulated":  result.Simulated,
		"message_id": result.MessageID,
	})
}

// GetNotificationLogs delivery attempts, newest first
func (h *Handler) GetNotificationLogs(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.NotificationLogListFilter{
		Page:      page,
		PageSize:  pageSize,
		Channel:   strings.TrimSpace(c.Query("channel")),
		Status:    strings.TrimSpace(c.Query("status")),
		EventType: strings.TrimSpace(c.Query("event_type")),
	}
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		orderID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "order_id is invalid", nil)
			return
		}
		filter.OrderID = uint(orderID)
	}
	logs, total, err := h.NotificationService.ListLogs(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load notification logs", err)
		return
	}
	response.SuccessWithPage(c, logs, response.NewPagination(page, pageSize, total))
}
