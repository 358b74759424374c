package admin

import (
	"strings"
	"time"

	handlershared "github.com/dukani-next/internal/http/handlers/shared"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// UpdateOrderStatusRequest fulfillment change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdatePaymentStatusRequest payment override
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
	ReceiptNumber string `json:"receipt_number"`
	Note          string `json:"note"`
}

// GetOrders filtered order list
func (h *Handler) GetOrders(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.OrderListFilter{
		Page:          page,
		PageSize:      pageSize,
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentStatus: strings.TrimSpace(c.Query("payment_status")),
		PaymentMethod: strings.TrimSpace(c.Query("payment_method")),
		County:        strings.TrimSpace(c.Query("county")),
		Search:        strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		from, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			respondError(c, response.CodeBadRequest, "created_from must be YYYY-MM-DD", nil)
			return
		}
		filter.CreatedFrom = &from
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		to, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			respondError(c, response.CodeBadRequest, "created_to must be YYYY-MM-DD", nil)
			return
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedTo = &end
	}

	orders, total, err := h.OrderService.ListOrders(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load orders", err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetOrder order detail with its items
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(id)
	if err != nil {
		respondWithMappedError(c, err, orderAdminErrorRules, response.CodeInternal, "failed to load order")
		return
	}
	response.Success(c, order)
}

// UpdateOrderStatus moves fulfillment through the state machine
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "status is required", nil)
		return
	}
	order, err := h.OrderService.UpdateStatus(id, service.UpdateStatusInput{Status: req.Status, Note: req.Note})
	if err != nil {
		respondWithMappedError(c, err, orderAdminErrorRules, response.CodeInternal, "failed to update order status")
		return
	}
	adminID, _ := getAdminID(c)
	requestLog(c).Infow("admin_order_status_updated", "admin_id", adminID, "order_id", id, "status", order.Status)
	response.Success(c, order)
}

// UpdateOrderPaymentStatus manual payment override, for till or cash payments
func (h *Handler) UpdateOrderPaymentStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "payment_status is required", nil)
		return
	}
	order, err := h.OrderService.UpdatePaymentStatus(id, service.UpdatePaymentStatusInput{
		PaymentStatus: req.PaymentStatus,
		ReceiptNumber: req.ReceiptNumber,
		Note:          req.Note,
	})
	if err != nil {
		respondWithMappedError(c, err, orderAdminErrorRules, response.CodeInternal, "failed to update payment status")
		return
	}
	adminID, _ := getAdminID(c)
	requestLog(c).Infow("admin_order_payment_updated", "admin_id", adminID, "order_id", id, "payment_status", order.PaymentStatus)
	response.Success(c, order)
}

// QueryOrderMpesaStatus asks Daraja for the outcome of the outstanding STK push
func (h *Handler) QueryOrderMpesaStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.PaymentService.QueryMpesaStatus(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, orderAdminErrorRules, response.CodeBadGateway, "M-Pesa status query failed")
		return
	}
	response.Success(c, order)
}
