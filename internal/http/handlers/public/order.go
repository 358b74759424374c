package public

import (
	"strings"

	"github.com/dukani-next/internal/constants"
	handlershared "github.com/dukani-next/internal/http/handlers/shared"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutItemRequest one cart line
type CheckoutItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// CheckoutRequest guest checkout body
type CheckoutRequest struct {
	CustomerName    string                `json:"customer_name"`
	CustomerPhone   string                `json:"customer_phone"`
	CustomerEmail   string                `json:"customer_email"`
	Items           []CheckoutItemRequest `json:"items" binding:"required,dive"`
	County          string                `json:"county"`
	SubCounty       string                `json:"sub_county"`
	Town            string                `json:"town"`
	CourierID       string                `json:"courier_id"`
	ShippingAddress string                `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	Notes           string                `json:"notes"`
	handlershared.CaptchaPayloadRequest
}

// CreateOrder checkout; answers with the order and the WhatsApp hand-off link
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := h.CaptchaService.Verify(constants.CaptchaSceneCheckout, req.ToServicePayload()); err != nil {
		respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "captcha check failed")
		return
	}

	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	result, err := h.OrderService.Checkout(service.CheckoutInput{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		Items:           items,
		County:          req.County,
		SubCounty:       req.SubCounty,
		Town:            req.Town,
		CourierID:       req.CourierID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "failed to create order")
		return
	}
	response.Success(c, gin.H{
		"order":        result.Order,
		"whatsapp_url": result.WhatsAppURL,
	})
}

// GetOrderByOrderNo customer lookup; the phone query must match the checkout phone
func (h *Handler) GetOrderByOrderNo(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	phone := strings.TrimSpace(c.Query("phone"))
	if orderNo == "" || phone == "" {
		respondError(c, response.CodeBadRequest, "order number and phone are required", nil)
		return
	}
	order, err := h.OrderService.GetPublicOrder(orderNo, phone)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "failed to load order")
		return
	}
	response.Success(c, order)
}
