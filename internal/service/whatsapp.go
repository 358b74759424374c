package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/phone"
)

const whatsAppBaseURL = "https://wa.me/"

// BuildWhatsAppURL wa.me link prefilled with text; empty when number is not a valid mobile number
func BuildWhatsAppURL(number, text string) string {
	normalized, err := phone.Normalize(number)
	if err != nil {
		return ""
	}
	link := whatsAppBaseURL + normalized
	if text = strings.TrimSpace(text); text != "" {
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return link
}

// WhatsAppOrderMessage the hand-off text a customer sends to confirm an order
func WhatsAppOrderMessage(siteName string, order *models.Order, courierName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s, I would like to confirm order %s.\n", strings.TrimSpace(siteName), order.OrderNo)
	fmt.Fprintf(&b, "Items: %s (qty %d)\n", order.ProductSummary, order.TotalQuantity)

	location := make([]string, 0, 3)
	for _, part := range []string{order.Town, order.SubCounty, order.County} {
		if part = strings.TrimSpace(part); part != "" {
			location = append(location, part)
		}
	}
	if courierName == "" {
		courierName = order.CourierID
	}
	fmt.Fprintf(&b, "Delivery: %s via %s (%s)\n", strings.Join(location, ", "), courierName, order.EstimatedDelivery)
	fmt.Fprintf(&b, "Total: %s %s (incl. delivery %s)\n", order.Currency, order.TotalAmount.String(), order.DeliveryFee.String())
	fmt.Fprintf(&b, "Payment: %s\n", order.PaymentMethod)
	fmt.Fprintf(&b, "Name: %s\nPhone: %s", order.CustomerName, order.CustomerPhone)
	return b.String()
}

func (s *OrderService) whatsAppURL(order *models.Order, courierName string) string {
	if s.settingService == nil {
		return ""
	}
	contact, err := s.settingService.GetContactSetting()
	if err != nil {
		logger.Warnw("order_whatsapp_contact_load_failed", "order_id", order.ID, "error", err)
		return ""
	}
	site, err := s.settingService.GetSiteSetting()
	if err != nil {
		logger.Warnw("order_whatsapp_site_load_failed", "order_id", order.ID, "error", err)
	}
	return BuildWhatsAppURL(contact.WhatsAppNumber, WhatsAppOrderMessage(site.Name, order, courierName))
}
