package service

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/delivery"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/metrics"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/phone"
	"github.com/dukani-next/internal/repository"

	"github.com/shopspring/decimal"
)

const maxItemQuantity = 999

// OrderNotifier receives order events for the notification outbox
type OrderNotifier interface {
	NotifyOrder(order *models.Order, eventType string)
}

// OrderService checkout and order lifecycle
type OrderService struct {
	orderRepo      repository.OrderRepository
	productRepo    repository.ProductRepository
	settingService *SettingService
	notifier       OrderNotifier
	numbers        *OrderNumberGenerator
	locations      *delivery.Dataset
}

// NewOrderService builds the service; numbers and locations fall back to process defaults when nil
func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, settingService *SettingService, notifier OrderNotifier, numbers *OrderNumberGenerator, locations *delivery.Dataset) *OrderService {
	if numbers == nil {
		numbers = defaultOrderNumberGenerator()
	}
	if locations == nil {
		locations = delivery.Default()
	}
	return &OrderService{
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		settingService: settingService,
		notifier:       notifier,
		numbers:        numbers,
		locations:      locations,
	}
}

// CheckoutItem requested line
type CheckoutItem struct {
	ProductID uint
	Quantity  int
}

// CheckoutInput storefront checkout
type CheckoutInput struct {
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Items           []CheckoutItem
	County          string
	SubCounty       string
	Town            string
	CourierID       string
	ShippingAddress string
	PaymentMethod   string
	Notes           string
}

// CheckoutResult created order plus the WhatsApp hand-off link (empty when no number is configured)
type CheckoutResult struct {
	Order       *models.Order
	WhatsAppURL string
}

// Checkout validates the cart and delivery choice, prices it and stores a pending order
func (s *OrderService) Checkout(input CheckoutInput) (*CheckoutResult, error) {
	name := truncateRunes(input.CustomerName, 120)
	if name == "" {
		return nil, ErrCustomerNameRequired
	}
	customerPhone, err := phone.Normalize(input.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustomerPhoneInvalid, err)
	}
	email := strings.TrimSpace(input.CustomerEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrCustomerEmailInvalid
		}
	}
	method := strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if method == "" {
		method = constants.PaymentMethodMpesa
	}
	if method != constants.PaymentMethodMpesa && method != constants.PaymentMethodManual {
		return nil, ErrPaymentMethodInvalid
	}

	items, err := mergeCheckoutItems(input.Items)
	if err != nil {
		return nil, err
	}

	quote, err := s.locations.Quote(delivery.QuoteInput{
		County:    input.County,
		SubCounty: input.SubCounty,
		Town:      input.Town,
		CourierID: input.CourierID,
	})
	if err != nil {
		return nil, err
	}

	lines, subtotal, err := s.priceItems(items)
	if err != nil {
		return nil, err
	}

	deliveryFee := models.NewMoneyFromInt(int64(quote.Fee))
	state := NewOrderState(method)
	order := &models.Order{
		OrderNo:           s.numbers.Next(),
		CustomerName:      name,
		CustomerPhone:     customerPhone,
		CustomerEmail:     email,
		ProductSummary:    productSummary(lines),
		TotalQuantity:     totalQuantity(lines),
		Currency:          constants.CurrencyKES,
		Subtotal:          subtotal,
		DeliveryFee:       deliveryFee,
		TotalAmount:       subtotal.Add(deliveryFee),
		County:            quote.County,
		SubCounty:         quote.SubCounty,
		Town:              quote.Town,
		CourierID:         quote.Courier.ID,
		EstimatedDelivery: quote.EstimatedDelivery,
		ShippingAddress:   truncateRunes(input.ShippingAddress, 1000),
		PaymentMethod:     state.Method,
		PaymentStatus:     state.Payment,
		Status:            state.Fulfillment,
		Notes:             truncateRunes(input.Notes, 1000),
	}

	err = s.orderRepo.Transaction(func(tx repository.OrderRepository) error {
		productRepo := s.productRepo.WithTx(tx.DB())
		for _, line := range lines {
			affected, err := productRepo.DecrementStock(line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: %s", ErrStockInsufficient, line.ProductName)
			}
		}
		return tx.Create(order, lines)
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(order.PaymentMethod, quote.Zone).Inc()
	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"payment_method", order.PaymentMethod,
		"county", order.County,
		"courier_id", order.CourierID,
		"total_amount", order.TotalAmount.String(),
	)
	s.notify(order, constants.NotificationEventOrderPlaced)

	return &CheckoutResult{
		Order:       order,
		WhatsAppURL: s.whatsAppURL(order, quote.Courier.Name),
	}, nil
}

func (s *OrderService) priceItems(items []CheckoutItem) ([]models.OrderItem, models.Money, error) {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		return nil, models.Money{}, err
	}
	byID := make(map[uint]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	lines := make([]models.OrderItem, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, models.Money{}, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
		if !product.IsActive {
			return nil, models.Money{}, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
		}
		if product.TrackStock && product.Stock < item.Quantity {
			return nil, models.Money{}, fmt.Errorf("%w: %s", ErrStockInsufficient, product.Name)
		}
		lineTotal := product.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    item.Quantity,
			TotalPrice:  models.NewMoneyFromDecimal(lineTotal),
		})
	}
	return lines, models.NewMoneyFromDecimal(subtotal), nil
}

// mergeCheckoutItems sums duplicate products and keeps the first-seen order
func mergeCheckoutItems(items []CheckoutItem) ([]CheckoutItem, error) {
	if len(items) == 0 {
		return nil, ErrOrderItemsEmpty
	}
	merged := make([]CheckoutItem, 0, len(items))
	index := make(map[uint]int, len(items))
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, ErrOrderItemInvalid
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
		} else {
			index[item.ProductID] = len(merged)
			merged = append(merged, item)
		}
	}
	for _, item := range merged {
		if item.Quantity > maxItemQuantity {
			return nil, fmt.Errorf("%w: quantity above %d", ErrOrderItemInvalid, maxItemQuantity)
		}
	}
	return merged, nil
}

func productSummary(lines []models.OrderItem) string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, line.ProductName)
	}
	return strings.Join(names, ", ")
}

func totalQuantity(lines []models.OrderItem) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

// GetPublicOrder order lookup for customers; the phone must match the checkout phone
func (s *OrderService) GetPublicOrder(orderNo, customerPhone string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !phone.Equal(order.CustomerPhone, customerPhone) {
		return nil, ErrPhoneMismatch
	}
	return order, nil
}

// GetOrder admin detail
func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders admin listing
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.List(filter)
}

// UpdateStatusInput admin fulfillment change
type UpdateStatusInput struct {
	Status string
	Note   string
}

// UpdateStatus moves fulfillment through the state machine
func (s *OrderService) UpdateStatus(id uint, input UpdateStatusInput) (*models.Order, error) {
	var changed bool
	var target OrderState
	err := s.orderRepo.Transaction(func(tx repository.OrderRepository) error {
		order, err := tx.LockByID(id)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		target, changed, err = StateOf(order).SetFulfillment(input.Status)
		if err != nil || !changed {
			return err
		}
		now := time.Now()
		updates := map[string]interface{}{"status": target.Fulfillment, "updated_at": now}
		switch target.Fulfillment {
		case constants.OrderStatusCancelled:
			updates["canceled_at"] = now
		case constants.OrderStatusDelivered:
			updates["delivered_at"] = now
		}
		if note := strings.TrimSpace(input.Note); note != "" {
			updates["notes"] = appendNote(order.Notes, note)
		}
		if target.Fulfillment == constants.OrderStatusCancelled {
			if err := releaseOrderStock(tx, s.productRepo.WithTx(tx.DB()), order.ID); err != nil {
				return err
			}
		}
		return tx.Update(order.ID, updates)
	})
	if err != nil {
		return nil, err
	}
	order, err := s.GetOrder(id)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.OrderTransitions.WithLabelValues("fulfillment", target.Fulfillment, "admin").Inc()
		logger.Infow("order_status_updated", "order_id", order.ID, "order_no", order.OrderNo, "status", order.Status)
		s.notify(order, constants.NotificationEventStatusUpdate)
	}
	return order, nil
}

// UpdatePaymentStatusInput admin payment override
type UpdatePaymentStatusInput struct {
	PaymentStatus string
	ReceiptNumber string
	Note          string
}

// UpdatePaymentStatus overrides payment; rejected when the result is not a valid combination
func (s *OrderService) UpdatePaymentStatus(id uint, input UpdatePaymentStatusInput) (*models.Order, error) {
	var changed bool
	var from, target OrderState
	err := s.orderRepo.Transaction(func(tx repository.OrderRepository) error {
		order, err := tx.LockByID(id)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		from = StateOf(order)
		target, changed, err = from.SetPayment(input.PaymentStatus)
		if err != nil || !changed {
			return err
		}
		now := time.Now()
		updates := map[string]interface{}{
			"payment_status": target.Payment,
			"status":         target.Fulfillment,
			"updated_at":     now,
		}
		if target.Payment == constants.PaymentStatusCompleted {
			if order.PaidAt == nil {
				updates["paid_at"] = now
			}
			if order.PaidAmount.IsZero() {
				updates["paid_amount"] = order.TotalAmount
			}
			if receipt := strings.TrimSpace(input.ReceiptNumber); receipt != "" {
				updates["receipt_number"] = receipt
			}
		}
		if note := strings.TrimSpace(input.Note); note != "" {
			updates["notes"] = appendNote(order.Notes, note)
		}
		return tx.Update(order.ID, updates)
	})
	if err != nil {
		return nil, err
	}
	order, err := s.GetOrder(id)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.OrderTransitions.WithLabelValues("payment", target.Payment, "admin").Inc()
		logger.Infow("order_payment_status_overridden",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"from", from.String(),
			"to", target.String(),
		)
		switch target.Payment {
		case constants.PaymentStatusCompleted:
			s.notify(order, constants.NotificationEventPaymentReceived)
		case constants.PaymentStatusFailed:
			s.notify(order, constants.NotificationEventPaymentFailed)
		}
	}
	return order, nil
}

func (s *OrderService) notify(order *models.Order, eventType string) {
	if s.notifier == nil || order == nil {
		return
	}
	s.notifier.NotifyOrder(order, eventType)
}

// appendNote adds a timestamped line to existing notes
func appendNote(existing, note string) string {
	line := fmt.Sprintf("[%s] %s", time.Now().In(mpesa.EAT).Format("2006-01-02 15:04"), strings.TrimSpace(note))
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
