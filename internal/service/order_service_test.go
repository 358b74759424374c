package service

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/repository"
)

func TestMergeCheckoutItems(t *testing.T) {
	merged, err := mergeCheckoutItems([]CheckoutItem{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("mergeCheckoutItems error: %v", err)
	}
	if len(merged) != 2 || merged[0].ProductID != 2 || merged[0].Quantity != 4 || merged[1].Quantity != 2 {
		t.Fatalf("unexpected merge: %+v", merged)
	}

	if _, err := mergeCheckoutItems(nil); !errors.Is(err, ErrOrderItemsEmpty) {
		t.Fatalf("expected ErrOrderItemsEmpty, got %v", err)
	}
	if _, err := mergeCheckoutItems([]CheckoutItem{{ProductID: 1, Quantity: 0}}); !errors.Is(err, ErrOrderItemInvalid) {
		t.Fatalf("expected ErrOrderItemInvalid, got %v", err)
	}
	if _, err := mergeCheckoutItems([]CheckoutItem{{ProductID: 1, Quantity: 600}, {ProductID: 1, Quantity: 600}}); !errors.Is(err, ErrOrderItemInvalid) {
		t.Fatalf("expected quantity cap, got %v", err)
	}
}

func TestCheckoutPricesOrderAndReservesStock(t *testing.T) {
	f := newServiceFixture(t)
	jiko := f.seedProduct(t, "jiko-stove", 1500, 5)
	sufuria := f.seedProduct(t, "sufuria-set", 2499, 0)

	result, err := f.orderSvc.Checkout(CheckoutInput{
		CustomerName:  "  Otieno Ouma ",
		CustomerPhone: "+254 712 345 678",
		CustomerEmail: "otieno@example.com",
		Items: []CheckoutItem{
			{ProductID: jiko.ID, Quantity: 2},
			{ProductID: sufuria.ID, Quantity: 1},
		},
		County:    "nairobi",
		SubCounty: "Westlands",
		Town:      "Parklands",
		CourierID: "SENDY",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}
	order := result.Order
	if !strings.HasPrefix(order.OrderNo, "DK") || len(order.OrderNo) < 12 {
		t.Fatalf("unexpected order number %q", order.OrderNo)
	}
	if order.CustomerName != "Otieno Ouma" || order.CustomerPhone != "254712345678" {
		t.Fatalf("customer not normalized: %q %q", order.CustomerName, order.CustomerPhone)
	}
	if order.County != "Nairobi" || order.CourierID != "SENDY" {
		t.Fatalf("delivery not canonicalized: %s %s", order.County, order.CourierID)
	}
	if order.Subtotal.String() != "5499.00" || order.DeliveryFee.String() != "250.00" || order.TotalAmount.String() != "5749.00" {
		t.Fatalf("unexpected amounts: subtotal=%s fee=%s total=%s", order.Subtotal, order.DeliveryFee, order.TotalAmount)
	}
	if order.TotalQuantity != 3 || order.EstimatedDelivery != "1-3 business days" {
		t.Fatalf("unexpected quantity/eta: %d %q", order.TotalQuantity, order.EstimatedDelivery)
	}
	if order.PaymentMethod != constants.PaymentMethodMpesa || order.PaymentStatus != constants.PaymentStatusPending || order.Status != constants.OrderStatusPending {
		t.Fatalf("unexpected initial state: %s", StateOf(order))
	}

	stored, err := f.orders.GetByOrderNo(order.OrderNo)
	if err != nil || stored == nil || len(stored.Items) != 2 {
		t.Fatalf("order items not stored: %+v err=%v", stored, err)
	}
	reloaded, _ := f.products.GetByID(jiko.ID)
	if reloaded.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", reloaded.Stock)
	}
	untracked, _ := f.products.GetByID(sufuria.ID)
	if untracked.Stock != 0 {
		t.Fatalf("untracked stock should stay 0, got %d", untracked.Stock)
	}
	if events := f.notifier.Events(); len(events) != 1 || events[0] != constants.NotificationEventOrderPlaced {
		t.Fatalf("expected order_placed notification, got %v", events)
	}
}

func TestCheckoutValidation(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "maize-flour", 200, 1)
	base := CheckoutInput{
		CustomerName:  "Achieng",
		CustomerPhone: "0712345678",
		Items:         []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		County:        "Nairobi",
		CourierID:     "G4S",
	}

	cases := []struct {
		name   string
		mutate func(in *CheckoutInput)
		want   error
	}{
		{"missing name", func(in *CheckoutInput) { in.CustomerName = " " }, ErrCustomerNameRequired},
		{"bad phone", func(in *CheckoutInput) { in.CustomerPhone = "0812345678" }, ErrCustomerPhoneInvalid},
		{"bad email", func(in *CheckoutInput) { in.CustomerEmail = "not-an-email" }, ErrCustomerEmailInvalid},
		{"bad method", func(in *CheckoutInput) { in.PaymentMethod = "paypal" }, ErrPaymentMethodInvalid},
		{"no county", func(in *CheckoutInput) { in.County = "" }, ErrDeliveryCountyRequired},
		{"unknown county", func(in *CheckoutInput) { in.County = "Atlantis" }, ErrDeliveryUnknownCounty},
		{"unknown courier", func(in *CheckoutInput) { in.CourierID = "DHL" }, ErrDeliveryUnknownCourier},
		{"town without sub-county", func(in *CheckoutInput) { in.Town = "Karen" }, ErrDeliveryUnknownSubCounty},
		{"courier not serving town", func(in *CheckoutInput) {
			in.County, in.SubCounty, in.Town, in.CourierID = "Turkana", "Turkana Central", "Lodwar", "SENDY"
		}, ErrCourierUnavailable},
		{"unknown town", func(in *CheckoutInput) { in.SubCounty, in.Town = "Westlands", "Gotham" }, ErrDeliveryUnknownTown},
		{"unknown product", func(in *CheckoutInput) { in.Items = []CheckoutItem{{ProductID: 9999, Quantity: 1}} }, ErrProductNotFound},
		{"insufficient stock", func(in *CheckoutInput) { in.Items = []CheckoutItem{{ProductID: product.ID, Quantity: 2}} }, ErrStockInsufficient},
	}
	for _, tc := range cases {
		in := base
		tc.mutate(&in)
		if _, err := f.orderSvc.Checkout(in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	var count int64
	f.db.Table("orders").Count(&count)
	if count != 0 {
		t.Fatalf("failed checkouts must not store orders, found %d", count)
	}
}

func TestCheckoutRejectsInactiveProduct(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "old-radio", 900, 0)
	f.db.Model(product).Update("is_active", false)
	_, err := f.orderSvc.Checkout(CheckoutInput{
		CustomerName:  "Kip",
		CustomerPhone: "0722000111",
		Items:         []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		County:        "Nakuru",
		CourierID:     "POSTA",
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestCheckoutWhatsAppHandOff(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "kikoi", 800, 0)
	f.saveSetting(t, constants.SettingKeyContactConfig, map[string]interface{}{"whatsapp_number": "0700111222"})

	result, err := f.orderSvc.Checkout(CheckoutInput{
		CustomerName:  "Amina",
		CustomerPhone: "0712345678",
		Items:         []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		County:        "Mombasa",
		CourierID:     "G4S",
		PaymentMethod: "manual",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}
	if !strings.HasPrefix(result.WhatsAppURL, "https://wa.me/254700111222?text=") {
		t.Fatalf("unexpected WhatsApp url: %s", result.WhatsAppURL)
	}
	if !strings.Contains(result.WhatsAppURL, result.Order.OrderNo) {
		t.Fatalf("hand-off text should carry the order number: %s", result.WhatsAppURL)
	}
	if result.Order.DeliveryFee.String() != "550.00" {
		t.Fatalf("coastal G4S fee should be 550, got %s", result.Order.DeliveryFee)
	}
}

func TestOrderNumbersUniqueUnderConcurrency(t *testing.T) {
	gen, err := NewOrderNumberGenerator(3)
	if err != nil {
		t.Fatalf("NewOrderNumberGenerator error: %v", err)
	}
	const workers, perWorker = 8, 250
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, gen.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, no := range local {
				seen[no] = struct{}{}
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique order numbers, got %d", workers*perWorker, len(seen))
	}
}

func TestGetPublicOrderRequiresMatchingPhone(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "chapati-pan", 650, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})

	got, err := f.orderSvc.GetPublicOrder(order.OrderNo, "+254712345678")
	if err != nil || got.ID != order.ID {
		t.Fatalf("lookup with equivalent phone failed: %v", err)
	}
	if _, err := f.orderSvc.GetPublicOrder(order.OrderNo, "0799999999"); !errors.Is(err, ErrPhoneMismatch) {
		t.Fatalf("expected ErrPhoneMismatch, got %v", err)
	}
	if _, err := f.orderSvc.GetPublicOrder("DK0000", "0712345678"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestUpdateStatusFollowsStateMachine(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "thermos", 1200, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})

	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "shipped"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unpaid M-Pesa order cannot ship, got %v", err)
	}

	paid, err := f.orderSvc.UpdatePaymentStatus(order.ID, UpdatePaymentStatusInput{PaymentStatus: "completed", ReceiptNumber: "QK1234ABCD", Note: "confirmed on statement"})
	if err != nil {
		t.Fatalf("UpdatePaymentStatus error: %v", err)
	}
	if paid.Status != constants.OrderStatusConfirmed || paid.ReceiptNumber != "QK1234ABCD" || paid.PaidAt == nil {
		t.Fatalf("override should confirm and stamp payment: %+v", paid)
	}
	if paid.PaidAmount.String() != paid.TotalAmount.String() {
		t.Fatalf("paid amount should default to total, got %s", paid.PaidAmount)
	}
	if !strings.Contains(paid.Notes, "confirmed on statement") {
		t.Fatalf("note not appended: %q", paid.Notes)
	}

	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "cancelled"}); !errors.Is(err, ErrOrderPaidCannotCancel) {
		t.Fatalf("expected ErrOrderPaidCannotCancel, got %v", err)
	}
	delivered, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "delivered"})
	if err != nil || delivered.Status != constants.OrderStatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("expected delivered with timestamp: %+v err=%v", delivered, err)
	}

	events := f.notifier.Events()
	want := []string{
		constants.NotificationEventOrderPlaced,
		constants.NotificationEventPaymentReceived,
		constants.NotificationEventStatusUpdate,
	}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected notifications %v", events)
	}
}

func TestCancelUnpaidOrderStampsCanceledAt(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "lamp", 700, 0)
	order := f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})

	cancelled, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "cancelled", Note: "customer asked"})
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if cancelled.CanceledAt == nil || cancelled.Status != constants.OrderStatusCancelled {
		t.Fatalf("expected cancelled order with timestamp: %+v", cancelled)
	}
	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: "cancelled"}); err != nil {
		t.Fatalf("repeating the same status should be a no-op, got %v", err)
	}
	if _, err := f.orderSvc.UpdateStatus(9999, UpdateStatusInput{Status: "cancelled"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestListOrdersFilters(t *testing.T) {
	f := newServiceFixture(t)
	product := f.seedProduct(t, "bucket", 300, 0)
	f.checkout(t, "mpesa", CheckoutItem{ProductID: product.ID, Quantity: 1})
	manual := f.checkout(t, "manual", CheckoutItem{ProductID: product.ID, Quantity: 2})

	orders, total, err := f.orderSvc.ListOrders(repository.OrderListFilter{PaymentMethod: "manual", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListOrders error: %v", err)
	}
	if total != 1 || len(orders) != 1 || orders[0].ID != manual.ID {
		t.Fatalf("unexpected filter result total=%d orders=%+v", total, orders)
	}
}

func TestCheckoutRejectsSoldOutProduct(t *testing.T) {
	f := newServiceFixture(t)
	lamp := f.seedProduct(t, "solar-lamp", 1999, 2)

	f.checkout(t, constants.PaymentMethodMpesa, CheckoutItem{ProductID: lamp.ID, Quantity: 2})
	if stored, _ := f.products.GetByID(lamp.ID); stored.Stock != 0 || !stored.TrackStock {
		t.Fatalf("expected tracked stock 0, got %d tracked=%v", stored.Stock, stored.TrackStock)
	}

	for _, quantity := range []int{500, 1} {
		_, err := f.orderSvc.Checkout(CheckoutInput{
			CustomerName:  "Kamau",
			CustomerPhone: "0712345678",
			Items:         []CheckoutItem{{ProductID: lamp.ID, Quantity: quantity}},
			County:        "Nairobi",
			CourierID:     "G4S",
		})
		if !errors.Is(err, ErrStockInsufficient) {
			t.Fatalf("quantity %d on a sold out product: expected ErrStockInsufficient, got %v", quantity, err)
		}
	}
	if stored, _ := f.products.GetByID(lamp.ID); stored.Stock != 0 {
		t.Fatalf("stock went negative: %d", stored.Stock)
	}
}

func TestCancelReleasesReservedStock(t *testing.T) {
	f := newServiceFixture(t)
	jiko := f.seedProduct(t, "jiko-stove", 1500, 5)
	sufuria := f.seedProduct(t, "sufuria-set", 2499, 0)

	order := f.checkout(t, constants.PaymentMethodMpesa,
		CheckoutItem{ProductID: jiko.ID, Quantity: 3},
		CheckoutItem{ProductID: sufuria.ID, Quantity: 2},
	)
	if stored, _ := f.products.GetByID(jiko.ID); stored.Stock != 2 {
		t.Fatalf("expected stock 2 after checkout, got %d", stored.Stock)
	}

	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: constants.OrderStatusCancelled}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if stored, _ := f.products.GetByID(jiko.ID); stored.Stock != 5 {
		t.Fatalf("cancel should return stock to 5, got %d", stored.Stock)
	}
	if stored, _ := f.products.GetByID(sufuria.ID); stored.Stock != 0 {
		t.Fatalf("untracked stock must not move, got %d", stored.Stock)
	}

	// a repeated cancel is a no-op and must not release twice
	if _, err := f.orderSvc.UpdateStatus(order.ID, UpdateStatusInput{Status: constants.OrderStatusCancelled}); err != nil {
		t.Fatalf("repeated cancel failed: %v", err)
	}
	if stored, _ := f.products.GetByID(jiko.ID); stored.Stock != 5 {
		t.Fatalf("repeated cancel released stock again: %d", stored.Stock)
	}
}
