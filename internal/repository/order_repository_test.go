package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
)

func newTestOrder(orderNo, phone string) *models.Order {
	return &models.Order{
		OrderNo:        orderNo,
		CustomerName:   "Wanjiku",
		CustomerPhone:  phone,
		ProductSummary: "Solar Lantern",
		TotalQuantity:  1,
		Currency:       constants.CurrencyKES,
		Subtotal:       models.NewMoneyFromInt(1500),
		DeliveryFee:    models.NewMoneyFromInt(350),
		TotalAmount:    models.NewMoneyFromInt(1850),
		County:         "Nairobi",
		CourierID:      "G4S",
		PaymentMethod:  constants.PaymentMethodMpesa,
		PaymentStatus:  constants.PaymentStatusPending,
		Status:         constants.OrderStatusPending,
	}
}

func TestOrderRepositoryCreateAndLookup(t *testing.T) {
	repo := NewOrderRepository(openTestDB(t))
	order := newTestOrder("DK20240101A", "254712345678")
	items := []models.OrderItem{{ProductID: 1, ProductName: "Solar Lantern", UnitPrice: models.NewMoneyFromInt(1500), Quantity: 1, TotalPrice: models.NewMoneyFromInt(1500)}}
	if err := repo.Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.ID == 0 || items[0].OrderID != order.ID {
		t.Fatalf("expected ids to be assigned: %+v %+v", order, items)
	}

	got, err := repo.GetByOrderNo("DK20240101A")
	if err != nil || got == nil {
		t.Fatalf("get by order no failed: %v", err)
	}
	if len(got.Items) != 1 || got.TotalAmount.String() != "1850.00" {
		t.Fatalf("unexpected order: %+v", got)
	}

	missing, err := repo.GetByPaymentReference("ws_CO_missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown reference, got %+v %v", missing, err)
	}
	if empty, _ := repo.GetByPaymentReference(""); empty != nil {
		t.Fatalf("empty reference must never match")
	}

	if err := repo.Update(order.ID, map[string]interface{}{
		"payment_status":    constants.PaymentStatusProcessing,
		"payment_reference": "ws_CO_1",
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	byRef, err := repo.GetByPaymentReference("ws_CO_1")
	if err != nil || byRef == nil || byRef.ID != order.ID {
		t.Fatalf("expected lookup by reference, got %+v %v", byRef, err)
	}
}

func TestOrderRepositoryUniqueOrderNo(t *testing.T) {
	repo := NewOrderRepository(openTestDB(t))
	if err := repo.Create(newTestOrder("DK-DUP", "254700000001"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newTestOrder("DK-DUP", "254700000002"), nil); err == nil {
		t.Fatalf("expected unique constraint violation")
	}
}

func TestOrderRepositoryTransactionRollback(t *testing.T) {
	repo := NewOrderRepository(openTestDB(t))
	order := newTestOrder("DK-TX", "254700000003")
	if err := repo.Create(order, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	boom := errors.New("boom")
	err := repo.Transaction(func(tx OrderRepository) error {
		locked, err := tx.LockByID(order.ID)
		if err != nil || locked == nil {
			t.Fatalf("lock failed: %v", err)
		}
		if err := tx.Update(order.ID, map[string]interface{}{"status": constants.OrderStatusCancelled}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := repo.GetByID(order.ID)
	if got.Status != constants.OrderStatusPending {
		t.Fatalf("update should be rolled back, status=%s", got.Status)
	}
}

func TestOrderRepositoryListFilters(t *testing.T) {
	repo := NewOrderRepository(openTestDB(t))
	a := newTestOrder("DK-A", "254711111111")
	b := newTestOrder("DK-B", "254722222222")
	b.County = "Mombasa"
	b.PaymentStatus = constants.PaymentStatusCompleted
	b.Status = constants.OrderStatusConfirmed
	for _, o := range []*models.Order{a, b} {
		if err := repo.Create(o, nil); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	list, total, err := repo.List(OrderListFilter{Page: 1, PageSize: 10})
	if err != nil || total != 2 || list[0].OrderNo != "DK-B" {
		t.Fatalf("expected newest first, got %v %d %v", list, total, err)
	}
	list, total, _ = repo.List(OrderListFilter{PaymentStatus: constants.PaymentStatusCompleted})
	if total != 1 || list[0].OrderNo != "DK-B" {
		t.Fatalf("payment status filter failed: %v", list)
	}
	list, total, _ = repo.List(OrderListFilter{Search: "7111"})
	if total != 1 || list[0].OrderNo != "DK-A" {
		t.Fatalf("phone search failed: %v", list)
	}
	_, total, _ = repo.List(OrderListFilter{County: "Mombasa", Status: constants.OrderStatusConfirmed})
	if total != 1 {
		t.Fatalf("county/status filter failed: %d", total)
	}
}

func TestOrderRepositoryListAwaitingPayment(t *testing.T) {
	db := openTestDB(t)
	repo := NewOrderRepository(db)
	stale := newTestOrder("DK-STALE", "254733333333")
	stale.PaymentStatus = constants.PaymentStatusProcessing
	stale.PaymentReference = "ws_CO_stale"
	fresh := newTestOrder("DK-FRESH", "254744444444")
	fresh.PaymentStatus = constants.PaymentStatusProcessing
	fresh.PaymentReference = "ws_CO_fresh"
	for _, o := range []*models.Order{stale, fresh} {
		if err := repo.Create(o, nil); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	old := time.Now().Add(-time.Hour)
	if err := db.Model(&models.Order{}).Where("id = ?", stale.ID).UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	orders, err := repo.ListAwaitingPayment(time.Now().Add(-10*time.Minute), 10)
	if err != nil {
		t.Fatalf("list awaiting failed: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderNo != "DK-STALE" {
		t.Fatalf("expected only the stale order, got %v", orders)
	}
}
