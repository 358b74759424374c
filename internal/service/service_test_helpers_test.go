package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type mockSettingRepo struct {
	store map[string]models.JSON
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{store: map[string]models.JSON{}}
}

func (m *mockSettingRepo) GetByKey(key string) (*models.Setting, error) {
	value, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func (m *mockSettingRepo) Upsert(key string, value models.JSON) (*models.Setting, error) {
	m.store[key] = value
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyOrder(order *models.Order, eventType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type serviceFixture struct {
	db        *gorm.DB
	cfg       *config.Config
	orders    *repository.GormOrderRepository
	products  *repository.GormProductRepository
	settings  *SettingService
	notifier  *recordingNotifier
	orderSvc  *OrderService
	numberGen *OrderNumberGenerator
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := openServiceTestDB(t)
	cfg := &config.Config{}
	cfg.Site.Name = "Dukani Test"
	cfg.Site.BaseURL = "https://shop.example"
	settings := NewSettingService(repository.NewSettingRepository(db), cfg)
	numbers, err := NewOrderNumberGenerator(7)
	if err != nil {
		t.Fatalf("order number generator: %v", err)
	}
	f := &serviceFixture{
		db:        db,
		cfg:       cfg,
		orders:    repository.NewOrderRepository(db),
		products:  repository.NewProductRepository(db),
		settings:  settings,
		notifier:  &recordingNotifier{},
		numberGen: numbers,
	}
	f.orderSvc = NewOrderService(f.orders, f.products, settings, f.notifier, numbers, nil)
	return f
}

func (f *serviceFixture) seedProduct(t *testing.T, slug string, price int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:       slug,
		Name:       strings.ReplaceAll(slug, "-", " "),
		Category:   "kitchen",
		Price:      models.NewMoneyFromInt(price),
		Stock:      stock,
		TrackStock: stock > 0,
		IsActive:   true,
	}
	if err := f.products.Create(product); err != nil {
		t.Fatalf("seed product %s: %v", slug, err)
	}
	return product
}

func (f *serviceFixture) checkout(t *testing.T, method string, items ...CheckoutItem) *models.Order {
	t.Helper()
	result, err := f.orderSvc.Checkout(CheckoutInput{
		CustomerName:  "Wanjiku Kamau",
		CustomerPhone: "0712345678",
		Items:         items,
		County:        "Nairobi",
		SubCounty:     "Westlands",
		Town:          "Parklands",
		CourierID:     "SENDY",
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return result.Order
}

func (f *serviceFixture) reload(t *testing.T, id uint) *models.Order {
	t.Helper()
	order, err := f.orders.GetByID(id)
	if err != nil || order == nil {
		t.Fatalf("reload order %d: %v", id, err)
	}
	return order
}

func (f *serviceFixture) saveSetting(t *testing.T, key string, value map[string]interface{}) {
	t.Helper()
	if _, err := f.settings.UpdateFromAdmin(key, value); err != nil {
		t.Fatalf("save setting %s: %v", key, err)
	}
}
