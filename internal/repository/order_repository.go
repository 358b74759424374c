package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository order access
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByPaymentReference(reference string) (*models.Order, error)
	LockByID(id uint) (*models.Order, error)
	LockByPaymentReference(reference string) (*models.Order, error)
	ListItems(orderID uint) ([]models.OrderItem, error)
	List(filter OrderListFilter) ([]models.Order, int64, error)
	ListAwaitingPayment(updatedBefore time.Time, limit int) ([]models.Order, error)
	Update(id uint, updates map[string]interface{}) error
	Transaction(fn func(repo OrderRepository) error) error
	DB() *gorm.DB
}

// GormOrderRepository gorm implementation
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository builds the repository
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx binds the repository to a transaction
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// DB underlying handle, bound to the transaction inside Transaction
func (r *GormOrderRepository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn inside a database transaction
func (r *GormOrderRepository) Transaction(fn func(repo OrderRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Create inserts the order then its items
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Omit("Items").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *GormOrderRepository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByID loads an order with items
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	return r.first(r.db.Preload("Items").Where("id = ?", id))
}

// GetByOrderNo loads an order by its public number
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	return r.first(r.db.Preload("Items").Where("order_no = ?", orderNo))
}

// GetByPaymentReference finds the order awaiting a gateway correlation token
func (r *GormOrderRepository) GetByPaymentReference(reference string) (*models.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	return r.first(r.db.Where("payment_reference = ?", reference))
}

// ListItems order lines in insertion order
func (r *GormOrderRepository) ListItems(orderID uint) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0)
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// LockByID selects the row FOR UPDATE; sqlite ignores the clause
func (r *GormOrderRepository) LockByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	return r.first(r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// LockByPaymentReference selects the row FOR UPDATE by correlation token
func (r *GormOrderRepository) LockByPaymentReference(reference string) (*models.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	return r.first(r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("payment_reference = ?", reference))
}

// List admin listing, newest first
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.County != "" {
		query = query.Where("county = ?", filter.County)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		cond, n := buildLikeCondition(r.db, "order_no", "customer_name", "customer_phone")
		query = query.Where(cond, repeatLikeArgs("%"+search+"%", n)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]models.Order, 0)
	if err := applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAwaitingPayment orders stuck in processing since before updatedBefore
func (r *GormOrderRepository) ListAwaitingPayment(updatedBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	orders := make([]models.Order, 0)
	err := r.db.
		Where("payment_method = ? AND payment_status = ? AND payment_reference <> '' AND updated_at < ?",
			constants.PaymentMethodMpesa, constants.PaymentStatusProcessing, updatedBefore).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Update applies column updates
func (r *GormOrderRepository) Update(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}
