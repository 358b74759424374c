package repository

import (
	"time"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"

	"gorm.io/gorm"
)

// DashboardRepository aggregate queries for the back-office overview; no business rules
type DashboardRepository interface {
	GetOverview(startAt, endAt time.Time) (DashboardOverviewRow, error)
	GetCountyBreakdown(startAt, endAt time.Time, limit int) ([]DashboardCountyRow, error)
	GetTopProducts(startAt, endAt time.Time, limit int) ([]DashboardProductRankingRow, error)
	GetStockStats(lowStockThreshold int) (DashboardStockStatsRow, error)
}

// DashboardOverviewRow raw counters for a window
type DashboardOverviewRow struct {
	OrdersTotal          int64
	PaidOrders           int64
	PendingPaymentOrders int64
	AwaitingConfirmation int64 // STK prompt sent, no result yet
	FailedPayments       int64
	CancelledOrders      int64
	DeliveredOrders      int64
	RevenuePaid          float64
	DeliveryFees         float64
}

// DashboardCountyRow orders and revenue per delivery county
type DashboardCountyRow struct {
	County      string
	OrderCount  int64
	RevenuePaid float64
}

// DashboardProductRankingRow best sellers among paid orders
type DashboardProductRankingRow struct {
	ProductID     uint
	ProductName   string
	TotalQuantity int64
	PaidAmount    float64
}

// DashboardStockStatsRow catalog counters
type DashboardStockStatsRow struct {
	ActiveProducts     int64
	LowStockProducts   int64 // sold out included
	OutOfStockProducts int64
}

// GormDashboardRepository GORM aggregates
type GormDashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository builds the repository
func NewDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: db}
}

func (r *GormDashboardRepository) orderWindow(startAt, endAt time.Time) *gorm.DB {
	return r.db.Model(&models.Order{}).Where("created_at >= ? AND created_at < ?", startAt.UTC(), endAt.UTC())
}

// GetOverview counters and sums for orders created in [startAt, endAt)
func (r *GormDashboardRepository) GetOverview(startAt, endAt time.Time) (DashboardOverviewRow, error) {
	result := DashboardOverviewRow{}

	counters := []struct {
		dest  *int64
		query string
		args  []interface{}
	}{
		{&result.OrdersTotal, "", nil},
		{&result.PaidOrders, "payment_status = ?", []interface{}{constants.PaymentStatusCompleted}},
		{&result.PendingPaymentOrders, "payment_status = ? AND status <> ?", []interface{}{constants.PaymentStatusPending, constants.OrderStatusCancelled}},
		{&result.AwaitingConfirmation, "payment_status = ?", []interface{}{constants.PaymentStatusProcessing}},
		{&result.FailedPayments, "payment_status = ?", []interface{}{constants.PaymentStatusFailed}},
		{&result.CancelledOrders, "status = ?", []interface{}{constants.OrderStatusCancelled}},
		{&result.DeliveredOrders, "status = ?", []interface{}{constants.OrderStatusDelivered}},
	}
	for _, counter := range counters {
		query := r.orderWindow(startAt, endAt)
		if counter.query != "" {
			query = query.Where(counter.query, counter.args...)
		}
		if err := query.Count(counter.dest).Error; err != nil {
			return result, err
		}
	}

	var sums struct {
		Revenue      float64
		DeliveryFees float64
	}
	if err := r.orderWindow(startAt, endAt).
		Where("payment_status = ?", constants.PaymentStatusCompleted).
		Select("COALESCE(SUM(total_amount), 0) AS revenue, COALESCE(SUM(delivery_fee), 0) AS delivery_fees").
		Scan(&sums).Error; err != nil {
		return result, err
	}
	result.RevenuePaid = sums.Revenue
	result.DeliveryFees = sums.DeliveryFees
	return result, nil
}

// GetCountyBreakdown busiest delivery counties
func (r *GormDashboardRepository) GetCountyBreakdown(startAt, endAt time.Time, limit int) ([]DashboardCountyRow, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []DashboardCountyRow
	err := r.orderWindow(startAt, endAt).
		Select("county, COUNT(*) AS order_count, COALESCE(SUM(CASE WHEN payment_status = ? THEN total_amount ELSE 0 END), 0) AS revenue_paid", constants.PaymentStatusCompleted).
		Group("county").
		Order("order_count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// GetTopProducts ranks items of paid orders by quantity
func (r *GormDashboardRepository) GetTopProducts(startAt, endAt time.Time, limit int) ([]DashboardProductRankingRow, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []DashboardProductRankingRow
	err := r.db.Table("order_items").
		Select("order_items.product_id AS product_id, MAX(order_items.product_name) AS product_name, COALESCE(SUM(order_items.quantity), 0) AS total_quantity, COALESCE(SUM(order_items.total_price), 0) AS paid_amount").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.deleted_at IS NULL AND orders.created_at >= ? AND orders.created_at < ? AND orders.payment_status = ?", startAt.UTC(), endAt.UTC(), constants.PaymentStatusCompleted).
		Group("order_items.product_id").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// GetStockStats active products and tracked stock at or below the threshold
func (r *GormDashboardRepository) GetStockStats(lowStockThreshold int) (DashboardStockStatsRow, error) {
	result := DashboardStockStatsRow{}
	if err := r.db.Model(&models.Product{}).Where("is_active = ?", true).Count(&result.ActiveProducts).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Product{}).
		Where("is_active = ? AND track_stock = ? AND stock <= ?", true, true, lowStockThreshold).
		Count(&result.LowStockProducts).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Product{}).
		Where("is_active = ? AND track_stock = ? AND stock <= 0", true, true).
		Count(&result.OutOfStockProducts).Error; err != nil {
		return result, err
	}
	return result, nil
}
