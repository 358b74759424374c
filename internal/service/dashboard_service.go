package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/repository"
)

const (
	dashboardCacheTTL      = 45 * time.Second
	dashboardCustomMaxDays = 90
	dashboardCountyLimit   = 5
)

// DashboardService back-office landing page figures
type DashboardService struct {
	repo           repository.DashboardRepository
	settingService *SettingService
	now            func() time.Time
}

// NewDashboardService builds the service
func NewDashboardService(repo repository.DashboardRepository, settingService *SettingService) *DashboardService {
	return &DashboardService{repo: repo, settingService: settingService, now: time.Now}
}

// DashboardQueryInput range is today, 7d, 30d or custom (From and To required)
type DashboardQueryInput struct {
	Range        string
	From         *time.Time
	To           *time.Time
	ForceRefresh bool
}

// DashboardOverviewResponse overview payload
type DashboardOverviewResponse struct {
	Range       string                    `json:"range"`
	From        string                    `json:"from"`
	To          string                    `json:"to"`
	Currency    string                    `json:"currency"`
	KPI         DashboardKPI              `json:"kpi"`
	Counties    []DashboardCounty         `json:"counties"`
	TopProducts []DashboardProductRanking `json:"top_products"`
	Alerts      []DashboardAlertItem      `json:"alerts"`
}

// DashboardKPI headline counters; amounts are KES strings with two decimals
type DashboardKPI struct {
	OrdersTotal          int64  `json:"orders_total"`
	PaidOrders           int64  `json:"paid_orders"`
	PendingPaymentOrders int64  `json:"pending_payment_orders"`
	AwaitingConfirmation int64  `json:"awaiting_confirmation"`
	FailedPayments       int64  `json:"failed_payments"`
	CancelledOrders      int64  `json:"cancelled_orders"`
	DeliveredOrders      int64  `json:"delivered_orders"`
	RevenuePaid          string `json:"revenue_paid"`
	DeliveryFees         string `json:"delivery_fees"`
	PaymentRate          string `json:"payment_rate"`
	ActiveProducts       int64  `json:"active_products"`
	LowStockProducts     int64  `json:"low_stock_products"`
	OutOfStockProducts   int64  `json:"out_of_stock_products"`
}

// DashboardCounty per county order volume
type DashboardCounty struct {
	County      string `json:"county"`
	Orders      int64  `json:"orders"`
	RevenuePaid string `json:"revenue_paid"`
}

// DashboardProductRanking best seller row
type DashboardProductRanking struct {
	ProductID  uint   `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	PaidAmount string `json:"paid_amount"`
}

// DashboardAlertItem threshold breach
type DashboardAlertItem struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	Value int64  `json:"value"`
}

type dashboardWindow struct {
	rangeKey string
	startAt  time.Time
	endAt    time.Time
}

// GetOverview counters for the window, cached briefly in redis
func (s *DashboardService) GetOverview(ctx context.Context, input DashboardQueryInput) (*DashboardOverviewResponse, error) {
	if s == nil || s.repo == nil {
		return &DashboardOverviewResponse{}, nil
	}

	window, err := resolveDashboardWindow(input, s.now())
	if err != nil {
		return nil, err
	}
	setting := s.loadDashboardSetting()

	cacheKey := fmt.Sprintf("dashboard:overview:%s:%d:%d:%d:%d:%d:%d",
		window.rangeKey,
		window.startAt.Unix(),
		window.endAt.Unix(),
		setting.LowStockThreshold,
		setting.PendingPaymentOrdersThreshold,
		setting.FailedPaymentsThreshold,
		setting.TopProductsLimit,
	)
	if !input.ForceRefresh {
		var cached DashboardOverviewResponse
		if hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached); cacheErr == nil && hit {
			return &cached, nil
		}
	}

	overview, err := s.repo.GetOverview(window.startAt, window.endAt)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.GetStockStats(setting.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	countyRows, err := s.repo.GetCountyBreakdown(window.startAt, window.endAt, dashboardCountyLimit)
	if err != nil {
		return nil, err
	}
	productRows, err := s.repo.GetTopProducts(window.startAt, window.endAt, setting.TopProductsLimit)
	if err != nil {
		return nil, err
	}

	paymentRate := 0.0
	if overview.OrdersTotal > 0 {
		paymentRate = float64(overview.PaidOrders) / float64(overview.OrdersTotal) * 100
	}

	counties := make([]DashboardCounty, 0, len(countyRows))
	for _, row := range countyRows {
		name := strings.TrimSpace(row.County)
		if name == "" {
			name = "-"
		}
		counties = append(counties, DashboardCounty{County: name, Orders: row.OrderCount, RevenuePaid: formatMoneyValue(row.RevenuePaid)})
	}
	products := make([]DashboardProductRanking, 0, len(productRows))
	for _, row := range productRows {
		name := strings.TrimSpace(row.ProductName)
		if name == "" {
			name = "-"
		}
		products = append(products, DashboardProductRanking{
			ProductID:  row.ProductID,
			Name:       name,
			Quantity:   row.TotalQuantity,
			PaidAmount: formatMoneyValue(row.PaidAmount),
		})
	}

	response := &DashboardOverviewResponse{
		Range:    window.rangeKey,
		From:     window.startAt.Format(time.RFC3339),
		To:       window.endAt.Add(-time.Second).Format(time.RFC3339),
		Currency: "KES",
		KPI: DashboardKPI{
			OrdersTotal:          overview.OrdersTotal,
			PaidOrders:           overview.PaidOrders,
			PendingPaymentOrders: overview.PendingPaymentOrders,
			AwaitingConfirmation: overview.AwaitingConfirmation,
			FailedPayments:       overview.FailedPayments,
			CancelledOrders:      overview.CancelledOrders,
			DeliveredOrders:      overview.DeliveredOrders,
			RevenuePaid:          formatMoneyValue(overview.RevenuePaid),
			DeliveryFees:         formatMoneyValue(overview.DeliveryFees),
			PaymentRate:          formatMoneyValue(paymentRate),
			ActiveProducts:       stock.ActiveProducts,
			LowStockProducts:     stock.LowStockProducts,
			OutOfStockProducts:   stock.OutOfStockProducts,
		},
		Counties:    counties,
		TopProducts: products,
		Alerts:      buildDashboardAlerts(overview, stock, setting),
	}

	_ = cache.SetJSON(ctx, cacheKey, response, dashboardCacheTTL)
	return response, nil
}

func (s *DashboardService) loadDashboardSetting() DashboardSetting {
	if s == nil || s.settingService == nil {
		return DashboardDefaultSetting()
	}
	setting, err := s.settingService.GetDashboardSetting()
	if err != nil {
		return DashboardDefaultSetting()
	}
	return setting
}

// resolveDashboardWindow day boundaries are Nairobi midnights
func resolveDashboardWindow(input DashboardQueryInput, now time.Time) (dashboardWindow, error) {
	rangeKey := strings.ToLower(strings.TrimSpace(input.Range))
	if rangeKey == "" {
		rangeKey = "7d"
	}

	localNow := now.In(mpesa.EAT)
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, mpesa.EAT)
	window := dashboardWindow{rangeKey: rangeKey}

	switch rangeKey {
	case "today":
		window.startAt = todayStart
		window.endAt = todayStart.AddDate(0, 0, 1)
	case "7d":
		window.startAt = todayStart.AddDate(0, 0, -6)
		window.endAt = todayStart.AddDate(0, 0, 1)
	case "30d":
		window.startAt = todayStart.AddDate(0, 0, -29)
		window.endAt = todayStart.AddDate(0, 0, 1)
	case "custom":
		if input.From == nil || input.To == nil {
			return dashboardWindow{}, ErrDashboardRangeInvalid
		}
		startAt := input.From.In(mpesa.EAT)
		endAt := input.To.In(mpesa.EAT)
		if endAt.Before(startAt) || endAt.Sub(startAt) > 24*time.Hour*dashboardCustomMaxDays {
			return dashboardWindow{}, ErrDashboardRangeInvalid
		}
		window.startAt = startAt
		window.endAt = endAt.Add(time.Second)
	default:
		return dashboardWindow{}, ErrDashboardRangeInvalid
	}
	return window, nil
}

func formatMoneyValue(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func buildDashboardAlerts(overview repository.DashboardOverviewRow, stock repository.DashboardStockStatsRow, setting DashboardSetting) []DashboardAlertItem {
	alerts := make([]DashboardAlertItem, 0, 4)
	if stock.OutOfStockProducts > 0 {
		alerts = append(alerts, DashboardAlertItem{Type: "out_of_stock_products", Level: "error", Value: stock.OutOfStockProducts})
	}
	if stock.LowStockProducts > 0 {
		alerts = append(alerts, DashboardAlertItem{Type: "low_stock_products", Level: "warning", Value: stock.LowStockProducts})
	}
	if overview.PendingPaymentOrders >= int64(setting.PendingPaymentOrdersThreshold) {
		alerts = append(alerts, DashboardAlertItem{Type: "pending_payment_orders", Level: "warning", Value: overview.PendingPaymentOrders})
	}
	if overview.FailedPayments >= int64(setting.FailedPaymentsThreshold) {
		alerts = append(alerts, DashboardAlertItem{Type: "failed_payments", Level: "error", Value: overview.FailedPayments})
	}
	return alerts
}
