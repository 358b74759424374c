package service

import (
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
)

// DashboardSetting overview alert thresholds
type DashboardSetting struct {
	LowStockThreshold             int `json:"low_stock_threshold"`
	PendingPaymentOrdersThreshold int `json:"pending_payment_orders_threshold"`
	FailedPaymentsThreshold       int `json:"failed_payments_threshold"`
	TopProductsLimit              int `json:"top_products_limit"`
}

// DashboardDefaultSetting defaults
func DashboardDefaultSetting() DashboardSetting {
	return NormalizeDashboardSetting(DashboardSetting{})
}

// NormalizeDashboardSetting clamps each field back to its default when out of range
func NormalizeDashboardSetting(setting DashboardSetting) DashboardSetting {
	if setting.LowStockThreshold < 1 || setting.LowStockThreshold > 500 {
		setting.LowStockThreshold = 5
	}
	if setting.PendingPaymentOrdersThreshold < 1 || setting.PendingPaymentOrdersThreshold > 100000 {
		setting.PendingPaymentOrdersThreshold = 20
	}
	if setting.FailedPaymentsThreshold < 1 || setting.FailedPaymentsThreshold > 100000 {
		setting.FailedPaymentsThreshold = 10
	}
	if setting.TopProductsLimit < 1 || setting.TopProductsLimit > 20 {
		setting.TopProductsLimit = 5
	}
	return setting
}

// DashboardSettingToMap storage form
func DashboardSettingToMap(setting DashboardSetting) map[string]interface{} {
	normalized := NormalizeDashboardSetting(setting)
	return map[string]interface{}{
		"low_stock_threshold":              normalized.LowStockThreshold,
		"pending_payment_orders_threshold": normalized.PendingPaymentOrdersThreshold,
		"failed_payments_threshold":        normalized.FailedPaymentsThreshold,
		"top_products_limit":               normalized.TopProductsLimit,
	}
}

func dashboardSettingFromJSON(raw models.JSON, fallback DashboardSetting) DashboardSetting {
	return NormalizeDashboardSetting(DashboardSetting{
		LowStockThreshold:             readInt(raw, "low_stock_threshold", fallback.LowStockThreshold),
		PendingPaymentOrdersThreshold: readInt(raw, "pending_payment_orders_threshold", fallback.PendingPaymentOrdersThreshold),
		FailedPaymentsThreshold:       readInt(raw, "failed_payments_threshold", fallback.FailedPaymentsThreshold),
		TopProductsLimit:              readInt(raw, "top_products_limit", fallback.TopProductsLimit),
	})
}

// GetDashboardSetting stored value, or defaults when unset
func (s *SettingService) GetDashboardSetting() (DashboardSetting, error) {
	fallback := DashboardDefaultSetting()
	if s == nil {
		return fallback, nil
	}
	value, err := s.GetByKey(constants.SettingKeyDashboardConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return dashboardSettingFromJSON(value, fallback), nil
}
