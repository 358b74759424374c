package repository

import "time"

// ProductListFilter product list query
type ProductListFilter struct {
	Page       int
	PageSize   int
	Category   string
	Search     string
	OnlyActive bool
}

// OrderListFilter admin order list query
type OrderListFilter struct {
	Page          int
	PageSize      int
	Status        string
	PaymentStatus string
	PaymentMethod string
	County        string
	Search        string // order number, customer name or phone
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// NotificationLogListFilter notification log query
type NotificationLogListFilter struct {
	Page      int
	PageSize  int
	OrderID   uint
	Channel   string
	Status    string
	EventType string
}

// AuthzAuditLogListFilter permission change log query
type AuthzAuditLogListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	TargetAdminID   uint
	Action          string
	Role            string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
