package models

import (
	"time"

	"gorm.io/gorm"
)

// Order a checkout with its delivery and payment state
type Order struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	OrderNo string `gorm:"uniqueIndex;not null" json:"order_no"`

	CustomerName  string `gorm:"type:varchar(120)" json:"customer_name"`
	CustomerPhone string `gorm:"type:varchar(32);index;not null" json:"customer_phone"`
	CustomerEmail string `gorm:"type:varchar(200)" json:"customer_email,omitempty"`

	ProductSummary string `gorm:"type:text" json:"product_summary"` // item names joined by ", "
	TotalQuantity  int    `gorm:"not null;default:1" json:"total_quantity"`
	Currency       string `gorm:"type:varchar(8);not null;default:'KES'" json:"currency"`
	Subtotal       Money  `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	DeliveryFee    Money  `gorm:"type:decimal(20,2);not null;default:0" json:"delivery_fee"`
	TotalAmount    Money  `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // subtotal + delivery fee, fixed at creation

	County            string `gorm:"type:varchar(64);index" json:"county"`
	SubCounty         string `gorm:"type:varchar(64)" json:"sub_county"`
	Town              string `gorm:"type:varchar(64)" json:"town"`
	CourierID         string `gorm:"type:varchar(32)" json:"courier_id"`
	EstimatedDelivery string `gorm:"type:varchar(64)" json:"estimated_delivery"`
	ShippingAddress   string `gorm:"type:text" json:"shipping_address,omitempty"`

	PaymentMethod     string     `gorm:"type:varchar(16);not null;default:'mpesa'" json:"payment_method"`
	PaymentStatus     string     `gorm:"type:varchar(16);index;not null" json:"payment_status"`
	PaymentReference  string     `gorm:"type:varchar(64);index" json:"payment_reference,omitempty"` // CheckoutRequestID
	MerchantRequestID string     `gorm:"type:varchar(64)" json:"merchant_request_id,omitempty"`
	ReceiptNumber     string     `gorm:"type:varchar(32);index" json:"receipt_number,omitempty"` // MpesaReceiptNumber
	PaymentPhone      string     `gorm:"type:varchar(32)" json:"payment_phone,omitempty"`
	PaidAmount        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"paid_amount"`
	PaidAt            *time.Time `gorm:"index" json:"paid_at"`
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`

	Status string `gorm:"type:varchar(16);index;not null" json:"status"` // fulfillment

	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`
	CanceledAt  *time.Time     `json:"canceled_at"`
	DeliveredAt *time.Time     `json:"delivered_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName table name
func (Order) TableName() string {
	return "orders"
}
