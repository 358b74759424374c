package models

import "time"

// OrderItem product snapshot inside an order
type OrderItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	OrderID     uint      `gorm:"index;not null" json:"order_id"`
	ProductID   uint      `gorm:"index;not null" json:"product_id"`
	ProductName string    `gorm:"type:varchar(200);not null" json:"product_name"`
	UnitPrice   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	TotalPrice  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName table name
func (OrderItem) TableName() string {
	return "order_items"
}
