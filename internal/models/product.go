package models

import (
	"time"

	"gorm.io/gorm"
)

// Product catalog entry
type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string         `gorm:"type:varchar(200);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"type:varchar(100);index" json:"category"`
	Price       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`
	ImageURL    string         `gorm:"type:varchar(500)" json:"image_url"`
	Stock       int            `gorm:"not null;default:0" json:"stock"`
	TrackStock  bool           `gorm:"not null;default:false" json:"track_stock"` // false ignores Stock entirely
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`
	SortOrder   int            `gorm:"default:0;index" json:"sort_order"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName table name
func (Product) TableName() string {
	return "products"
}
