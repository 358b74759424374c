package models

import "time"

// NotificationLog one delivery attempt of an SMS or email
type NotificationLog struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Channel           string    `gorm:"type:varchar(16);index;not null" json:"channel"`
	EventType         string    `gorm:"type:varchar(32);index" json:"event_type"`
	OrderID           *uint     `gorm:"index" json:"order_id,omitempty"`
	Target            string    `gorm:"type:varchar(200)" json:"target"`
	Status            string    `gorm:"type:varchar(16);index;not null" json:"status"`
	ProviderMessageID string    `gorm:"type:varchar(100)" json:"provider_message_id,omitempty"`
	Attempt           int       `gorm:"not null;default:1" json:"attempt"`
	Error             string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

// TableName table name
func (NotificationLog) TableName() string {
	return "notification_logs"
}
