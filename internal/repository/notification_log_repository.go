package repository

import (
	"github.com/dukani-next/internal/models"

	"gorm.io/gorm"
)

// NotificationLogRepository delivery attempt log
type NotificationLogRepository interface {
	Create(log *models.NotificationLog) error
	List(filter NotificationLogListFilter) ([]models.NotificationLog, int64, error)
}

// GormNotificationLogRepository gorm implementation
type GormNotificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository builds the repository
func NewNotificationLogRepository(db *gorm.DB) *GormNotificationLogRepository {
	return &GormNotificationLogRepository{db: db}
}

// Create inserts a log row
func (r *GormNotificationLogRepository) Create(log *models.NotificationLog) error {
	return r.db.Create(log).Error
}

// List newest first
func (r *GormNotificationLogRepository) List(filter NotificationLogListFilter) ([]models.NotificationLog, int64, error) {
	query := r.db.Model(&models.NotificationLog{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	logs := make([]models.NotificationLog, 0)
	if err := applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
