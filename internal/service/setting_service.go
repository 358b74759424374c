package service

import (
	"context"
	"strings"
	"time"

	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"
)

const settingCacheTTL = 5 * time.Minute

// SettingService key/value settings with typed accessors
type SettingService struct {
	repo     repository.SettingRepository
	defaults *config.Config
}

// NewSettingService builds the service; defaults seed every typed setting
func NewSettingService(repo repository.SettingRepository, defaults *config.Config) *SettingService {
	if defaults == nil {
		defaults = &config.Config{}
	}
	return &SettingService{repo: repo, defaults: defaults}
}

func settingCacheKey(key string) string {
	return "setting:" + key
}

// GetByKey raw stored value, nil when never saved
func (s *SettingService) GetByKey(key string) (models.JSON, error) {
	key = strings.TrimSpace(key)
	ctx := context.Background()

	var cached models.JSON
	if hit, err := cache.GetJSON(ctx, settingCacheKey(key), &cached); err == nil && hit {
		return cached, nil
	}

	setting, err := s.repo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	if err := cache.SetJSON(ctx, settingCacheKey(key), setting.ValueJSON, settingCacheTTL); err != nil {
		logger.Warnw("setting_cache_set_failed", "key", key, "error", err)
	}
	return setting.ValueJSON, nil
}

// Update upserts the raw value under key and drops the cached copy
func (s *SettingService) Update(key string, value map[string]interface{}) (models.JSON, error) {
	key = strings.TrimSpace(key)
	setting, err := s.repo.Upsert(key, models.JSON(value))
	if err != nil {
		return nil, err
	}
	if err := cache.Del(context.Background(), settingCacheKey(key)); err != nil {
		logger.Warnw("setting_cache_del_failed", "key", key, "error", err)
	}
	return setting.ValueJSON, nil
}

// IsKnownKey reports whether key is an editable setting
func IsKnownKey(key string) bool {
	switch key {
	case constants.SettingKeySiteConfig,
		constants.SettingKeyContactConfig,
		constants.SettingKeyMpesaConfig,
		constants.SettingKeySMSConfig,
		constants.SettingKeySMTPConfig,
		constants.SettingKeyNotificationConfig,
		constants.SettingKeyDashboardConfig:
		return true
	default:
		return false
	}
}

// GetForAdmin returns the effective value of key with secrets masked
func (s *SettingService) GetForAdmin(key string) (models.JSON, error) {
	switch key {
	case constants.SettingKeySiteConfig:
		setting, err := s.GetSiteSetting()
		return SiteSettingToMap(setting), err
	case constants.SettingKeyContactConfig:
		setting, err := s.GetContactSetting()
		return ContactSettingToMap(setting), err
	case constants.SettingKeyMpesaConfig:
		setting, err := s.GetMpesaSetting()
		return MaskMpesaSettingForAdmin(setting), err
	case constants.SettingKeySMSConfig:
		setting, err := s.GetSMSSetting()
		return MaskSMSSettingForAdmin(setting), err
	case constants.SettingKeySMTPConfig:
		setting, err := s.GetSMTPSetting()
		return MaskSMTPSettingForAdmin(setting), err
	case constants.SettingKeyNotificationConfig:
		setting, err := s.GetNotificationSetting()
		return NotificationSettingToMap(setting), err
	case constants.SettingKeyDashboardConfig:
		setting, err := s.GetDashboardSetting()
		return DashboardSettingToMap(setting), err
	default:
		return nil, ErrSettingKeyInvalid
	}
}

// UpdateFromAdmin merges raw over the current value of key, validates and stores it.
// Secret fields left empty keep their stored value.
func (s *SettingService) UpdateFromAdmin(key string, raw map[string]interface{}) (models.JSON, error) {
	switch key {
	case constants.SettingKeySiteConfig:
		current, err := s.GetSiteSetting()
		if err != nil {
			return nil, err
		}
		next := NormalizeSiteSetting(siteSettingFromJSON(raw, current))
		if err := ValidateSiteSetting(next); err != nil {
			return nil, err
		}
		if _, err := s.Update(key, SiteSettingToMap(next)); err != nil {
			return nil, err
		}
		return SiteSettingToMap(next), nil
	case constants.SettingKeyContactConfig:
		current, err := s.GetContactSetting()
		if err != nil {
			return nil, err
		}
		next := NormalizeContactSetting(contactSettingFromJSON(raw, current))
		if err := ValidateContactSetting(next); err != nil {
			return nil, err
		}
		if _, err := s.Update(key, ContactSettingToMap(next)); err != nil {
			return nil, err
		}
		return ContactSettingToMap(next), nil
	case constants.SettingKeyMpesaConfig:
		current, err := s.GetMpesaSetting()
		if err != nil {
			return nil, err
		}
		next := NormalizeMpesaSetting(mpesaSettingFromJSON(raw, current, true))
		if err := ValidateMpesaSetting(next); err != nil {
			return nil, err
		}
		if _, err := s.Update(key, MpesaSettingToMap(next)); err != nil {
			return nil, err
		}
		return MaskMpesaSettingForAdmin(next), nil
	case constants.SettingKeySMSConfig:
		current, err := s.GetSMSSetting()
		if err != nil {
			return nil, err
		}
		next := NormalizeSMSSetting(smsSettingFromJSON(raw, current, true))
		if err := ValidateSMSSetting(next); err != nil {
			return nil, err
		}
		if _, err := s.Update(key, SMSSettingToMap(next)); err != nil {
			return nil, err
		}
		return MaskSMSSettingForAdmin(next), nil
	case constants.SettingKeySMTPConfig:
		current, err := s.GetSMTPSetting()
		if err != nil {
			return nil, err
		}
		next := NormalizeSMTPSetting(smtpSettingFromJSON(raw, current, true))
		if err := ValidateSMTPSetting(next); err != nil {
			return nil, err
		}
		if _, err := s.Update(key, SMTPSettingToMap(next)); err != nil {
			return nil, err
		}
		return MaskSMTPSettingForAdmin(next), nil
	case constants.SettingKeyNotificationConfig:
		current, err := s.GetNotificationSetting()
		if err != nil {
			return nil, err
		}
		next := NormalizeNotificationSetting(notificationSettingFromJSON(raw, current))
		if err := ValidateNotificationSetting(next); err != nil {
			return nil, err
		}
		if _, err := s.Update(key, NotificationSettingToMap(next)); err != nil {
			return nil, err
		}
		return NotificationSettingToMap(next), nil
	case constants.SettingKeyDashboardConfig:
		current, err := s.GetDashboardSetting()
		if err != nil {
			return nil, err
		}
		next := dashboardSettingFromJSON(raw, current)
		if _, err := s.Update(key, DashboardSettingToMap(next)); err != nil {
			return nil, err
		}
		return DashboardSettingToMap(next), nil
	default:
		return nil, ErrSettingKeyInvalid
	}
}

// PublicConfig storefront-safe subset of site and contact settings
func (s *SettingService) PublicConfig() (models.JSON, error) {
	site, err := s.GetSiteSetting()
	if err != nil {
		return nil, err
	}
	contact, err := s.GetContactSetting()
	if err != nil {
		return nil, err
	}
	mpesaSetting, err := s.GetMpesaSetting()
	if err != nil {
		return nil, err
	}
	return models.JSON{
		"site":    SiteSettingToMap(site),
		"contact": ContactSettingToMap(contact),
		"payment": map[string]interface{}{
			"mpesa_enabled": mpesaSetting.Enabled,
			"payment_mode":  mpesaSetting.PaymentMode,
			"manual":        true,
		},
	}, nil
}
