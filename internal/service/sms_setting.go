package service

import (
	"fmt"
	"strings"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/sms"
)

// SMSSetting aggregator credentials; an empty provider means messages are simulated
type SMSSetting struct {
	Provider    string `json:"provider"`
	Username    string `json:"username"`
	APIKey      string `json:"api_key"`
	SenderID    string `json:"sender_id"`
	Environment string `json:"environment"`
	BaseURL     string `json:"base_url,omitempty"`
}

// SMSDefaultSetting seeds from static config
func SMSDefaultSetting(cfg config.SMSConfig) SMSSetting {
	return NormalizeSMSSetting(SMSSetting{
		Provider:    cfg.Provider,
		Username:    cfg.Username,
		APIKey:      cfg.APIKey,
		SenderID:    cfg.SenderID,
		Environment: cfg.Environment,
	})
}

// NormalizeSMSSetting trims fields and fills defaults
func NormalizeSMSSetting(setting SMSSetting) SMSSetting {
	cfg := setting.ToClientConfig()
	return SMSSetting{
		Provider:    cfg.Provider,
		Username:    cfg.Username,
		APIKey:      cfg.APIKey,
		SenderID:    cfg.SenderID,
		Environment: cfg.Environment,
		BaseURL:     cfg.BaseURL,
	}
}

// ValidateSMSSetting requires complete credentials once a provider is chosen
func ValidateSMSSetting(setting SMSSetting) error {
	switch setting.Provider {
	case constants.SMSProviderNone:
		return nil
	case constants.SMSProviderAfricasTalking:
	default:
		return fmt.Errorf("%w: unsupported provider %s", ErrSMSConfigInvalid, setting.Provider)
	}
	if setting.Username == "" || setting.APIKey == "" {
		return fmt.Errorf("%w: username and api_key are required", ErrSMSConfigInvalid)
	}
	if len(setting.SenderID) > 11 {
		return fmt.Errorf("%w: sender_id is at most 11 characters", ErrSMSConfigInvalid)
	}
	return nil
}

// ToClientConfig converts to the Africa's Talking client config
func (setting SMSSetting) ToClientConfig() *sms.Config {
	cfg := &sms.Config{
		Provider:    setting.Provider,
		Username:    setting.Username,
		APIKey:      setting.APIKey,
		SenderID:    setting.SenderID,
		Environment: setting.Environment,
		BaseURL:     setting.BaseURL,
	}
	cfg.Normalize()
	return cfg
}

// SMSSettingToMap settings table shape
func SMSSettingToMap(setting SMSSetting) models.JSON {
	return models.JSON{
		"provider":    setting.Provider,
		"username":    setting.Username,
		"api_key":     setting.APIKey,
		"sender_id":   setting.SenderID,
		"environment": setting.Environment,
		"base_url":    setting.BaseURL,
	}
}

// MaskSMSSettingForAdmin hides the API key
func MaskSMSSettingForAdmin(setting SMSSetting) models.JSON {
	masked := SMSSettingToMap(setting)
	masked["api_key"] = ""
	masked["has_api_key"] = strings.TrimSpace(setting.APIKey) != ""
	masked["configured"] = setting.ToClientConfig().Configured()
	return masked
}

func smsSettingFromJSON(raw map[string]interface{}, fallback SMSSetting, keepSecrets bool) SMSSetting {
	next := fallback
	if raw == nil {
		return next
	}
	next.Provider = readString(raw, "provider", next.Provider)
	next.Username = readString(raw, "username", next.Username)
	next.APIKey = readSecret(raw, "api_key", next.APIKey, keepSecrets)
	next.SenderID = readString(raw, "sender_id", next.SenderID)
	next.Environment = readString(raw, "environment", next.Environment)
	next.BaseURL = readString(raw, "base_url", next.BaseURL)
	return next
}

// GetSMSSetting stored value merged over config defaults
func (s *SettingService) GetSMSSetting() (SMSSetting, error) {
	fallback := SMSDefaultSetting(s.defaults.SMS)
	value, err := s.GetByKey(constants.SettingKeySMSConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return NormalizeSMSSetting(smsSettingFromJSON(value, fallback, false)), nil
}
