package service

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
)

// SMTPSetting outbound mail server
type SMTPSetting struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	UseTLS   bool   `json:"use_tls"`
	UseSSL   bool   `json:"use_ssl"`
}

// SMTPDefaultSetting seeds from static config
func SMTPDefaultSetting(cfg config.EmailConfig) SMTPSetting {
	return NormalizeSMTPSetting(SMTPSetting{
		Enabled:  cfg.Enabled,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
		UseTLS:   cfg.UseTLS,
		UseSSL:   cfg.UseSSL,
	})
}

// NormalizeSMTPSetting trims fields and fills the default port
func NormalizeSMTPSetting(setting SMTPSetting) SMTPSetting {
	setting.Host = strings.TrimSpace(setting.Host)
	setting.Username = strings.TrimSpace(setting.Username)
	setting.Password = strings.TrimSpace(setting.Password)
	setting.From = strings.TrimSpace(setting.From)
	setting.FromName = strings.TrimSpace(setting.FromName)
	if setting.Port <= 0 || setting.Port > 65535 {
		setting.Port = 587
	}
	return setting
}

// ValidateSMTPSetting checks the server can be used when enabled
func ValidateSMTPSetting(setting SMTPSetting) error {
	if setting.Port <= 0 || setting.Port > 65535 {
		return fmt.Errorf("%w: port must be within 1-65535", ErrSMTPConfigInvalid)
	}
	if setting.UseTLS && setting.UseSSL {
		return fmt.Errorf("%w: use_tls and use_ssl are mutually exclusive", ErrSMTPConfigInvalid)
	}
	if !setting.Enabled {
		return nil
	}
	if setting.Host == "" {
		return fmt.Errorf("%w: host is required", ErrSMTPConfigInvalid)
	}
	if setting.From == "" {
		return fmt.Errorf("%w: from is required", ErrSMTPConfigInvalid)
	}
	if _, err := mail.ParseAddress(setting.From); err != nil {
		return fmt.Errorf("%w: from is not a valid address", ErrSMTPConfigInvalid)
	}
	return nil
}

// SMTPSettingToConfig runtime mail config
func SMTPSettingToConfig(setting SMTPSetting) config.EmailConfig {
	normalized := NormalizeSMTPSetting(setting)
	return config.EmailConfig{
		Enabled:  normalized.Enabled,
		Host:     normalized.Host,
		Port:     normalized.Port,
		Username: normalized.Username,
		Password: normalized.Password,
		From:     normalized.From,
		FromName: normalized.FromName,
		UseTLS:   normalized.UseTLS,
		UseSSL:   normalized.UseSSL,
	}
}

// SMTPSettingToMap settings table shape
func SMTPSettingToMap(setting SMTPSetting) models.JSON {
	normalized := NormalizeSMTPSetting(setting)
	return models.JSON{
		"enabled":   normalized.Enabled,
		"host":      normalized.Host,
		"port":      normalized.Port,
		"username":  normalized.Username,
		"password":  normalized.Password,
		"from":      normalized.From,
		"from_name": normalized.FromName,
		"use_tls":   normalized.UseTLS,
		"use_ssl":   normalized.UseSSL,
	}
}

// MaskSMTPSettingForAdmin hides the password
func MaskSMTPSettingForAdmin(setting SMTPSetting) models.JSON {
	masked := SMTPSettingToMap(setting)
	masked["password"] = ""
	masked["has_password"] = setting.Password != ""
	return masked
}

func smtpSettingFromJSON(raw map[string]interface{}, fallback SMTPSetting, keepSecrets bool) SMTPSetting {
	next := fallback
	if raw == nil {
		return next
	}
	next.Enabled = readBool(raw, "enabled", next.Enabled)
	next.Host = readString(raw, "host", next.Host)
	next.Port = readInt(raw, "port", next.Port)
	next.Username = readString(raw, "username", next.Username)
	next.Password = readSecret(raw, "password", next.Password, keepSecrets)
	next.From = readString(raw, "from", next.From)
	next.FromName = readString(raw, "from_name", next.FromName)
	next.UseTLS = readBool(raw, "use_tls", next.UseTLS)
	next.UseSSL = readBool(raw, "use_ssl", next.UseSSL)
	return next
}

// GetSMTPSetting stored value merged over config defaults
func (s *SettingService) GetSMTPSetting() (SMTPSetting, error) {
	fallback := SMTPDefaultSetting(s.defaults.Email)
	value, err := s.GetByKey(constants.SettingKeySMTPConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return NormalizeSMTPSetting(smtpSettingFromJSON(value, fallback, false)), nil
}
