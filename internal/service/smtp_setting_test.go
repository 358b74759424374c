package service

import (
	"errors"
	"testing"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
)

func TestNormalizeSMTPSetting(t *testing.T) {
	setting := NormalizeSMTPSetting(SMTPSetting{Host: "  smtp.example.com ", Port: 70000})
	if setting.Port != 587 {
		t.Fatalf("expected default port 587, got %d", setting.Port)
	}
	if setting.Host != "smtp.example.com" {
		t.Fatalf("host not trimmed: %q", setting.Host)
	}
}

func TestValidateSMTPSetting(t *testing.T) {
	invalid := NormalizeSMTPSetting(SMTPSetting{
		Enabled: true,
		Host:    "smtp.example.com",
		From:    "notify@example.com",
		UseTLS:  true,
		UseSSL:  true,
	})
	if err := ValidateSMTPSetting(invalid); !errors.Is(err, ErrSMTPConfigInvalid) {
		t.Fatalf("expected tls/ssl conflict validation error, got %v", err)
	}

	missingFrom := NormalizeSMTPSetting(SMTPSetting{Enabled: true, Host: "smtp.example.com"})
	if err := ValidateSMTPSetting(missingFrom); !errors.Is(err, ErrSMTPConfigInvalid) {
		t.Fatalf("expected missing from error, got %v", err)
	}

	disabled := NormalizeSMTPSetting(SMTPSetting{})
	if err := ValidateSMTPSetting(disabled); err != nil {
		t.Fatalf("disabled smtp needs no host: %v", err)
	}

	valid := NormalizeSMTPSetting(SMTPSetting{
		Enabled:  true,
		Host:     "smtp.example.com",
		Port:     587,
		From:     "notify@example.com",
		UseTLS:   true,
		Password: "secret",
	})
	if err := ValidateSMTPSetting(valid); err != nil {
		t.Fatalf("expected valid smtp config, got error: %v", err)
	}
}

func TestUpdateSMTPSettingKeepsPasswordWhenEmpty(t *testing.T) {
	repo := newMockSettingRepo()
	cfg := &config.Config{}
	cfg.Email = config.EmailConfig{
		Enabled:  true,
		Host:     "smtp.default.com",
		Port:     587,
		Username: "default-user",
		Password: "default-secret",
		From:     "default@example.com",
		FromName: "Default",
		UseTLS:   true,
	}
	svc := NewSettingService(repo, cfg)

	masked, err := svc.UpdateFromAdmin(constants.SettingKeySMTPConfig, map[string]interface{}{
		"host":     "smtp.custom.com",
		"password": "",
	})
	if err != nil {
		t.Fatalf("update smtp setting failed: %v", err)
	}
	if masked["password"] != "" || masked["has_password"] != true {
		t.Fatalf("admin view should mask the password, got %v", masked)
	}

	saved, ok := repo.store[constants.SettingKeySMTPConfig]
	if !ok {
		t.Fatalf("smtp setting was not saved")
	}
	if saved["password"] != "default-secret" {
		t.Fatalf("expected saved password keep old value, got %v", saved["password"])
	}
	if saved["host"] != "smtp.custom.com" {
		t.Fatalf("expected host to be patched, got %v", saved["host"])
	}

	runtime := NewEmailService(svc, cfg.Email).Config()
	if runtime.Host != "smtp.custom.com" || runtime.Password != "default-secret" || !emailConfigured(runtime) {
		t.Fatalf("runtime config should merge the stored value, got %+v", runtime)
	}
}

func TestUpdateSMSSetting(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo, &config.Config{})

	if _, err := svc.UpdateFromAdmin(constants.SettingKeySMSConfig, map[string]interface{}{
		"provider": "twilio",
	}); !errors.Is(err, ErrSMSConfigInvalid) {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
	if _, err := svc.UpdateFromAdmin(constants.SettingKeySMSConfig, map[string]interface{}{
		"provider": "AfricasTalking",
		"username": "shop",
	}); !errors.Is(err, ErrSMSConfigInvalid) {
		t.Fatalf("expected missing api key error, got %v", err)
	}

	masked, err := svc.UpdateFromAdmin(constants.SettingKeySMSConfig, map[string]interface{}{
		"provider":    " AfricasTalking ",
		"username":    "shop",
		"api_key":     "key-1",
		"sender_id":   "DUKANI",
		"environment": "sandbox",
	})
	if err != nil {
		t.Fatalf("update sms setting failed: %v", err)
	}
	if masked["api_key"] != "" || masked["has_api_key"] != true || masked["configured"] != true {
		t.Fatalf("unexpected admin view %v", masked)
	}

	if _, err := svc.UpdateFromAdmin(constants.SettingKeySMSConfig, map[string]interface{}{
		"sender_id": "DUKANI",
		"api_key":   "",
	}); err != nil {
		t.Fatalf("patch without api key failed: %v", err)
	}
	setting, err := svc.GetSMSSetting()
	if err != nil {
		t.Fatalf("GetSMSSetting error: %v", err)
	}
	if setting.Provider != constants.SMSProviderAfricasTalking || setting.APIKey != "key-1" || setting.Environment != "sandbox" {
		t.Fatalf("unexpected stored sms setting %+v", setting)
	}

	if _, err := svc.UpdateFromAdmin(constants.SettingKeySMSConfig, map[string]interface{}{
		"sender_id": "A-VERY-LONG-SENDER",
	}); !errors.Is(err, ErrSMSConfigInvalid) {
		t.Fatalf("expected sender id length error, got %v", err)
	}
}
