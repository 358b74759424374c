package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/payment/mpesa"
)

var shortCodePattern = regexp.MustCompile(`^\d{5,7}$`)

// MpesaSetting M-Pesa Express credentials editable from the admin console.
// CallbackToken, when set, is appended to the callback URL and required on every callback.
type MpesaSetting struct {
	Enabled          bool   `json:"enabled"`
	Environment      string `json:"environment"`
	PaymentMode      string `json:"payment_mode"`
	ShortCode        string `json:"short_code"`
	TillNumber       string `json:"till_number"`
	ConsumerKey      string `json:"consumer_key"`
	ConsumerSecret   string `json:"consumer_secret"`
	PassKey          string `json:"pass_key"`
	CallbackURL      string `json:"callback_url"`
	CallbackToken    string `json:"callback_token"`
	AccountReference string `json:"account_reference"`
	BaseURL          string `json:"base_url,omitempty"` // Daraja host override, e.g. an egress proxy
}

// MpesaDefaultSetting seeds from static config
func MpesaDefaultSetting(cfg config.MpesaConfig) MpesaSetting {
	return NormalizeMpesaSetting(MpesaSetting{
		Enabled:          cfg.Enabled,
		Environment:      cfg.Environment,
		PaymentMode:      cfg.PaymentMode,
		ShortCode:        cfg.ShortCode,
		TillNumber:       cfg.TillNumber,
		ConsumerKey:      cfg.ConsumerKey,
		ConsumerSecret:   cfg.ConsumerSecret,
		PassKey:          cfg.PassKey,
		CallbackURL:      cfg.CallbackURL,
		AccountReference: cfg.AccountReference,
	})
}

// NormalizeMpesaSetting trims fields and fills defaults
func NormalizeMpesaSetting(setting MpesaSetting) MpesaSetting {
	setting.Environment = strings.ToLower(strings.TrimSpace(setting.Environment))
	if setting.Environment != constants.MpesaEnvProduction {
		setting.Environment = constants.MpesaEnvSandbox
	}
	setting.PaymentMode = strings.ToLower(strings.TrimSpace(setting.PaymentMode))
	if setting.PaymentMode != constants.MpesaModeTill {
		setting.PaymentMode = constants.MpesaModePaybill
	}
	setting.ShortCode = strings.TrimSpace(setting.ShortCode)
	setting.TillNumber = strings.TrimSpace(setting.TillNumber)
	setting.ConsumerKey = strings.TrimSpace(setting.ConsumerKey)
	setting.ConsumerSecret = strings.TrimSpace(setting.ConsumerSecret)
	setting.PassKey = strings.TrimSpace(setting.PassKey)
	setting.CallbackURL = strings.TrimSpace(setting.CallbackURL)
	setting.CallbackToken = strings.TrimSpace(setting.CallbackToken)
	setting.AccountReference = truncateRunes(setting.AccountReference, 12)
	setting.BaseURL = strings.TrimRight(strings.TrimSpace(setting.BaseURL), "/")
	return setting
}

// ValidateMpesaSetting checks shape only; credential completeness is enforced at payment time
func ValidateMpesaSetting(setting MpesaSetting) error {
	if setting.ShortCode != "" && !shortCodePattern.MatchString(setting.ShortCode) {
		return fmt.Errorf("%w: short_code must be 5-7 digits", ErrMpesaSettingInvalid)
	}
	if setting.TillNumber != "" && !shortCodePattern.MatchString(setting.TillNumber) {
		return fmt.Errorf("%w: till_number must be 5-7 digits", ErrMpesaSettingInvalid)
	}
	if setting.CallbackURL != "" {
		u, err := url.Parse(setting.CallbackURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%w: callback_url must be an absolute URL", ErrMpesaSettingInvalid)
		}
		if setting.Environment == constants.MpesaEnvProduction && u.Scheme != "https" {
			return fmt.Errorf("%w: production callback_url must use https", ErrMpesaSettingInvalid)
		}
	}
	if setting.BaseURL != "" {
		if u, err := url.Parse(setting.BaseURL); err != nil || u.Host == "" {
			return fmt.Errorf("%w: base_url must be an absolute URL", ErrMpesaSettingInvalid)
		}
	}
	if !setting.Enabled {
		return nil
	}
	if setting.PaymentMode == constants.MpesaModeTill && setting.TillNumber == "" {
		return fmt.Errorf("%w: till_number is required in till mode", ErrMpesaSettingInvalid)
	}
	return nil
}

// ToGatewayConfig converts to the Daraja client config
func (setting MpesaSetting) ToGatewayConfig() *mpesa.Config {
	cfg := &mpesa.Config{
		Enabled:          setting.Enabled,
		Environment:      setting.Environment,
		PaymentMode:      setting.PaymentMode,
		ShortCode:        setting.ShortCode,
		TillNumber:       setting.TillNumber,
		ConsumerKey:      setting.ConsumerKey,
		ConsumerSecret:   setting.ConsumerSecret,
		PassKey:          setting.PassKey,
		CallbackURL:      setting.CallbackURL,
		AccountReference: setting.AccountReference,
		BaseURL:          setting.BaseURL,
	}
	cfg.Normalize()
	return cfg
}

// CallbackURLFor explicit callback URL or the site default, carrying the token when set
func (setting MpesaSetting) CallbackURLFor(siteBaseURL string) string {
	callbackURL := mpesa.ResolveCallbackURL(setting.ToGatewayConfig(), siteBaseURL)
	if setting.CallbackToken == "" {
		return callbackURL
	}
	u, err := url.Parse(callbackURL)
	if err != nil {
		return callbackURL
	}
	query := u.Query()
	query.Set("token", setting.CallbackToken)
	u.RawQuery = query.Encode()
	return u.String()
}

// MpesaSettingToMap settings table shape
func MpesaSettingToMap(setting MpesaSetting) models.JSON {
	return models.JSON{
		"enabled":           setting.Enabled,
		"environment":       setting.Environment,
		"payment_mode":      setting.PaymentMode,
		"short_code":        setting.ShortCode,
		"till_number":       setting.TillNumber,
		"consumer_key":      setting.ConsumerKey,
		"consumer_secret":   setting.ConsumerSecret,
		"pass_key":          setting.PassKey,
		"callback_url":      setting.CallbackURL,
		"callback_token":    setting.CallbackToken,
		"account_reference": setting.AccountReference,
		"base_url":          setting.BaseURL,
	}
}

// MaskMpesaSettingForAdmin hides secrets, reporting only their presence
func MaskMpesaSettingForAdmin(setting MpesaSetting) models.JSON {
	masked := MpesaSettingToMap(setting)
	masked["consumer_secret"] = ""
	masked["pass_key"] = ""
	masked["callback_token"] = ""
	masked["has_consumer_secret"] = setting.ConsumerSecret != ""
	masked["has_pass_key"] = setting.PassKey != ""
	masked["has_callback_token"] = setting.CallbackToken != ""
	masked["credentials_complete"] = mpesa.ValidateConfig(setting.ToGatewayConfig()) == nil
	return masked
}

func mpesaSettingFromJSON(raw map[string]interface{}, fallback MpesaSetting, keepSecrets bool) MpesaSetting {
	next := fallback
	if raw == nil {
		return next
	}
	next.Enabled = readBool(raw, "enabled", next.Enabled)
	next.Environment = readString(raw, "environment", next.Environment)
	next.PaymentMode = readString(raw, "payment_mode", next.PaymentMode)
	next.ShortCode = readString(raw, "short_code", next.ShortCode)
	next.TillNumber = readString(raw, "till_number", next.TillNumber)
	next.ConsumerKey = readString(raw, "consumer_key", next.ConsumerKey)
	next.ConsumerSecret = readSecret(raw, "consumer_secret", next.ConsumerSecret, keepSecrets)
	next.PassKey = readSecret(raw, "pass_key", next.PassKey, keepSecrets)
	next.CallbackURL = readString(raw, "callback_url", next.CallbackURL)
	next.CallbackToken = readSecret(raw, "callback_token", next.CallbackToken, keepSecrets)
	next.AccountReference = readString(raw, "account_reference", next.AccountReference)
	next.BaseURL = readString(raw, "base_url", next.BaseURL)
	return next
}

// GetMpesaSetting stored value merged over config defaults
func (s *SettingService) GetMpesaSetting() (MpesaSetting, error) {
	fallback := MpesaDefaultSetting(s.defaults.Mpesa)
	value, err := s.GetByKey(constants.SettingKeyMpesaConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return NormalizeMpesaSetting(mpesaSettingFromJSON(value, fallback, false)), nil
}
