package service

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/phone"
)

// SiteSetting storefront identity
type SiteSetting struct {
	Name     string `json:"name"`
	Tagline  string `json:"tagline"`
	BaseURL  string `json:"base_url"`
	LogoURL  string `json:"logo_url"`
	Currency string `json:"currency"`
}

// ContactSetting how customers reach the shop; WhatsAppNumber receives checkout hand-offs
type ContactSetting struct {
	WhatsAppNumber string `json:"whatsapp_number"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	BusinessHours  string `json:"business_hours"`
}

// SiteDefaultSetting seeds the site setting from static config
func SiteDefaultSetting(cfgName, cfgBaseURL, cfgCurrency string) SiteSetting {
	return NormalizeSiteSetting(SiteSetting{
		Name:     cfgName,
		BaseURL:  cfgBaseURL,
		Currency: cfgCurrency,
	})
}

// NormalizeSiteSetting trims and fills defaults
func NormalizeSiteSetting(setting SiteSetting) SiteSetting {
	setting.Name = truncateRunes(setting.Name, 120)
	if setting.Name == "" {
		setting.Name = "Dukani"
	}
	setting.Tagline = truncateRunes(setting.Tagline, 200)
	setting.BaseURL = strings.TrimRight(strings.TrimSpace(setting.BaseURL), "/")
	setting.LogoURL = strings.TrimSpace(setting.LogoURL)
	setting.Currency = strings.ToUpper(strings.TrimSpace(setting.Currency))
	if setting.Currency == "" {
		setting.Currency = constants.CurrencyKES
	}
	return setting
}

// ValidateSiteSetting checks URLs
func ValidateSiteSetting(setting SiteSetting) error {
	if setting.BaseURL != "" {
		if u, err := url.Parse(setting.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: base_url must be an absolute URL", ErrSiteConfigInvalid)
		}
	}
	if len(setting.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3 letter code", ErrSiteConfigInvalid)
	}
	return nil
}

// SiteSettingToMap settings table shape
func SiteSettingToMap(setting SiteSetting) models.JSON {
	return models.JSON{
		"name":     setting.Name,
		"tagline":  setting.Tagline,
		"base_url": setting.BaseURL,
		"logo_url": setting.LogoURL,
		"currency": setting.Currency,
	}
}

func siteSettingFromJSON(raw map[string]interface{}, fallback SiteSetting) SiteSetting {
	next := fallback
	if raw == nil {
		return next
	}
	next.Name = readString(raw, "name", next.Name)
	next.Tagline = readString(raw, "tagline", next.Tagline)
	next.BaseURL = readString(raw, "base_url", next.BaseURL)
	next.LogoURL = readString(raw, "logo_url", next.LogoURL)
	next.Currency = readString(raw, "currency", next.Currency)
	return next
}

// GetSiteSetting stored value merged over config defaults
func (s *SettingService) GetSiteSetting() (SiteSetting, error) {
	fallback := SiteDefaultSetting(s.defaults.Site.Name, s.defaults.Site.BaseURL, s.defaults.Site.Currency)
	value, err := s.GetByKey(constants.SettingKeySiteConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return NormalizeSiteSetting(siteSettingFromJSON(value, fallback)), nil
}

// NormalizeContactSetting trims fields; phone numbers are stored as 254XXXXXXXXX when valid
func NormalizeContactSetting(setting ContactSetting) ContactSetting {
	setting.WhatsAppNumber = normalizeContactPhone(setting.WhatsAppNumber)
	setting.Phone = normalizeContactPhone(setting.Phone)
	setting.Email = strings.TrimSpace(setting.Email)
	setting.Address = truncateRunes(setting.Address, 500)
	setting.BusinessHours = truncateRunes(setting.BusinessHours, 200)
	return setting
}

func normalizeContactPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if normalized, err := phone.Normalize(raw); err == nil {
		return normalized
	}
	return raw
}

// ValidateContactSetting requires well formed phone numbers and email
func ValidateContactSetting(setting ContactSetting) error {
	if setting.WhatsAppNumber != "" {
		if _, err := phone.Normalize(setting.WhatsAppNumber); err != nil {
			return fmt.Errorf("%w: whatsapp_number is not a Kenyan mobile number", ErrContactConfigInvalid)
		}
	}
	if setting.Phone != "" {
		if _, err := phone.Normalize(setting.Phone); err != nil {
			return fmt.Errorf("%w: phone is not a Kenyan mobile number", ErrContactConfigInvalid)
		}
	}
	if setting.Email != "" {
		if _, err := mail.ParseAddress(setting.Email); err != nil {
			return fmt.Errorf("%w: email is invalid", ErrContactConfigInvalid)
		}
	}
	return nil
}

// ContactSettingToMap settings table shape
func ContactSettingToMap(setting ContactSetting) models.JSON {
	return models.JSON{
		"whatsapp_number": setting.WhatsAppNumber,
		"phone":           setting.Phone,
		"email":           setting.Email,
		"address":         setting.Address,
		"business_hours":  setting.BusinessHours,
	}
}

func contactSettingFromJSON(raw map[string]interface{}, fallback ContactSetting) ContactSetting {
	next := fallback
	if raw == nil {
		return next
	}
	next.WhatsAppNumber = readString(raw, "whatsapp_number", next.WhatsAppNumber)
	next.Phone = readString(raw, "phone", next.Phone)
	next.Email = readString(raw, "email", next.Email)
	next.Address = readString(raw, "address", next.Address)
	next.BusinessHours = readString(raw, "business_hours", next.BusinessHours)
	return next
}

// GetContactSetting stored contact details
func (s *SettingService) GetContactSetting() (ContactSetting, error) {
	fallback := ContactSetting{}
	value, err := s.GetByKey(constants.SettingKeyContactConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return NormalizeContactSetting(contactSettingFromJSON(value, fallback)), nil
}
