package service

import (
	"strings"
	"sync"
	"time"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"

	"github.com/mojocn/base64Captcha"
)

const captchaAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// CaptchaVerifyPayload captcha answer sent with a protected request
type CaptchaVerifyPayload struct {
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// CaptchaImageChallenge image captcha
type CaptchaImageChallenge struct {
	CaptchaID   string `json:"captcha_id"`
	ImageBase64 string `json:"image_base64"`
}

// CaptchaService image captcha for guest checkout
type CaptchaService struct {
	cfg config.CaptchaConfig

	once  sync.Once
	store base64Captcha.Store
}

// NewCaptchaService builds the service with normalized image limits
func NewCaptchaService(cfg config.CaptchaConfig) *CaptchaService {
	return &CaptchaService{cfg: normalizeCaptchaConfig(cfg)}
}

func normalizeCaptchaConfig(cfg config.CaptchaConfig) config.CaptchaConfig {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider != constants.CaptchaProviderImage {
		cfg.Provider = constants.CaptchaProviderNone
	}
	image := &cfg.Image
	if image.Length < 4 || image.Length > 8 {
		image.Length = 5
	}
	if image.Width < 80 || image.Width > 400 {
		image.Width = 160
	}
	if image.Height < 30 || image.Height > 160 {
		image.Height = 60
	}
	if image.NoiseCount < 0 || image.NoiseCount > 20 {
		image.NoiseCount = 2
	}
	if image.ShowLine < 0 || image.ShowLine > 20 {
		image.ShowLine = 2
	}
	if image.MaxStore <= 0 {
		image.MaxStore = 10240
	}
	if image.ExpireSecs <= 0 {
		image.ExpireSecs = 300
	}
	return cfg
}

// Enabled reports whether scene requires a captcha
func (s *CaptchaService) Enabled(scene string) bool {
	if s == nil || s.cfg.Provider != constants.CaptchaProviderImage {
		return false
	}
	switch scene {
	case constants.CaptchaSceneCheckout:
		return s.cfg.Checkout
	case constants.CaptchaSceneSMS:
		return s.cfg.SMS
	default:
		return false
	}
}

// PublicSetting storefront view
func (s *CaptchaService) PublicSetting() map[string]interface{} {
	provider := constants.CaptchaProviderNone
	checkout, sms := false, false
	if s != nil {
		provider = s.cfg.Provider
		checkout = s.Enabled(constants.CaptchaSceneCheckout)
		sms = s.Enabled(constants.CaptchaSceneSMS)
	}
	return map[string]interface{}{
		"provider": provider,
		"scenes": map[string]bool{
			constants.CaptchaSceneCheckout: checkout,
			constants.CaptchaSceneSMS:      sms,
		},
	}
}

func (s *CaptchaService) imageStore() base64Captcha.Store {
	s.once.Do(func() {
		s.store = base64Captcha.NewMemoryStore(s.cfg.Image.MaxStore, time.Duration(s.cfg.Image.ExpireSecs)*time.Second)
	})
	return s.store
}

// GenerateImageChallenge new image captcha
func (s *CaptchaService) GenerateImageChallenge() (*CaptchaImageChallenge, error) {
	if s == nil || s.cfg.Provider != constants.CaptchaProviderImage {
		return nil, ErrCaptchaDisabled
	}
	image := s.cfg.Image
	driver := base64Captcha.NewDriverString(
		image.Height,
		image.Width,
		image.NoiseCount,
		image.ShowLine,
		image.Length,
		captchaAlphabet,
		nil,
		base64Captcha.DefaultEmbeddedFonts,
		nil,
	)
	id, b64s, _, err := base64Captcha.NewCaptcha(driver, s.imageStore()).Generate()
	if err != nil {
		return nil, err
	}
	return &CaptchaImageChallenge{
		CaptchaID:   strings.TrimSpace(id),
		ImageBase64: strings.TrimSpace(b64s),
	}, nil
}

// Verify checks the answer for scene; answers are single use
func (s *CaptchaService) Verify(scene string, payload CaptchaVerifyPayload) error {
	if !s.Enabled(scene) {
		return nil
	}
	id := strings.TrimSpace(payload.CaptchaID)
	code := strings.ToLower(strings.TrimSpace(payload.CaptchaCode))
	if id == "" || code == "" {
		return ErrCaptchaRequired
	}
	if !s.imageStore().Verify(id, code, true) {
		return ErrCaptchaInvalid
	}
	return nil
}
