package public

import (
	"errors"

	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetImageCaptcha issues an image challenge for checkout
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		if errors.Is(err, service.ErrCaptchaDisabled) {
			respondError(c, response.CodeBadRequest, "captcha is disabled", nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to generate captcha", err)
		return
	}
	response.Success(c, challenge)
}
