package admin

import (
	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const publicConfigCacheKey = "public:config"

// GetSetting typed setting with secrets masked
func (h *Handler) GetSetting(c *gin.Context) {
	value, err := h.SettingService.GetForAdmin(c.Param("key"))
	if err != nil {
		respondWithMappedError(c, err, settingAdminErrorRules, response.CodeInternal, "failed to load setting")
		return
	}
	response.Success(c, value)
}

// UpdateSetting merges the body over the stored value; blank secrets keep their old value
func (h *Handler) UpdateSetting(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondError(c, response.CodeBadRequest, "setting body must be a JSON object", nil)
		return
	}
	key := c.Param("key")
	value, err := h.SettingService.UpdateFromAdmin(key, raw)
	if err != nil {
		respondWithMappedError(c, err, settingAdminErrorRules, response.CodeInternal, "failed to save setting")
		return
	}
	_ = cache.Del(c.Request.Context(), publicConfigCacheKey)
	adminID, _ := getAdminID(c)
	requestLog(c).Infow("admin_setting_updated", "admin_id", adminID, "key", key)
	response.Success(c, value)
}
