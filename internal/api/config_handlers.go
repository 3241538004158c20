// internal/api/config_handlers.go
package api

import (
	"github.com/gin-gonic/gin"
)

// GetSettings 返回当前运行配置
func (h *Handler) GetSettings(c *gin.Context) {
	h.Response.Success(c, h.ConfigService.GetCurrentConfig())
}

// UpdateSettings 调整运行时设置并持久化
// 只接受可在运行中生效的字段，基础配置以环境为准
func (h *Handler) UpdateSettings(c *gin.Context) {
	var payload struct {
		DebugMode      *bool  `json:"debug_mode"`
		UploadMaxBytes *int64 `json:"upload_max_bytes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	updated, err := h.ConfigService.UpdateSettings(payload.DebugMode, payload.UploadMaxBytes)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, updated, "设置已更新")
}
