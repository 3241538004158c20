// internal/api/chat_handlers.go
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sableworks/agentconsole/internal/models"
)

// Chat 同步执行一轮聊天测试
// 指定了 model_name 就用该模型的配置，否则用默认配置
func (h *Handler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	resp, err := h.ChatService.Chat(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, resp)
}

// GetChatSession 读取测试会话记录
func (h *Handler) GetChatSession(c *gin.Context) {
	session, err := h.ChatService.GetSession(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, session)
}
