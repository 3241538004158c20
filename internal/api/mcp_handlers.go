// internal/api/mcp_handlers.go
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sableworks/agentconsole/internal/models"
)

// GetMCPConfigs 列出全部MCP工具配置
func (h *Handler) GetMCPConfigs(c *gin.Context) {
	h.Response.Success(c, h.MCPService.ListConfigs())
}

// GetMCPConfig 按ID读取MCP配置
func (h *Handler) GetMCPConfig(c *gin.Context) {
	cfg, err := h.MCPService.GetConfig(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, cfg)
}

// CreateMCPConfig 新建MCP配置
func (h *Handler) CreateMCPConfig(c *gin.Context) {
	var payload models.MCPConfigCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	cfg, err := h.MCPService.CreateConfig(payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Created(c, cfg)
}

// UpdateMCPConfig 整体更新MCP配置
func (h *Handler) UpdateMCPConfig(c *gin.Context) {
	var payload models.MCPConfigCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	cfg, err := h.MCPService.UpdateConfig(c.Param("id"), payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, cfg, "配置已更新")
}

// DeleteMCPConfig 删除MCP配置
func (h *Handler) DeleteMCPConfig(c *gin.Context) {
	if err := h.MCPService.DeleteConfig(c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, nil, "配置已删除")
}

// TestMCPConfig 对配置做连通性测试
// 无论测试通过与否都返回200，结果体现在配置的status字段上
func (h *Handler) TestMCPConfig(c *gin.Context) {
	cfg, err := h.MCPService.TestConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, cfg, "测试完成")
}
