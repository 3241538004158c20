// internal/api/draft_handlers.go
package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/sableworks/agentconsole/internal/composer"
	"github.com/sableworks/agentconsole/internal/config"
)

// draftResponse 编排端点的统一响应体
type draftResponse struct {
	SessionID string          `json:"session_id"`
	Draft     *composer.Draft `json:"draft"`
}

// StartDraft 新建编排会话：一条空白条目、步骤索引0
func (h *Handler) StartDraft(c *gin.Context) {
	sessionID, draft := h.DraftService.StartSession()
	h.Response.Created(c, draftResponse{SessionID: sessionID, Draft: draft}, "编排会话已创建")
}

// RestartDraft 丢弃已有草稿并重新开始
// 是否需要用户确认丢弃由前端负责，服务端不做拦截
func (h *Handler) RestartDraft(c *gin.Context) {
	draft, err := h.DraftService.Restart(c.Param("session_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// GetDraft 返回当前草稿快照
func (h *Handler) GetDraft(c *gin.Context) {
	draft, err := h.DraftService.GetDraft(c.Param("session_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// GetDraftHasContent 草稿是否包含用户输入
func (h *Handler) GetDraftHasContent(c *gin.Context) {
	hasContent, err := h.DraftService.HasContent(c.Param("session_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"has_content": hasContent})
}

// AddDraftItem 追加一条空白条目并把焦点移到新条目
func (h *Handler) AddDraftItem(c *gin.Context) {
	draft, err := h.DraftService.AddItem(c.Param("session_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// GoToDraftStep 切换当前步骤；越界的导航静默忽略
func (h *Handler) GoToDraftStep(c *gin.Context) {
	var payload struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	draft, err := h.DraftService.GoToStep(c.Param("session_id"), payload.Index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// UpdateDraftItem 更新当前步骤的条目，nil字段不改动
func (h *Handler) UpdateDraftItem(c *gin.Context) {
	var payload composer.ItemUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	draft, err := h.DraftService.UpdateCurrentItem(c.Param("session_id"), payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// AttachDraftImage 上传图片并附到当前步骤的条目上
func (h *Handler) AttachDraftImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		h.Response.BadRequest(c, "缺少图片文件", err.Error())
		return
	}
	defer file.Close()

	maxBytes := config.GetCurrentConfig().UploadMaxBytes
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.Response.InternalError(c, "读取上传内容失败", err.Error())
		return
	}
	if int64(len(data)) > maxBytes {
		h.Response.BadRequest(c, "图片超过大小限制")
		return
	}

	draft, err := h.DraftService.AttachImage(c.Request.Context(), c.Param("session_id"), data, header.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft}, "图片已附加")
}

// RemoveDraftImage 清除当前条目的图片
func (h *Handler) RemoveDraftImage(c *gin.Context) {
	draft, err := h.DraftService.RemoveImage(c.Param("session_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// DeleteDraftItem 删除指定条目并重排序号
func (h *Handler) DeleteDraftItem(c *gin.Context) {
	var payload struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	draft, err := h.DraftService.DeleteItem(c.Param("session_id"), payload.Index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// SetDraftMetadata 整体替换文档元数据
func (h *Handler) SetDraftMetadata(c *gin.Context) {
	var payload struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	draft, err := h.DraftService.SetMetadata(c.Param("session_id"), payload.Name, payload.Description, payload.Tags)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, draftResponse{SessionID: c.Param("session_id"), Draft: draft})
}

// CommitDraft 校验并提交整份草稿
// 校验失败返回400并指明原因；持久化失败返回502且草稿保留可重试
func (h *Handler) CommitDraft(c *gin.Context) {
	doc, err := h.DraftService.Commit(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Created(c, doc, "文档已保存")
}

// CancelDraft 丢弃草稿并移除会话
func (h *Handler) CancelDraft(c *gin.Context) {
	if err := h.DraftService.Cancel(c.Param("session_id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, nil, "草稿已丢弃")
}
