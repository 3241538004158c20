// internal/api/data_handlers.go
package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sableworks/agentconsole/internal/config"
	"github.com/sableworks/agentconsole/internal/models"
)

// GetDocuments 列出全部数据文档，按更新时间倒序
func (h *Handler) GetDocuments(c *gin.Context) {
	h.Response.Success(c, h.DataService.ListDocuments())
}

// GetDocument 按ID读取文档
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.DataService.GetDocument(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, doc)
}

// CreateDocument 直接创建文档（不经过编排工作流）
func (h *Handler) CreateDocument(c *gin.Context) {
	var payload models.DataDocumentCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	doc, err := h.DataService.CreateDocument(c.Request.Context(), payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Created(c, doc)
}

// UpdateDocument 整体替换文档内容，版本号加一
func (h *Handler) UpdateDocument(c *gin.Context) {
	var payload models.DataDocumentCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	doc, err := h.DataService.UpdateDocument(c.Param("id"), payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, doc, "文档已更新")
}

// DeleteDocument 删除文档
func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.DataService.DeleteDocument(c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, nil, "文档已删除")
}

// SearchDocuments 在名称、描述和标签上检索
func (h *Handler) SearchDocuments(c *gin.Context) {
	query := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	h.Response.Success(c, h.DataService.SearchDocuments(query, limit))
}

// GetDocumentStatistics 数据管理页面的统计信息
func (h *Handler) GetDocumentStatistics(c *gin.Context) {
	h.Response.Success(c, h.DataService.Statistics())
}

// UploadImage 独立的图片上传端点
// 校验并返回base64编码结果，由前端自行写入文档内容
func (h *Handler) UploadImage(c *gin.Context) {
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

	result, err := h.DataService.UploadImage(c.Request.Context(), data, header.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.Response.Success(c, result, "上传成功")
}

// ExportDocuments 把文档导出为parquet数据集文件
func (h *Handler) ExportDocuments(c *gin.Context) {
	var payload struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && err != io.EOF {
		h.Response.BadRequest(c, "请求格式不正确", err.Error())
		return
	}

	path, err := h.DataService.ExportParquet(payload.IDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	file, err := h.DataService.ReadExport(path)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	io.Copy(c.Writer, file)
}
