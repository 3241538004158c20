// internal/models/document.go
package models

import "time"

// ContentItem 文档中的一条有序内容（文本 + 可选图片）
// Sequence 为文档内从1开始的稠密序号，定义展示顺序
type ContentItem struct {
	Sequence      int    `json:"sequence"`
	Text          string `json:"text"`
	Image         string `json:"image,omitempty"` // base64编码的图片数据
	ImageFilename string `json:"image_filename,omitempty"`
	ImageMimetype string `json:"image_mimetype,omitempty"`
}

// HasImage 判断该条目是否附带图片
func (c *ContentItem) HasImage() bool {
	return c.Image != ""
}

// DocumentMeta 文档级别的聚合元数据
type DocumentMeta struct {
	TotalItems int  `json:"total_items"`
	HasImages  bool `json:"has_images"`
}

// DataDocument 已持久化的数据文档
type DataDocument struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	DataList    []ContentItem `json:"data_list"`
	Tags        []string      `json:"tags"`
	Metadata    DocumentMeta  `json:"metadata"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Version     int           `json:"version"`
}

// DataDocumentCreate 创建文档的请求载荷
type DataDocumentCreate struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	DataList    []ContentItem `json:"data_list"`
	Tags        []string      `json:"tags"`
	Metadata    DocumentMeta  `json:"metadata"`
}

// UploadResult 图片上传服务的返回结果
type UploadResult struct {
	ImageData string `json:"image_data"` // base64编码
	Filename  string `json:"filename"`
	Mimetype  string `json:"mimetype"`
}

// DocumentStatistics 数据管理页面使用的统计信息
type DocumentStatistics struct {
	TotalDocuments  int            `json:"total_documents"`
	TotalItems      int            `json:"total_items"`
	ItemsWithImages int            `json:"items_with_images"`
	TagCounts       map[string]int `json:"tag_counts"`
	LastUpdated     time.Time      `json:"last_updated"`
}
