// internal/services/data_service.go
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sableworks/agentconsole/internal/config"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
	"github.com/sableworks/agentconsole/internal/storage"
)

// 允许上传的图片类型
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// DataService 数据文档服务
// 同时充当文档编排的两个协作方：图片上传和文档创建
type DataService struct {
	repo *storage.DocumentRepo
}

// NewDataService 创建数据文档服务
func NewDataService(repo *storage.DocumentRepo) *DataService {
	return &DataService{repo: repo}
}

// ListDocuments 返回全部文档，按更新时间倒序
func (s *DataService) ListDocuments() []*models.DataDocument {
	return s.repo.List()
}

// GetDocument 按ID读取文档
func (s *DataService) GetDocument(id string) (*models.DataDocument, error) {
	return s.repo.Get(id)
}

// CreateDocument 校验并持久化一份新文档
// 实现编排器的 DocumentCreator 协作方，提交是单次整体写入
func (s *DataService) CreateDocument(_ context.Context, payload models.DataDocumentCreate) (*models.DataDocument, error) {
	if err := validateDocumentPayload(payload); err != nil {
		return nil, err
	}
	return s.repo.Create(payload)
}

// UpdateDocument 整体替换文档内容，版本号加一
func (s *DataService) UpdateDocument(id string, payload models.DataDocumentCreate) (*models.DataDocument, error) {
	if err := validateDocumentPayload(payload); err != nil {
		return nil, err
	}
	return s.repo.Update(id, payload)
}

// DeleteDocument 删除文档
func (s *DataService) DeleteDocument(id string) error {
	return s.repo.Delete(id)
}

// SearchDocuments 在名称、描述和标签上检索
func (s *DataService) SearchDocuments(query string, limit int) []*models.DataDocument {
	return s.repo.Search(query, limit)
}

// Statistics 数据管理页面的统计信息
func (s *DataService) Statistics() *models.DocumentStatistics {
	return s.repo.Statistics()
}

// UploadImage 校验图片并编码为base64
// 实现编排器的 ImageUploader 协作方；不落盘，编码后的数据随文档一起持久化
func (s *DataService) UploadImage(_ context.Context, data []byte, filename string) (*models.UploadResult, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("图片内容为空", nil)
	}

	maxBytes := config.GetCurrentConfig().UploadMaxBytes
	if int64(len(data)) > maxBytes {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("图片超过大小限制 %d 字节", maxBytes), nil)
	}

	// 以内容嗅探为准，不信任扩展名
	mimetype := http.DetectContentType(data)
	if !allowedImageTypes[mimetype] {
		return nil, apperrors.NewValidationError("不支持的图片类型: "+mimetype, nil)
	}

	return &models.UploadResult{
		ImageData: base64.StdEncoding.EncodeToString(data),
		Filename:  filepath.Base(filename),
		Mimetype:  mimetype,
	}, nil
}

// documentRow 导出时的扁平结构：每条内容一行
type documentRow struct {
	DocumentID   string `json:"document_id" parquet:"document_id"`
	DocumentName string `json:"document_name" parquet:"document_name"`
	Description  string `json:"description" parquet:"description"`
	Tags         string `json:"tags" parquet:"tags"` // 逗号分隔
	Sequence     int    `json:"sequence" parquet:"sequence"`
	Text         string `json:"text" parquet:"text"`
	Image        string `json:"image" parquet:"image"` // base64
	ImageName    string `json:"image_filename" parquet:"image_filename"`
	ImageType    string `json:"image_mimetype" parquet:"image_mimetype"`
	Version      int    `json:"version" parquet:"version"`
}

// ExportParquet 把指定文档（为空时全部）导出为parquet数据集文件
// 返回生成文件的路径
func (s *DataService) ExportParquet(ids []string) (string, error) {
	var docs []*models.DataDocument
	if len(ids) == 0 {
		docs = s.repo.List()
	} else {
		for _, id := range ids {
			doc, err := s.repo.Get(id)
			if err != nil {
				return "", err
			}
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return "", apperrors.NewValidationError("没有可导出的文档", nil)
	}

	exportDir := filepath.Join(config.GetCurrentConfig().DataDir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", fmt.Errorf("创建导出目录失败: %w", err)
	}

	path := filepath.Join(exportDir,
		fmt.Sprintf("documents_%s.parquet", time.Now().UTC().Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建导出文件失败: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[documentRow](file)
	for _, doc := range docs {
		rows := make([]documentRow, 0, len(doc.DataList))
		for _, item := range doc.DataList {
			rows = append(rows, documentRow{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				Description:  doc.Description,
				Tags:         strings.Join(doc.Tags, ","),
				Sequence:     item.Sequence,
				Text:         item.Text,
				Image:        item.Image,
				ImageName:    item.ImageFilename,
				ImageType:    item.ImageMimetype,
				Version:      doc.Version,
			})
		}
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return "", fmt.Errorf("写入导出行失败: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("完成导出文件失败: %w", err)
	}

	return path, nil
}

// ReadExport 打开一个已生成的导出文件供下载
func (s *DataService) ReadExport(path string) (io.ReadCloser, error) {
	exportDir := filepath.Join(config.GetCurrentConfig().DataDir, "exports")
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, exportDir) {
		return nil, apperrors.NewValidationError("非法的导出文件路径", nil)
	}
	file, err := os.Open(cleaned)
	if err != nil {
		return nil, apperrors.NewNotFoundError("导出文件不存在", err)
	}
	return file, nil
}

func validateDocumentPayload(payload models.DataDocumentCreate) error {
	if strings.TrimSpace(payload.Name) == "" {
		return apperrors.NewValidationError("文档名不能为空", nil)
	}
	if len(payload.DataList) == 0 {
		return apperrors.NewValidationError("文档至少需要一条内容", nil)
	}
	for i, item := range payload.DataList {
		if item.Sequence != i+1 {
			return apperrors.NewValidationError(
				fmt.Sprintf("内容序号必须从1开始连续递增，第 %d 项的序号是 %d", i+1, item.Sequence), nil)
		}
	}
	return nil
}
