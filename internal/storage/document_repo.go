// internal/storage/document_repo.go
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sableworks/agentconsole/internal/cache"
	"github.com/sableworks/agentconsole/internal/compression"
	"github.com/sableworks/agentconsole/internal/db"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
)

// DocumentRepo 数据文档仓库
// data_list 以zstd压缩的JSON BLOB入库；列表读取走全量替换的内存缓存
type DocumentRepo struct {
	db         db.Db
	compressor compression.Compressor
	docs       *cache.Cache[string, *models.DataDocument]
}

// NewDocumentRepo 创建文档仓库
func NewDocumentRepo(database db.Db) *DocumentRepo {
	return &DocumentRepo{
		db:         database,
		compressor: compression.ZstdCompressor{},
		docs:       cache.NewCache[string, *models.DataDocument](),
	}
}

// Init 把已持久化的文档整体加载进缓存
func (r *DocumentRepo) Init() error {
	docs, err := r.loadAll()
	if err != nil {
		return err
	}
	r.docs.SetTo(docs)
	return nil
}

func (r *DocumentRepo) loadAll() (map[string]*models.DataDocument, error) {
	rows, err := r.db.Query(`SELECT id, name, description, tags, data_list, total_items, has_images, version, created_at, updated_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]*models.DataDocument)
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs[doc.ID] = doc
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) scanDocument(rows *sql.Rows) (*models.DataDocument, error) {
	var doc models.DataDocument
	var description sql.NullString
	var tagsJSON string
	var compressed []byte
	var hasImages int

	if err := rows.Scan(&doc.ID, &doc.Name, &description, &tagsJSON, &compressed,
		&doc.Metadata.TotalItems, &hasImages, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("读取文档行失败: %w", err)
	}

	doc.Description = description.String
	doc.Metadata.HasImages = hasImages != 0

	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("解析标签失败: %w", err)
	}

	dataJSON, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("解压文档内容失败: %w", err)
	}
	if err := json.Unmarshal(dataJSON, &doc.DataList); err != nil {
		return nil, fmt.Errorf("解析文档内容失败: %w", err)
	}

	return &doc, nil
}

// List 返回全部文档，按更新时间倒序
func (r *DocumentRepo) List() []*models.DataDocument {
	docs := make([]*models.DataDocument, 0, r.docs.Len())
	r.docs.Range(func(_ string, doc *models.DataDocument) bool {
		docs = append(docs, doc)
		return true
	})
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	return docs
}

// Get 按ID读取文档
func (r *DocumentRepo) Get(id string) (*models.DataDocument, error) {
	doc, ok := r.docs.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("文档不存在: "+id, nil)
	}
	return doc, nil
}

// Create 持久化一份新文档，单次写入，版本从1开始
func (r *DocumentRepo) Create(payload models.DataDocumentCreate) (*models.DataDocument, error) {
	now := time.Now().UTC()
	doc := &models.DataDocument{
		ID:          uuid.NewString(),
		Name:        payload.Name,
		Description: payload.Description,
		DataList:    payload.DataList,
		Tags:        payload.Tags,
		Metadata:    payload.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	if err := r.insert(doc); err != nil {
		return nil, err
	}

	r.docs.Set(doc.ID, doc)
	return doc, nil
}

func (r *DocumentRepo) insert(doc *models.DataDocument) error {
	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("序列化标签失败: %w", err)
	}
	dataJSON, err := json.Marshal(doc.DataList)
	if err != nil {
		return fmt.Errorf("序列化文档内容失败: %w", err)
	}
	compressed, err := r.compressor.Compress(dataJSON)
	if err != nil {
		return fmt.Errorf("压缩文档内容失败: %w", err)
	}

	hasImages := 0
	if doc.Metadata.HasImages {
		hasImages = 1
	}

	_, err = r.db.Exec(`INSERT INTO documents (id, name, description, tags, data_list, total_items, has_images, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Description, string(tagsJSON), compressed,
		doc.Metadata.TotalItems, hasImages, doc.Version, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("写入文档失败: %w", err)
	}
	return nil
}

// Update 整体替换文档内容，版本号加一
func (r *DocumentRepo) Update(id string, payload models.DataDocumentCreate) (*models.DataDocument, error) {
	existing, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	updated := &models.DataDocument{
		ID:          existing.ID,
		Name:        payload.Name,
		Description: payload.Description,
		DataList:    payload.DataList,
		Tags:        payload.Tags,
		Metadata:    payload.Metadata,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
		Version:     existing.Version + 1,
	}
	if updated.Tags == nil {
		updated.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(updated.Tags)
	if err != nil {
		return nil, fmt.Errorf("序列化标签失败: %w", err)
	}
	dataJSON, err := json.Marshal(updated.DataList)
	if err != nil {
		return nil, fmt.Errorf("序列化文档内容失败: %w", err)
	}
	compressed, err := r.compressor.Compress(dataJSON)
	if err != nil {
		return nil, fmt.Errorf("压缩文档内容失败: %w", err)
	}

	hasImages := 0
	if updated.Metadata.HasImages {
		hasImages = 1
	}

	_, err = r.db.Exec(`UPDATE documents SET name = ?, description = ?, tags = ?, data_list = ?, total_items = ?, has_images = ?, version = ?, updated_at = ? WHERE id = ?`,
		updated.Name, updated.Description, string(tagsJSON), compressed,
		updated.Metadata.TotalItems, hasImages, updated.Version, updated.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("更新文档失败: %w", err)
	}

	r.docs.Set(id, updated)
	return updated, nil
}

// Delete 删除文档
func (r *DocumentRepo) Delete(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	if _, err := r.db.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}
	r.docs.Delete(id)
	return nil
}

// Search 在名称、描述和标签上做大小写无关的子串匹配
func (r *DocumentRepo) Search(query string, limit int) []*models.DataDocument {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*models.DataDocument{}
	}

	var results []*models.DataDocument
	for _, doc := range r.List() {
		if matchesQuery(doc, q) {
			results = append(results, doc)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	if results == nil {
		results = []*models.DataDocument{}
	}
	return results
}

func matchesQuery(doc *models.DataDocument, q string) bool {
	if strings.Contains(strings.ToLower(doc.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Description), q) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Statistics 聚合数据管理页面需要的统计信息
func (r *DocumentRepo) Statistics() *models.DocumentStatistics {
	stats := &models.DocumentStatistics{
		TagCounts: make(map[string]int),
	}

	for _, doc := range r.List() {
		stats.TotalDocuments++
		stats.TotalItems += len(doc.DataList)
		for _, item := range doc.DataList {
			if item.HasImage() {
				stats.ItemsWithImages++
			}
		}
		for _, tag := range doc.Tags {
			stats.TagCounts[tag]++
		}
		if doc.UpdatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = doc.UpdatedAt
		}
	}
	return stats
}
