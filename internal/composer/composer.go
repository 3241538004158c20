// internal/composer/composer.go
package composer

import (
	"context"
	"strings"

	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
)

// ImageUploader 图片上传协作方：输入原始文件，返回编码后的数据与元信息
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, filename string) (*models.UploadResult, error)
}

// DocumentCreator 文档创建协作方：一次调用持久化整份文档
type DocumentCreator interface {
	CreateDocument(ctx context.Context, payload models.DataDocumentCreate) (*models.DataDocument, error)
}

// Metadata 草稿的文档级元数据
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Draft 编排中的草稿文档
// Items 在编排期间始终至少保留一条；Sequence 恒为稠密的 1..N
type Draft struct {
	Metadata         Metadata             `json:"metadata"`
	Items            []models.ContentItem `json:"items"`
	CurrentStepIndex int                  `json:"current_step_index"`
}

// ItemUpdate 对当前条目的部分更新，nil 字段不改动
type ItemUpdate struct {
	Text          *string `json:"text,omitempty"`
	Image         *string `json:"image,omitempty"`
	ImageFilename *string `json:"image_filename,omitempty"`
	ImageMimetype *string `json:"image_mimetype,omitempty"`
}

// Composer 多步文档编排工作流
// 所有操作都在调用方的单逻辑线程上执行，除 AttachImage 和 Commit 外均为
// 同步的内存变更；草稿只存在于提交成功之前，不做任何部分持久化
type Composer struct {
	uploader ImageUploader
	creator  DocumentCreator
	draft    *Draft
}

// NewComposer 创建编排器，协作方由外部注入
func NewComposer(uploader ImageUploader, creator DocumentCreator) *Composer {
	return &Composer{
		uploader: uploader,
		creator:  creator,
	}
}

// Start 初始化一份新草稿：一条空白条目、步骤索引0、空元数据
// 幂等入口；会丢弃已有的未保存草稿（是否需要用户确认由前端负责）
func (c *Composer) Start() {
	c.draft = &Draft{
		Metadata: Metadata{Tags: []string{}},
		Items: []models.ContentItem{
			{Sequence: 1, Text: ""},
		},
		CurrentStepIndex: 0,
	}
}

// Active 判断是否存在进行中的草稿
func (c *Composer) Active() bool {
	return c.draft != nil
}

// Draft 返回当前草稿的快照，无草稿时返回 nil
func (c *Composer) Draft() *Draft {
	if c.draft == nil {
		return nil
	}
	snapshot := *c.draft
	snapshot.Items = make([]models.ContentItem, len(c.draft.Items))
	copy(snapshot.Items, c.draft.Items)
	snapshot.Metadata.Tags = append([]string{}, c.draft.Metadata.Tags...)
	return &snapshot
}

// HasContent 草稿是否包含用户输入（非空文本、图片或已填写的名称）
// 前端在调用 Cancel 或重新 Start 前据此决定是否需要确认丢弃
func (c *Composer) HasContent() bool {
	if c.draft == nil {
		return false
	}
	if strings.TrimSpace(c.draft.Metadata.Name) != "" {
		return true
	}
	for _, item := range c.draft.Items {
		if strings.TrimSpace(item.Text) != "" || item.HasImage() {
			return true
		}
	}
	return false
}

// AddItem 追加一条空白条目并把焦点移到新条目
func (c *Composer) AddItem() error {
	if c.draft == nil {
		return apperrors.NewValidationError("没有进行中的草稿", nil)
	}

	c.draft.Items = append(c.draft.Items, models.ContentItem{
		Sequence: len(c.draft.Items) + 1,
		Text:     "",
	})
	c.draft.CurrentStepIndex = len(c.draft.Items) - 1
	return nil
}

// GoToStep 切换当前步骤；越界的导航静默忽略，不视为错误
func (c *Composer) GoToStep(index int) {
	if c.draft == nil {
		return
	}
	if index < 0 || index >= len(c.draft.Items) {
		return
	}
	c.draft.CurrentStepIndex = index
}

// UpdateCurrentItem 把给定字段合并到当前步骤的条目上
// 只影响当前条目，不改动序号和其他条目
func (c *Composer) UpdateCurrentItem(update ItemUpdate) error {
	if c.draft == nil {
		return apperrors.NewValidationError("没有进行中的草稿", nil)
	}

	item := &c.draft.Items[c.draft.CurrentStepIndex]
	if update.Text != nil {
		item.Text = *update.Text
	}
	if update.Image != nil {
		item.Image = *update.Image
	}
	if update.ImageFilename != nil {
		item.ImageFilename = *update.ImageFilename
	}
	if update.ImageMimetype != nil {
		item.ImageMimetype = *update.ImageMimetype
	}
	return nil
}

// AttachImage 调用上传协作方并把返回的编码数据写入条目
// 目标条目索引在发起调用时捕获：上传期间用户切换步骤，结果仍然落在
// 发起时的那一步上。同一步骤上的并发上传不做协调，后完成者覆盖先完成者
func (c *Composer) AttachImage(ctx context.Context, data []byte, filename string) error {
	if c.draft == nil {
		return apperrors.NewValidationError("没有进行中的草稿", nil)
	}

	targetIndex := c.draft.CurrentStepIndex

	result, err := c.uploader.UploadImage(ctx, data, filename)
	if err != nil {
		// 失败时当前条目的图片字段保持原样
		return apperrors.NewUploadFailedError("图片上传失败", err)
	}

	// 条目可能在上传期间被删除，越界的结果直接丢弃
	if c.draft == nil || targetIndex >= len(c.draft.Items) {
		return nil
	}

	item := &c.draft.Items[targetIndex]
	item.Image = result.ImageData
	item.ImageFilename = result.Filename
	item.ImageMimetype = result.Mimetype
	return nil
}

// RemoveImage 清除当前条目的图片字段；没有图片时是无害的空操作
func (c *Composer) RemoveImage() {
	if c.draft == nil {
		return
	}
	item := &c.draft.Items[c.draft.CurrentStepIndex]
	item.Image = ""
	item.ImageFilename = ""
	item.ImageMimetype = ""
}

// DeleteItem 删除指定条目并重排序号
// 编排期间必须至少保留一条，低于下限时返回 minimum_items 错误
func (c *Composer) DeleteItem(index int) error {
	if c.draft == nil {
		return apperrors.NewValidationError("没有进行中的草稿", nil)
	}
	if len(c.draft.Items) <= 1 {
		return apperrors.NewMinimumItemsError("文档至少需要保留一条内容")
	}
	if index < 0 || index >= len(c.draft.Items) {
		return apperrors.NewValidationError("条目索引越界", nil)
	}

	c.draft.Items = append(c.draft.Items[:index], c.draft.Items[index+1:]...)
	c.resequence()

	if c.draft.CurrentStepIndex > len(c.draft.Items)-1 {
		c.draft.CurrentStepIndex = len(c.draft.Items) - 1
	}
	return nil
}

// SetMetadata 整体替换文档元数据（不做合并）
// 标签按集合处理：去重并保留首次出现的顺序
func (c *Composer) SetMetadata(name, description string, tags []string) error {
	if c.draft == nil {
		return apperrors.NewValidationError("没有进行中的草稿", nil)
	}
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}

	seen := make(map[string]bool, len(tags))
	uniqueTags := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		uniqueTags = append(uniqueTags, tag)
	}

	c.draft.Metadata = Metadata{
		Name:        name,
		Description: description,
		Tags:        uniqueTags,
	}
	return nil
}

// Commit 校验并提交整份草稿
// 校验按顺序短路：先查文档名，再按序号顺序查每条文本
// 协作方失败时草稿原样保留，调用方可以直接重试；成功后草稿被清除
func (c *Composer) Commit(ctx context.Context) (*models.DataDocument, error) {
	if c.draft == nil {
		return nil, apperrors.NewValidationError("没有进行中的草稿", nil)
	}

	if strings.TrimSpace(c.draft.Metadata.Name) == "" {
		return nil, apperrors.NewMetadataMissingError("文档名未设置")
	}

	for _, item := range c.draft.Items {
		if strings.TrimSpace(item.Text) == "" {
			return nil, apperrors.NewEmptyItemTextError(item.Sequence)
		}
	}

	hasImages := false
	dataList := make([]models.ContentItem, len(c.draft.Items))
	copy(dataList, c.draft.Items)
	for _, item := range dataList {
		if item.HasImage() {
			hasImages = true
			break
		}
	}

	payload := models.DataDocumentCreate{
		Name:        c.draft.Metadata.Name,
		Description: c.draft.Metadata.Description,
		Tags:        append([]string{}, c.draft.Metadata.Tags...),
		DataList:    dataList,
		Metadata: models.DocumentMeta{
			TotalItems: len(dataList),
			HasImages:  hasImages,
		},
	}

	doc, err := c.creator.CreateDocument(ctx, payload)
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("文档保存失败", err)
	}

	c.draft = nil
	return doc, nil
}

// Cancel 无条件丢弃草稿（确认丢弃是前端的职责）
func (c *Composer) Cancel() {
	c.draft = nil
}

// resequence 每次条目列表变化后整体重排，保证序号恒为 1..N
func (c *Composer) resequence() {
	for i := range c.draft.Items {
		c.draft.Items[i].Sequence = i + 1
	}
}
