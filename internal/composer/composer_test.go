// internal/composer/composer_test.go
package composer

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
)

// stubUploader 模拟图片上传协作方
type stubUploader struct {
	result    *models.UploadResult
	err       error
	callCount int
}

func (s *stubUploader) UploadImage(ctx context.Context, data []byte, filename string) (*models.UploadResult, error) {
	s.callCount++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubCreator 模拟文档创建协作方
type stubCreator struct {
	err       error
	callCount int
	payload   models.DataDocumentCreate
}

func (s *stubCreator) CreateDocument(ctx context.Context, payload models.DataDocumentCreate) (*models.DataDocument, error) {
	s.callCount++
	s.payload = payload
	if s.err != nil {
		return nil, s.err
	}
	return &models.DataDocument{
		ID:          "doc_test",
		Name:        payload.Name,
		Description: payload.Description,
		DataList:    payload.DataList,
		Tags:        payload.Tags,
		Metadata:    payload.Metadata,
		Version:     1,
	}, nil
}

func newTestComposer() (*Composer, *stubUploader, *stubCreator) {
	uploader := &stubUploader{result: &models.UploadResult{
		ImageData: "aW1hZ2U=",
		Filename:  "photo.png",
		Mimetype:  "image/png",
	}}
	creator := &stubCreator{}
	c := NewComposer(uploader, creator)
	return c, uploader, creator
}

// 序号不变式：任意 AddItem/DeleteItem 序列之后序号恒为 1..N
func TestSequenceInvariant(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()

	for i := 0; i < 4; i++ {
		if err := c.AddItem(); err != nil {
			t.Fatalf("AddItem失败: %v", err)
		}
	}
	if err := c.DeleteItem(2); err != nil {
		t.Fatalf("DeleteItem失败: %v", err)
	}
	if err := c.DeleteItem(0); err != nil {
		t.Fatalf("DeleteItem失败: %v", err)
	}
	c.AddItem()

	draft := c.Draft()
	if len(draft.Items) != 4 {
		t.Fatalf("期望4条，实际 %d 条", len(draft.Items))
	}
	for i, item := range draft.Items {
		if item.Sequence != i+1 {
			t.Errorf("位置 %d 的序号应为 %d，实际 %d", i, i+1, item.Sequence)
		}
	}
}

func TestStartInitializesBlankDraft(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()

	draft := c.Draft()
	if len(draft.Items) != 1 {
		t.Fatalf("新草稿应有1条空白条目，实际 %d 条", len(draft.Items))
	}
	if draft.Items[0].Sequence != 1 || draft.Items[0].Text != "" {
		t.Errorf("空白条目不符合预期: %+v", draft.Items[0])
	}
	if draft.CurrentStepIndex != 0 {
		t.Errorf("初始步骤索引应为0，实际 %d", draft.CurrentStepIndex)
	}
	if c.HasContent() {
		t.Error("新草稿不应被视为有内容")
	}
}

// 单条草稿上的删除必须失败且草稿不变
func TestDeleteItemBelowFloor(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()

	err := c.DeleteItem(0)
	if !apperrors.IsMinimumItemsError(err) {
		t.Fatalf("期望 minimum_items 错误，实际 %v", err)
	}

	draft := c.Draft()
	if len(draft.Items) != 1 || draft.Items[0].Sequence != 1 {
		t.Errorf("失败的删除不应改动草稿: %+v", draft.Items)
	}
}

// 文档名为空时提交必须失败且不触发持久化协作方
func TestCommitWithoutMetadata(t *testing.T) {
	c, _, creator := newTestComposer()
	c.Start()
	text := "hello"
	c.UpdateCurrentItem(ItemUpdate{Text: &text})

	_, err := c.Commit(context.Background())
	if !apperrors.IsMetadataMissingError(err) {
		t.Fatalf("期望 metadata_missing 错误，实际 %v", err)
	}
	if creator.callCount != 0 {
		t.Errorf("校验失败时不应调用持久化协作方，调用了 %d 次", creator.callCount)
	}
}

// 第3条文本为空时提交必须报出序号3且不触发协作方
func TestCommitEmptyTextIdentifiesSequence(t *testing.T) {
	c, _, creator := newTestComposer()
	c.Start()
	c.SetMetadata("Doc", "", nil)

	text := "filled"
	c.UpdateCurrentItem(ItemUpdate{Text: &text})
	c.AddItem()
	c.UpdateCurrentItem(ItemUpdate{Text: &text})
	c.AddItem() // 第3条保持空文本

	_, err := c.Commit(context.Background())
	if !apperrors.IsEmptyItemTextError(err) {
		t.Fatalf("期望 empty_item_text 错误，实际 %v", err)
	}
	appErr, _ := apperrors.AsAppError(err)
	if appErr.Sequence != 3 {
		t.Errorf("错误应指向序号3，实际 %d", appErr.Sequence)
	}
	if creator.callCount != 0 {
		t.Errorf("校验失败时不应调用持久化协作方")
	}
}

// 完整往返：start → setMetadata → updateCurrentItem → commit
func TestCommitRoundTrip(t *testing.T) {
	c, _, creator := newTestComposer()
	c.Start()
	if err := c.SetMetadata("Doc A", "", []string{}); err != nil {
		t.Fatalf("SetMetadata失败: %v", err)
	}
	text := "Hello"
	if err := c.UpdateCurrentItem(ItemUpdate{Text: &text}); err != nil {
		t.Fatalf("UpdateCurrentItem失败: %v", err)
	}

	doc, err := c.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit失败: %v", err)
	}

	if len(doc.DataList) != 1 {
		t.Fatalf("data_list 应有1条，实际 %d 条", len(doc.DataList))
	}
	item := doc.DataList[0]
	if item.Sequence != 1 || item.Text != "Hello" || item.HasImage() {
		t.Errorf("条目不符合预期: %+v", item)
	}
	if doc.Metadata.TotalItems != 1 {
		t.Errorf("total_items 应为1，实际 %d", doc.Metadata.TotalItems)
	}
	if doc.Metadata.HasImages {
		t.Error("has_images 应为 false")
	}
	if creator.callCount != 1 {
		t.Errorf("持久化协作方应恰好被调用一次，实际 %d 次", creator.callCount)
	}
	if c.Active() {
		t.Error("提交成功后草稿应被清除")
	}
}

// 场景：start；两次 addItem（3条，当前步骤2）；deleteItem(1)
func TestDeleteItemClampsCurrentStep(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()
	c.AddItem()
	c.AddItem()

	draft := c.Draft()
	if draft.CurrentStepIndex != 2 {
		t.Fatalf("AddItem后步骤索引应为2，实际 %d", draft.CurrentStepIndex)
	}

	if err := c.DeleteItem(1); err != nil {
		t.Fatalf("DeleteItem失败: %v", err)
	}

	draft = c.Draft()
	if len(draft.Items) != 2 {
		t.Fatalf("应剩2条，实际 %d 条", len(draft.Items))
	}
	for i, item := range draft.Items {
		if item.Sequence != i+1 {
			t.Errorf("序号应为 [1,2]，位置 %d 实际 %d", i, item.Sequence)
		}
	}
	if draft.CurrentStepIndex != 1 {
		t.Errorf("步骤索引应被钳制到1，实际 %d", draft.CurrentStepIndex)
	}
}

// 上传失败时当前条目的图片字段保持原样并返回 upload_failed
func TestAttachImageFailureLeavesItemUnchanged(t *testing.T) {
	c, uploader, _ := newTestComposer()
	c.Start()

	// 先成功附加一张图
	if err := c.AttachImage(context.Background(), []byte{1, 2, 3}, "a.png"); err != nil {
		t.Fatalf("AttachImage失败: %v", err)
	}
	before := c.Draft().Items[0]

	// 第二次上传失败
	uploader.err = errors.New("network down")
	err := c.AttachImage(context.Background(), []byte{4, 5, 6}, "b.png")
	if !apperrors.IsUploadFailedError(err) {
		t.Fatalf("期望 upload_failed 错误，实际 %v", err)
	}

	after := c.Draft().Items[0]
	if after.Image != before.Image || after.ImageFilename != before.ImageFilename || after.ImageMimetype != before.ImageMimetype {
		t.Errorf("上传失败后图片字段应保持不变: before=%+v after=%+v", before, after)
	}
}

// 越界导航是无操作
func TestGoToStepOutOfRange(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()
	c.AddItem()
	c.GoToStep(0)

	c.GoToStep(-1)
	if c.Draft().CurrentStepIndex != 0 {
		t.Errorf("GoToStep(-1) 不应改变步骤索引")
	}

	c.GoToStep(len(c.Draft().Items))
	if c.Draft().CurrentStepIndex != 0 {
		t.Errorf("GoToStep(len) 不应改变步骤索引")
	}
}

// 持久化失败时草稿原样保留，可直接重试
func TestCommitFailurePreservesDraft(t *testing.T) {
	c, _, creator := newTestComposer()
	c.Start()
	c.SetMetadata("Doc B", "desc", []string{"tag1"})
	text := "content"
	c.UpdateCurrentItem(ItemUpdate{Text: &text})

	creator.err = errors.New("backend unavailable")
	_, err := c.Commit(context.Background())
	if !apperrors.IsPersistenceFailedError(err) {
		t.Fatalf("期望 persistence_failed 错误，实际 %v", err)
	}
	if !c.Active() {
		t.Fatal("持久化失败后草稿应保留")
	}

	// 重试成功
	creator.err = nil
	doc, err := c.Commit(context.Background())
	if err != nil {
		t.Fatalf("重试提交失败: %v", err)
	}
	if doc.Name != "Doc B" {
		t.Errorf("重试提交的文档名应为 Doc B，实际 %s", doc.Name)
	}
	if creator.callCount != 2 {
		t.Errorf("协作方应被调用2次，实际 %d 次", creator.callCount)
	}
}

// 上传结果落在发起调用时的步骤上，而不是完成时的当前步骤
func TestAttachImageBindsIssuingStep(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()
	c.AddItem() // 当前步骤 = 1

	// 模拟上传期间用户切回第0步：协作方在返回前触发导航
	nav := &navigatingUploader{composer: c, result: &models.UploadResult{
		ImageData: "ZGF0YQ==", Filename: "x.png", Mimetype: "image/png",
	}}
	c.uploader = nav

	if err := c.AttachImage(context.Background(), []byte{9}, "x.png"); err != nil {
		t.Fatalf("AttachImage失败: %v", err)
	}

	draft := c.Draft()
	if draft.Items[0].HasImage() {
		t.Error("图片不应落在导航后的当前步骤上")
	}
	if !draft.Items[1].HasImage() {
		t.Error("图片应落在发起调用时的步骤上")
	}
}

// navigatingUploader 在上传完成前切换步骤，模拟挂起调用期间的导航
type navigatingUploader struct {
	composer *Composer
	result   *models.UploadResult
}

func (n *navigatingUploader) UploadImage(ctx context.Context, data []byte, filename string) (*models.UploadResult, error) {
	n.composer.GoToStep(0)
	return n.result, nil
}

func TestSetMetadataValidation(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()

	err := c.SetMetadata("   ", "desc", nil)
	if !apperrors.IsValidationError(err) {
		t.Fatalf("空白名称应返回验证错误，实际 %v", err)
	}

	// 标签按集合去重
	if err := c.SetMetadata("Doc", "", []string{"a", "b", "a", "", "b"}); err != nil {
		t.Fatalf("SetMetadata失败: %v", err)
	}
	tags := c.Draft().Metadata.Tags
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("标签应去重为 [a b]，实际 %v", tags)
	}

	// 整体替换而非合并
	if err := c.SetMetadata("Doc2", "", []string{"c"}); err != nil {
		t.Fatalf("SetMetadata失败: %v", err)
	}
	meta := c.Draft().Metadata
	if meta.Name != "Doc2" || len(meta.Tags) != 1 || meta.Tags[0] != "c" {
		t.Errorf("元数据应被整体替换: %+v", meta)
	}
}

func TestRemoveImage(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()

	// 没有图片时是无操作
	c.RemoveImage()

	if err := c.AttachImage(context.Background(), []byte{1}, "a.png"); err != nil {
		t.Fatalf("AttachImage失败: %v", err)
	}
	if !c.Draft().Items[0].HasImage() {
		t.Fatal("附加图片后条目应有图片")
	}

	c.RemoveImage()
	item := c.Draft().Items[0]
	if item.HasImage() || item.ImageFilename != "" || item.ImageMimetype != "" {
		t.Errorf("RemoveImage后图片字段应全部清空: %+v", item)
	}
}

func TestCancelDiscardsDraft(t *testing.T) {
	c, _, _ := newTestComposer()
	c.Start()
	text := "something"
	c.UpdateCurrentItem(ItemUpdate{Text: &text})
	if !c.HasContent() {
		t.Fatal("填入文本后草稿应被视为有内容")
	}

	c.Cancel()
	if c.Active() {
		t.Error("Cancel后不应再有草稿")
	}
	if c.Draft() != nil {
		t.Error("Cancel后Draft()应返回nil")
	}
}

func TestCommitWithImagesSetsHasImages(t *testing.T) {
	c, _, creator := newTestComposer()
	c.Start()
	c.SetMetadata("Pic Doc", "", nil)
	text := "caption"
	c.UpdateCurrentItem(ItemUpdate{Text: &text})
	if err := c.AttachImage(context.Background(), []byte{1}, "p.png"); err != nil {
		t.Fatalf("AttachImage失败: %v", err)
	}

	doc, err := c.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit失败: %v", err)
	}
	if !doc.Metadata.HasImages {
		t.Error("has_images 应为 true")
	}
	if creator.payload.Metadata.TotalItems != 1 {
		t.Errorf("提交载荷的 total_items 应为1，实际 %d", creator.payload.Metadata.TotalItems)
	}
}
