// internal/services/draft_service_test.go
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/sableworks/agentconsole/internal/composer"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
)

type stubUploader struct {
	err error
}

func (s *stubUploader) UploadImage(_ context.Context, data []byte, filename string) (*models.UploadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.UploadResult{
		ImageData: base64.StdEncoding.EncodeToString(data),
		Filename:  filename,
		Mimetype:  "image/png",
	}, nil
}

type stubCreator struct {
	err     error
	created []models.DataDocumentCreate
}

func (s *stubCreator) CreateDocument(_ context.Context, payload models.DataDocumentCreate) (*models.DataDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, payload)
	return &models.DataDocument{ID: "doc-1", Name: payload.Name, Version: 1}, nil
}

func newTestDraftService(t *testing.T) (*DraftService, *stubCreator) {
	t.Helper()
	creator := &stubCreator{}
	svc := NewDraftService(&stubUploader{}, creator, time.Hour)
	t.Cleanup(svc.Close)
	return svc, creator
}

func strPtr(s string) *string { return &s }

func TestDraftWorkflowCommit(t *testing.T) {
	svc, creator := newTestDraftService(t)

	id, draft := svc.StartSession()
	if id == "" {
		t.Fatal("会话ID不应为空")
	}
	if len(draft.Items) != 1 || draft.CurrentStepIndex != 0 {
		t.Fatalf("新草稿应有一条空白条目且步骤为0: %+v", draft)
	}

	if _, err := svc.UpdateCurrentItem(id, composer.ItemUpdate{Text: strPtr("第一步")}); err != nil {
		t.Fatalf("UpdateCurrentItem失败: %v", err)
	}

	draft, err := svc.AddItem(id)
	if err != nil {
		t.Fatalf("AddItem失败: %v", err)
	}
	if len(draft.Items) != 2 || draft.CurrentStepIndex != 1 {
		t.Errorf("追加后应有两条且焦点在新条目: %+v", draft)
	}

	if _, err := svc.UpdateCurrentItem(id, composer.ItemUpdate{Text: strPtr("第二步")}); err != nil {
		t.Fatalf("UpdateCurrentItem失败: %v", err)
	}
	if _, err := svc.SetMetadata(id, "训练集", "描述", []string{"a", "a", "b"}); err != nil {
		t.Fatalf("SetMetadata失败: %v", err)
	}

	doc, err := svc.Commit(context.Background(), id)
	if err != nil {
		t.Fatalf("Commit失败: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Errorf("提交应返回协作方创建的文档: %+v", doc)
	}
	if len(creator.created) != 1 {
		t.Fatalf("协作方应被调用一次，实际 %d", len(creator.created))
	}
	payload := creator.created[0]
	if len(payload.Tags) != 2 {
		t.Errorf("标签应去重为2个: %v", payload.Tags)
	}
	if payload.Metadata.TotalItems != 2 || payload.Metadata.HasImages {
		t.Errorf("元数据不符: %+v", payload.Metadata)
	}

	// 提交成功后会话被移除
	if svc.ActiveSessions() != 0 {
		t.Errorf("提交后会话数应为0，实际 %d", svc.ActiveSessions())
	}
	if _, err := svc.GetDraft(id); !apperrors.IsNotFoundError(err) {
		t.Errorf("提交后GetDraft应返回未找到，实际 %v", err)
	}
}

func TestDraftCommitValidationKeepsSession(t *testing.T) {
	svc, _ := newTestDraftService(t)
	id, _ := svc.StartSession()

	svc.UpdateCurrentItem(id, composer.ItemUpdate{Text: strPtr("内容")})

	// 未设置文档名
	if _, err := svc.Commit(context.Background(), id); !apperrors.IsMetadataMissingError(err) {
		t.Errorf("缺少文档名应返回元数据缺失错误，实际 %v", err)
	}
	if svc.ActiveSessions() != 1 {
		t.Error("校验失败后会话应保留")
	}

	// 空文本条目带序号
	svc.SetMetadata(id, "有名字了", "", nil)
	svc.AddItem(id)
	_, err := svc.Commit(context.Background(), id)
	if !apperrors.IsEmptyItemTextError(err) {
		t.Fatalf("空文本应返回对应错误，实际 %v", err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Sequence != 2 {
		t.Errorf("错误应指向第2条，实际 %d", appErr.Sequence)
	}
}

func TestDraftCommitRetryAfterPersistenceFailure(t *testing.T) {
	svc, creator := newTestDraftService(t)
	id, _ := svc.StartSession()

	svc.UpdateCurrentItem(id, composer.ItemUpdate{Text: strPtr("内容")})
	svc.SetMetadata(id, "重试样本", "", nil)

	creator.err = errors.New("disk full")
	if _, err := svc.Commit(context.Background(), id); !apperrors.IsPersistenceFailedError(err) {
		t.Fatalf("持久化失败应返回对应错误，实际 %v", err)
	}
	if svc.ActiveSessions() != 1 {
		t.Fatal("持久化失败后会话应保留供重试")
	}

	// 草稿原样保留，直接重试成功
	creator.err = nil
	doc, err := svc.Commit(context.Background(), id)
	if err != nil {
		t.Fatalf("重试Commit失败: %v", err)
	}
	if doc == nil || svc.ActiveSessions() != 0 {
		t.Error("重试成功后会话应被移除")
	}
}

func TestDraftDeleteItemKeepsMinimum(t *testing.T) {
	svc, _ := newTestDraftService(t)
	id, _ := svc.StartSession()

	if _, err := svc.DeleteItem(id, 0); !apperrors.IsMinimumItemsError(err) {
		t.Errorf("删除最后一条应返回下限错误，实际 %v", err)
	}

	svc.AddItem(id)
	draft, err := svc.DeleteItem(id, 0)
	if err != nil {
		t.Fatalf("DeleteItem失败: %v", err)
	}
	if len(draft.Items) != 1 || draft.Items[0].Sequence != 1 {
		t.Errorf("删除后应重排序号: %+v", draft.Items)
	}
}

func TestDraftAttachImage(t *testing.T) {
	svc, _ := newTestDraftService(t)
	id, _ := svc.StartSession()

	draft, err := svc.AttachImage(context.Background(), id, []byte("fake-png"), "photo.png")
	if err != nil {
		t.Fatalf("AttachImage失败: %v", err)
	}
	item := draft.Items[0]
	if item.Image == "" || item.ImageFilename != "photo.png" || item.ImageMimetype != "image/png" {
		t.Errorf("图片字段未写入: %+v", item)
	}

	draft, err = svc.RemoveImage(id)
	if err != nil {
		t.Fatalf("RemoveImage失败: %v", err)
	}
	if draft.Items[0].Image != "" {
		t.Error("RemoveImage后图片字段应清空")
	}
}

func TestDraftHasContent(t *testing.T) {
	svc, _ := newTestDraftService(t)
	id, _ := svc.StartSession()

	hasContent, err := svc.HasContent(id)
	if err != nil || hasContent {
		t.Errorf("空白草稿不应视为有内容: %v, %v", hasContent, err)
	}

	svc.UpdateCurrentItem(id, composer.ItemUpdate{Text: strPtr("x")})
	hasContent, _ = svc.HasContent(id)
	if !hasContent {
		t.Error("填写文本后应视为有内容")
	}

	// 重新开始丢弃内容
	svc.Restart(id)
	hasContent, _ = svc.HasContent(id)
	if hasContent {
		t.Error("Restart后应回到空白状态")
	}
}

func TestDraftUnknownSession(t *testing.T) {
	svc, _ := newTestDraftService(t)

	if _, err := svc.GetDraft("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知会话应返回未找到，实际 %v", err)
	}
	if err := svc.Cancel("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知会话Cancel应返回未找到，实际 %v", err)
	}
}

func TestDraftSweepExpiredSessions(t *testing.T) {
	creator := &stubCreator{}
	svc := NewDraftService(&stubUploader{}, creator, time.Millisecond)
	defer svc.Close()

	id, _ := svc.StartSession()
	time.Sleep(5 * time.Millisecond)
	svc.sweep()

	if svc.ActiveSessions() != 0 {
		t.Error("过期会话应被回收")
	}
	if _, err := svc.GetDraft(id); !apperrors.IsNotFoundError(err) {
		t.Errorf("回收后GetDraft应返回未找到，实际 %v", err)
	}
}
