// internal/services/chat_service_test.go
package services

import (
	"context"
	"testing"

	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/llm"
	"github.com/sableworks/agentconsole/internal/models"
)

func newTestChatService(t *testing.T) *ChatService {
	t.Helper()
	llmService := newTestLLMService(t)

	payload := validLLMPayload()
	payload.IsDefault = true
	if _, err := llmService.CreateConfig(payload); err != nil {
		t.Fatalf("创建默认配置失败: %v", err)
	}
	return NewChatService(llmService)
}

func TestChatRecordsSession(t *testing.T) {
	svc := newTestChatService(t)

	fakeCompleteFn = func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Text:         "你好，这是回复",
			ModelName:    "gpt-4o",
			TokensUsed:   10,
			PromptTokens: 4,
			OutputTokens: 6,
		}, nil
	}
	t.Cleanup(func() { fakeCompleteFn = nil })

	resp, err := svc.Chat(context.Background(), models.ChatRequest{Message: "你好"})
	if err != nil {
		t.Fatalf("Chat失败: %v", err)
	}
	if !resp.Success || resp.Content != "你好，这是回复" || resp.SessionID == "" {
		t.Errorf("响应不符: %+v", resp)
	}
	if resp.TokenUsage["total_tokens"] != 10 || resp.TokenUsage["prompt_tokens"] != 4 {
		t.Errorf("token统计不符: %+v", resp.TokenUsage)
	}

	session, err := svc.GetSession(resp.SessionID)
	if err != nil {
		t.Fatalf("GetSession失败: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("会话应有一问一答，实际 %d 条", len(session.Messages))
	}
	if session.Messages[0].Role != RoleUser || session.Messages[1].Role != RoleAssistant {
		t.Errorf("消息角色不符: %+v", session.Messages)
	}

	// 复用会话ID继续对话
	resp2, err := svc.Chat(context.Background(), models.ChatRequest{
		Message:   "再来一轮",
		SessionID: resp.SessionID,
	})
	if err != nil {
		t.Fatalf("第二轮Chat失败: %v", err)
	}
	if resp2.SessionID != resp.SessionID {
		t.Error("指定会话ID时应复用会话")
	}
	session, _ = svc.GetSession(resp.SessionID)
	if len(session.Messages) != 4 {
		t.Errorf("两轮对话后应有4条消息，实际 %d", len(session.Messages))
	}
}

func TestChatStreamAccumulatesReply(t *testing.T) {
	svc := newTestChatService(t)

	// 结束分片按提供商的约定携带完整回复，而不是增量
	fakeStreamFn = func(req llm.CompletionRequest) []llm.StreamResponse {
		return []llm.StreamResponse{
			{Text: "第一"},
			{Text: "第二"},
			{Text: "第一第二", Done: true, FinishReason: "stop"},
		}
	}
	t.Cleanup(func() { fakeStreamFn = nil })

	ch, sessionID, err := svc.Stream(context.Background(), models.ChatRequest{Message: "讲个故事"})
	if err != nil {
		t.Fatalf("Stream失败: %v", err)
	}

	var pieces []string
	for chunk := range ch {
		if !chunk.Done {
			pieces = append(pieces, chunk.Text)
		}
	}
	if len(pieces) != 2 {
		t.Errorf("应转发两个内容分片，实际 %d", len(pieces))
	}

	// 完整回复在流结束后写入会话，且只写一遍
	session, err := svc.GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession失败: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("会话应有一问一答，实际 %d 条", len(session.Messages))
	}
	if got := session.Messages[1].Content; got != "第一第二" {
		t.Errorf("会话记录的完整回复应为 %q，实际 %q", "第一第二", got)
	}
}

func TestChatUnknownModelAndSession(t *testing.T) {
	svc := newTestChatService(t)

	if _, err := svc.Chat(context.Background(), models.ChatRequest{
		Message: "hi", ModelName: "no-such-model",
	}); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知模型应返回未找到，实际 %v", err)
	}

	if _, err := svc.GetSession("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("未知会话应返回未找到，实际 %v", err)
	}
}
