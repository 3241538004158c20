// internal/services/chat_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sableworks/agentconsole/internal/cache"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/llm"
	"github.com/sableworks/agentconsole/internal/models"
)

// ChatService 手动测试聊天服务
// 会话只存内存，不持久化；这里的聊天是给管理员验证模型配置用的
type ChatService struct {
	llmService *LLMService
	sessions   *cache.Cache[string, *models.ChatSession]
	mu         sync.Mutex
}

// NewChatService 创建聊天测试服务
func NewChatService(llmService *LLMService) *ChatService {
	return &ChatService{
		llmService: llmService,
		sessions:   cache.NewCache[string, *models.ChatSession](),
	}
}

// Chat 同步执行一轮聊天
// 指定了 model_name 就用该模型的配置，否则用默认配置
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	cfg, err := s.llmService.ResolveConfig(req.ModelName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.llmService.Complete(ctx, cfg, llm.CompletionRequest{
		Prompt:       req.Message,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, apperrors.NewProcessingError("聊天请求失败", err)
	}

	sessionID := s.record(req.SessionID, req.Message, resp.Text)

	return &models.ChatResponse{
		Success:        true,
		Content:        resp.Text,
		ModelName:      resp.ModelName,
		SessionID:      sessionID,
		ProcessingTime: time.Since(start).Seconds(),
		TokenUsage: map[string]int{
			"prompt_tokens": resp.PromptTokens,
			"output_tokens": resp.OutputTokens,
			"total_tokens":  resp.TokensUsed,
		},
	}, nil
}

// Stream 执行流式聊天，分片直接转给调用方
// 完整回复在流结束后记入会话
func (s *ChatService) Stream(ctx context.Context, req models.ChatRequest) (<-chan llm.StreamResponse, string, error) {
	cfg, err := s.llmService.ResolveConfig(req.ModelName)
	if err != nil {
		return nil, "", err
	}

	upstream, err := s.llmService.Stream(ctx, cfg, llm.CompletionRequest{
		Prompt:       req.Message,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, "", apperrors.NewProcessingError("流式聊天请求失败", err)
	}

	sessionID := s.ensureSession(req.SessionID, req.Message)

	out := make(chan llm.StreamResponse)
	go func() {
		defer close(out)
		var full strings.Builder
		for chunk := range upstream {
			if chunk.Done {
				// 结束分片携带提供商累积的完整回复；没带时退回本地累积
				reply := chunk.Text
				if reply == "" {
					reply = full.String()
				}
				s.appendAssistant(sessionID, reply)
			} else {
				full.WriteString(chunk.Text)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sessionID, nil
}

// GetSession 读取测试会话记录
func (s *ChatService) GetSession(id string) (*models.ChatSession, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("聊天会话不存在: "+id, nil)
	}
	return session, nil
}

// ActiveSessions 当前会话数
func (s *ChatService) ActiveSessions() int {
	return s.sessions.Len()
}

// record 把一轮问答写进会话，必要时新建会话
func (s *ChatService) record(sessionID, userMessage, assistantMessage string) string {
	sessionID = s.ensureSession(sessionID, userMessage)
	s.appendAssistant(sessionID, assistantMessage)
	return sessionID
}

func (s *ChatService) ensureSession(sessionID, userMessage string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		session = &models.ChatSession{
			ID:        uuid.NewString(),
			CreatedAt: now,
		}
	}

	updated := *session
	updated.Messages = append(append([]models.ChatMessage{}, session.Messages...), models.ChatMessage{
		Role:      RoleUser,
		Content:   userMessage,
		Timestamp: now,
	})
	updated.UpdatedAt = now

	s.sessions.Set(updated.ID, &updated)
	return updated.ID
}

func (s *ChatService) appendAssistant(sessionID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}

	now := time.Now().UTC()
	updated := *session
	updated.Messages = append(append([]models.ChatMessage{}, session.Messages...), models.ChatMessage{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: now,
	})
	updated.UpdatedAt = now
	s.sessions.Set(sessionID, &updated)
}
