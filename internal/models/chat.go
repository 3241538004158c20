// internal/models/chat.go
package models

import "time"

// ChatMessage 会话中的一条消息
type ChatMessage struct {
	Role      string    `json:"role"` // user / assistant / system
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest 手动测试聊天的请求
type ChatRequest struct {
	Message      string  `json:"message" binding:"required"`
	ModelName    string  `json:"model_name,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	SessionID    string  `json:"session_id,omitempty"`
	Stream       bool    `json:"stream,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
}

// ChatResponse 聊天测试的响应
type ChatResponse struct {
	Success        bool           `json:"success"`
	Content        string         `json:"content"`
	ModelName      string         `json:"model_name"`
	SessionID      string         `json:"session_id"`
	ProcessingTime float64        `json:"processing_time"` // 秒
	TokenUsage     map[string]int `json:"token_usage"`
}

// ChatSession 服务端保存的测试会话记录
type ChatSession struct {
	ID        string        `json:"id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
