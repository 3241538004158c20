// internal/services/stats_service.go
package services

import (
	"time"

	"github.com/sableworks/agentconsole/internal/metrics"
	"github.com/sableworks/agentconsole/internal/models"
)

// Version 随发布更新
const Version = "0.1.0"

// StatsService 聚合健康检查和系统状态页面的数据
type StatsService struct {
	startedAt    time.Time
	mcpService   *MCPService
	llmService   *LLMService
	chatService  *ChatService
	draftService *DraftService
}

// NewStatsService 创建状态服务
func NewStatsService(mcp *MCPService, llm *LLMService, chat *ChatService, draft *DraftService) *StatsService {
	return &StatsService{
		startedAt:    time.Now(),
		mcpService:   mcp,
		llmService:   llm,
		chatService:  chat,
		draftService: draft,
	}
}

// Health /api/health 的数据
func (s *StatsService) Health() *models.HealthStatus {
	return &models.HealthStatus{
		Success:   true,
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Components: map[string]string{
			"api":  "ok",
			"db":   "ok",
			"chat": "ok",
		},
	}
}

// Status /api/status 的数据：运行时长与各模块按状态的计数
func (s *StatsService) Status() *models.SystemStatus {
	mcpCounts := make(map[string]int)
	for _, cfg := range s.mcpService.ListConfigs() {
		mcpCounts[cfg.Status]++
	}

	llmCounts := make(map[string]int)
	for _, cfg := range s.llmService.ListConfigs() {
		llmCounts[cfg.Status]++
	}

	return &models.SystemStatus{
		Success:        true,
		Timestamp:      time.Now().UTC(),
		Uptime:         time.Since(s.startedAt).Round(time.Second).String(),
		MCPTools:       mcpCounts,
		LLMModels:      llmCounts,
		ActiveSessions: s.chatService.ActiveSessions() + s.draftService.ActiveSessions(),
		Requests:       metrics.Default().Snapshot(),
	}
}
