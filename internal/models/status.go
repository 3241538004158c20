// internal/models/status.go
package models

import "time"

// HealthStatus /api/health 的响应
type HealthStatus struct {
	Success    bool              `json:"success"`
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// SystemStatus /api/status 的响应
type SystemStatus struct {
	Success        bool             `json:"success"`
	Timestamp      time.Time        `json:"timestamp"`
	Uptime         string           `json:"uptime"`
	MCPTools       map[string]int   `json:"mcp_tools"`  // 按状态计数
	LLMModels      map[string]int   `json:"llm_models"` // 按状态计数
	ActiveSessions int              `json:"active_sessions"`
	Requests       map[string]int64 `json:"requests"` // 进程内请求计数
}
