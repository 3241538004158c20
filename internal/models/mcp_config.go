// internal/models/mcp_config.go
package models

import "time"

// MCP工具的传输方式
type MCPTransport string

const (
	MCPTransportStdio     MCPTransport = "stdio"
	MCPTransportWebSocket MCPTransport = "websocket"
	MCPTransportHTTP      MCPTransport = "http"
)

// MCP配置状态
const (
	MCPStatusConfigured = "configured" // 已保存但未验证
	MCPStatusReady      = "ready"      // 最近一次测试通过
	MCPStatusError      = "error"      // 最近一次测试失败
)

// MCPConfig MCP工具集成配置
type MCPConfig struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Command          string            `json:"command"`
	Args             []string          `json:"args"`
	Env              map[string]string `json:"env"`
	Transport        MCPTransport      `json:"transport"`
	Version          string            `json:"version,omitempty"`
	AutoStart        bool              `json:"auto_start"`
	RestartOnFailure bool              `json:"restart_on_failure"`
	Timeout          int               `json:"timeout"` // 秒
	Status           string            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	LastError        string            `json:"last_error,omitempty"`
}

// MCPConfigCreate 创建/更新MCP配置的请求载荷
type MCPConfigCreate struct {
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Command          string            `json:"command"`
	Args             []string          `json:"args"`
	Env              map[string]string `json:"env"`
	Transport        MCPTransport      `json:"transport"`
	Version          string            `json:"version,omitempty"`
	AutoStart        bool              `json:"auto_start"`
	RestartOnFailure bool              `json:"restart_on_failure"`
	Timeout          int               `json:"timeout"`
}

// ValidTransport 检查传输方式是否受支持
func (t MCPTransport) ValidTransport() bool {
	switch t {
	case MCPTransportStdio, MCPTransportWebSocket, MCPTransportHTTP:
		return true
	}
	return false
}
