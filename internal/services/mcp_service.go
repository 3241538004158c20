// internal/services/mcp_service.go
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/models"
	"github.com/sableworks/agentconsole/internal/storage"
)

// MCPService MCP工具配置服务
// 保存的配置只是声明，TestConfig 负责把状态推进到 ready 或 error
type MCPService struct {
	repo *storage.MCPConfigRepo
}

// NewMCPService 创建MCP配置服务
func NewMCPService(repo *storage.MCPConfigRepo) *MCPService {
	return &MCPService{repo: repo}
}

// ListConfigs 返回全部MCP配置
func (s *MCPService) ListConfigs() []*models.MCPConfig {
	return s.repo.List()
}

// GetConfig 按ID读取配置
func (s *MCPService) GetConfig(id string) (*models.MCPConfig, error) {
	return s.repo.Get(id)
}

// CreateConfig 校验并保存新配置，初始状态 configured
func (s *MCPService) CreateConfig(payload models.MCPConfigCreate) (*models.MCPConfig, error) {
	if err := validateMCPPayload(&payload); err != nil {
		return nil, err
	}
	return s.repo.Create(payload)
}

// UpdateConfig 整体更新配置，状态回到 configured 等待重新测试
func (s *MCPService) UpdateConfig(id string, payload models.MCPConfigCreate) (*models.MCPConfig, error) {
	if err := validateMCPPayload(&payload); err != nil {
		return nil, err
	}
	return s.repo.Update(id, payload)
}

// DeleteConfig 删除配置
func (s *MCPService) DeleteConfig(id string) error {
	return s.repo.Delete(id)
}

// TestConfig 对配置做连通性测试并记录结果
// stdio 检查命令是否可执行；http/websocket 探测端点是否可达
func (s *MCPService) TestConfig(ctx context.Context, id string) (*models.MCPConfig, error) {
	cfg, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var testErr error
	switch cfg.Transport {
	case models.MCPTransportStdio:
		testErr = testStdio(cfg.Command)
	case models.MCPTransportHTTP:
		testErr = testHTTP(testCtx, cfg.Command)
	case models.MCPTransportWebSocket:
		testErr = testWebSocket(testCtx, cfg.Command)
	default:
		testErr = fmt.Errorf("未知的传输方式: %s", cfg.Transport)
	}

	status := models.MCPStatusReady
	lastError := ""
	if testErr != nil {
		status = models.MCPStatusError
		lastError = testErr.Error()
	}

	if err := s.repo.SetStatus(id, status, lastError); err != nil {
		return nil, err
	}
	return s.repo.Get(id)
}

func testStdio(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("命令不可执行: %w", err)
	}
	return nil
}

func testHTTP(ctx context.Context, endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("无效的HTTP端点: %s", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("端点不可达: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("端点返回服务端错误: %d", resp.StatusCode)
	}
	return nil
}

func testWebSocket(ctx context.Context, endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") {
		return fmt.Errorf("无效的WebSocket端点: %s", endpoint)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("WebSocket握手失败: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn.Close()
}

func validateMCPPayload(payload *models.MCPConfigCreate) error {
	if strings.TrimSpace(payload.Name) == "" {
		return apperrors.NewValidationError("配置名不能为空", nil)
	}
	if strings.TrimSpace(payload.Command) == "" {
		return apperrors.NewValidationError("命令或端点不能为空", nil)
	}
	if !payload.Transport.ValidTransport() {
		return apperrors.NewValidationError("不支持的传输方式: "+string(payload.Transport), nil)
	}
	if payload.Timeout < 0 {
		return apperrors.NewValidationError("超时时间不能为负数", nil)
	}
	return nil
}
