// internal/services/config_service.go
package services

import (
	"sync"
	"time"

	"github.com/sableworks/agentconsole/internal/config"
	apperrors "github.com/sableworks/agentconsole/internal/errors"
)

// ConfigService 提供配置管理功能
type ConfigService struct {
	// 缓存最近获取的配置，减少反复访问底层存储
	cachedConfig *config.AppConfig

	// 配置更新时间
	lastUpdated time.Time

	// 互斥锁保护内部状态
	mu sync.RWMutex
}

// NewConfigService 创建配置服务实例
func NewConfigService() *ConfigService {
	return &ConfigService{
		cachedConfig: config.GetCurrentConfig(),
		lastUpdated:  time.Now(),
	}
}

// GetCurrentConfig 获取当前配置
func (s *ConfigService) GetCurrentConfig() *config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cachedConfig == nil {
		s.cachedConfig = config.GetCurrentConfig()
	}
	return s.cachedConfig
}

// UpdateSettings 调整运行时可变的设置并持久化
// 传nil的字段保持不变
func (s *ConfigService) UpdateSettings(debugMode *bool, uploadMaxBytes *int64) (*config.AppConfig, error) {
	if uploadMaxBytes != nil && *uploadMaxBytes <= 0 {
		return nil, apperrors.NewValidationError("上传大小限制必须为正数", nil)
	}

	updated, err := config.UpdateConfig(func(cfg *config.AppConfig) {
		if debugMode != nil {
			cfg.DebugMode = *debugMode
		}
		if uploadMaxBytes != nil {
			cfg.UploadMaxBytes = *uploadMaxBytes
		}
	})
	if err != nil {
		return nil, apperrors.NewProcessingError("保存配置失败", err)
	}

	s.mu.Lock()
	s.cachedConfig = updated
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	return updated, nil
}
