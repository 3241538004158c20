// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	DBPath    string `json:"db_path"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 上传限制（字节）
	UploadMaxBytes int64 `json:"upload_max_bytes"`

	// 草稿会话的空闲过期时间（分钟）
	DraftTTLMinutes int `json:"draft_ttl_minutes"`
}

// Config 存储从环境加载的基础配置
type Config struct {
	Port      string
	DataDir   string
	LogDir    string
	DebugMode bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:      getEnv("PORT", "8080"),
		DataDir:   getEnvPath("DATA_DIR", "data"),
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		DebugMode: getEnvBool("DEBUG_MODE", true),
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:            baseConfig.Port,
		DataDir:         baseConfig.DataDir,
		DBPath:          filepath.Join(baseConfig.DataDir, "console.db"),
		LogDir:          baseConfig.LogDir,
		DebugMode:       baseConfig.DebugMode,
		UploadMaxBytes:  10 << 20, // 10 MiB
		DraftTTLMinutes: 120,
	}

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 基础配置始终以环境为准，文件只保留可在运行时调整的设置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.DBPath == "" {
					savedConfig.DBPath = filepath.Join(baseConfig.DataDir, "console.db")
				}
				if savedConfig.UploadMaxBytes <= 0 {
					savedConfig.UploadMaxBytes = 10 << 20
				}
				if savedConfig.DraftTTLMinutes <= 0 {
					savedConfig.DraftTTLMinutes = 120
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return &AppConfig{
			Port:            baseConfig.Port,
			DataDir:         baseConfig.DataDir,
			DBPath:          filepath.Join(baseConfig.DataDir, "console.db"),
			LogDir:          baseConfig.LogDir,
			DebugMode:       baseConfig.DebugMode,
			UploadMaxBytes:  10 << 20,
			DraftTTLMinutes: 120,
		}
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateConfig 在锁内修改当前配置并持久化，返回更新后的副本
func UpdateConfig(apply func(*AppConfig)) (*AppConfig, error) {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return nil, fmt.Errorf("配置尚未初始化")
	}

	apply(currentConfig)
	if err := saveConfigLocked(); err != nil {
		return nil, err
	}

	updated := *currentConfig
	return &updated, nil
}

func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
