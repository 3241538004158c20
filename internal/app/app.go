// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sableworks/agentconsole/internal/config"
	"github.com/sableworks/agentconsole/internal/db"
	"github.com/sableworks/agentconsole/internal/di"
	"github.com/sableworks/agentconsole/internal/secrets"
	"github.com/sableworks/agentconsole/internal/services"
	"github.com/sableworks/agentconsole/internal/storage"
)

// App 应用程序实例
type App struct {
	config   *config.AppConfig
	database db.Db
	server   httpServer
	stopChan chan os.Signal
}

// httpServer 抽象出服务器接口，便于测试时注入mock
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// 全局应用实例（单例模式）
var instance *App

// GetApp 获取应用实例
func GetApp() *App {
	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// GetConfig 返回应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 检查是否处于调试模式
func IsDebugMode() bool {
	if instance == nil || instance.config == nil {
		return false
	}
	return instance.config.DebugMode
}

// Initialize 初始化应用：配置、日志、数据库和所有服务
func Initialize() error {
	baseConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		return fmt.Errorf("初始化配置系统失败: %w", err)
	}

	app := GetApp()
	app.config = config.GetCurrentConfig()

	if err := initLogger(app.config.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	log.Printf("✅ 应用初始化完成，端口: %s", app.config.Port)
	return nil
}

// InitServices 按依赖顺序初始化所有服务并注册进容器
// 顺序：数据库 → 仓库 → 基础服务 → 依赖服务
func InitServices() error {
	container := di.GetContainer()
	cfg := config.GetCurrentConfig()
	app := GetApp()
	app.config = cfg

	// 数据库
	database := db.NewSQLite(cfg.DBPath)
	if err := database.Init(); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	app.database = database
	container.Register("db", database)
	log.Println("✅ 数据库初始化完成")

	// 仓库层
	documentRepo := storage.NewDocumentRepo(database)
	if err := documentRepo.Init(); err != nil {
		return fmt.Errorf("加载文档仓库失败: %w", err)
	}
	mcpRepo := storage.NewMCPConfigRepo(database)
	if err := mcpRepo.Init(); err != nil {
		return fmt.Errorf("加载MCP配置仓库失败: %w", err)
	}
	keeper, err := secrets.LoadOrCreate(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("加载主密钥失败: %w", err)
	}
	llmRepo := storage.NewLLMConfigRepo(database, keeper)
	if err := llmRepo.Init(); err != nil {
		return fmt.Errorf("加载LLM配置仓库失败: %w", err)
	}
	log.Println("✅ 存储仓库加载完成")

	// 基础服务
	configService := services.NewConfigService()
	container.Register("config", configService)

	dataService := services.NewDataService(documentRepo)
	container.Register("data", dataService)

	mcpService := services.NewMCPService(mcpRepo)
	container.Register("mcp", mcpService)

	llmService := services.NewLLMService(llmRepo)
	container.Register("llm", llmService)

	// 依赖服务
	draftService := services.NewDraftService(dataService, dataService,
		time.Duration(cfg.DraftTTLMinutes)*time.Minute)
	container.Register("draft", draftService)

	chatService := services.NewChatService(llmService)
	container.Register("chat", chatService)

	statsService := services.NewStatsService(mcpService, llmService, chatService, draftService)
	container.Register("stats", statsService)

	log.Printf("✅ 所有服务初始化完成，服务数量: %d", len(container.GetNames()))
	return nil
}

// Run 启动HTTP服务器并阻塞到收到停止信号
func Run(handler http.Handler) error {
	app := GetApp()

	if app.server == nil {
		app.server = &http.Server{
			Addr:    ":" + app.config.Port,
			Handler: handler,
		}
	}

	go func() {
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 启动服务器失败: %v", err)
		}
	}()
	log.Printf("🌐 服务器启动在端口 %s", app.config.Port)

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-app.stopChan

	log.Println("🛑 正在关闭服务器...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	app.cleanup()
	log.Println("✅ 服务器优雅关闭完成")
	return nil
}

// cleanup 释放持有的资源
func (a *App) cleanup() {
	container := di.GetContainer()

	if draft, ok := container.Get("draft").(*services.DraftService); ok && draft != nil {
		draft.Close()
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			log.Printf("⚠️ 关闭数据库失败: %v", err)
		}
	}
}

// initLogger 初始化日志系统，同时输出到文件和控制台
func initLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("console_%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return nil
}
