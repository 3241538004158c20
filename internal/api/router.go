// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/sableworks/agentconsole/internal/di"
	"github.com/sableworks/agentconsole/internal/services"
)

// SetupRouter 配置HTTP路由
// 只从依赖注入容器获取服务，不在这里创建新实例
func SetupRouter() (*gin.Engine, error) {
	container := di.GetContainer()

	mcpService, ok := container.Get("mcp").(*services.MCPService)
	if !ok {
		return nil, fmt.Errorf("MCP服务未正确初始化")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未正确初始化")
	}

	dataService, ok := container.Get("data").(*services.DataService)
	if !ok {
		return nil, fmt.Errorf("数据服务未正确初始化")
	}

	draftService, ok := container.Get("draft").(*services.DraftService)
	if !ok {
		return nil, fmt.Errorf("编排服务未正确初始化")
	}

	chatService, ok := container.Get("chat").(*services.ChatService)
	if !ok {
		return nil, fmt.Errorf("聊天服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	statsService, ok := container.Get("stats").(*services.StatsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	handler := NewHandler(
		mcpService,
		llmService,
		dataService,
		draftService,
		chatService,
		configService,
		statsService,
	)

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(requestMetricsMiddleware())
	r.Use(DefaultRateLimit())

	api := r.Group("/api")
	{
		api.GET("/health", handler.GetHealth)
		api.GET("/status", handler.GetStatus)
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", handler.UpdateSettings)

		mcp := api.Group("/mcp")
		{
			mcp.GET("/configs", handler.GetMCPConfigs)
			mcp.POST("/configs", handler.CreateMCPConfig)
			mcp.GET("/configs/:id", handler.GetMCPConfig)
			mcp.PUT("/configs/:id", handler.UpdateMCPConfig)
			mcp.DELETE("/configs/:id", handler.DeleteMCPConfig)
			mcp.POST("/configs/:id/test", handler.TestMCPConfig)
		}

		llm := api.Group("/llm")
		{
			llm.GET("/providers", handler.GetLLMProviders)
			llm.GET("/configs", handler.GetLLMConfigs)
			llm.POST("/configs", handler.CreateLLMConfig)
			llm.GET("/configs/:id", handler.GetLLMConfig)
			llm.PUT("/configs/:id", handler.UpdateLLMConfig)
			llm.DELETE("/configs/:id", handler.DeleteLLMConfig)
			llm.POST("/configs/:id/test", handler.TestLLMConfig)
		}

		data := api.Group("/data")
		{
			data.GET("/documents", handler.GetDocuments)
			data.POST("/documents", handler.CreateDocument)
			data.GET("/documents/search", handler.SearchDocuments)
			data.GET("/documents/statistics", handler.GetDocumentStatistics)
			data.GET("/documents/:id", handler.GetDocument)
			data.PUT("/documents/:id", handler.UpdateDocument)
			data.DELETE("/documents/:id", handler.DeleteDocument)
			data.POST("/upload-image", UploadRateLimit(), handler.UploadImage)
			data.POST("/export", handler.ExportDocuments)
		}

		draft := api.Group("/draft")
		{
			draft.POST("/start", handler.StartDraft)

			session := draft.Group("/:session_id")
			{
				session.GET("", handler.GetDraft)
				session.POST("/restart", handler.RestartDraft)
				session.GET("/has-content", handler.GetDraftHasContent)
				session.POST("/items", handler.AddDraftItem)
				session.DELETE("/items", handler.DeleteDraftItem)
				session.PUT("/step", handler.GoToDraftStep)
				session.PUT("/item", handler.UpdateDraftItem)
				session.POST("/image", UploadRateLimit(), handler.AttachDraftImage)
				session.DELETE("/image", handler.RemoveDraftImage)
				session.PUT("/metadata", handler.SetDraftMetadata)
				session.POST("/commit", handler.CommitDraft)
				session.POST("/cancel", handler.CancelDraft)
			}
		}

		api.POST("/chat", ChatRateLimit(), handler.Chat)
		api.GET("/chat/sessions/:id", handler.GetChatSession)
	}

	r.GET("/ws/chat", handler.ChatWebSocket)

	return r, nil
}
