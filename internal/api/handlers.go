// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sableworks/agentconsole/internal/errors"
	"github.com/sableworks/agentconsole/internal/services"
)

// Handler 处理API请求
type Handler struct {
	MCPService    *services.MCPService    // MCP工具配置服务
	LLMService    *services.LLMService    // 语言模型配置服务
	DataService   *services.DataService   // 数据文档服务
	DraftService  *services.DraftService  // 文档编排服务
	ChatService   *services.ChatService   // 聊天测试服务
	ConfigService *services.ConfigService // 配置服务
	StatsService  *services.StatsService  // 状态服务
	Response      *ResponseHelper         // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	mcpService *services.MCPService,
	llmService *services.LLMService,
	dataService *services.DataService,
	draftService *services.DraftService,
	chatService *services.ChatService,
	configService *services.ConfigService,
	statsService *services.StatsService,
) *Handler {
	return &Handler{
		MCPService:    mcpService,
		LLMService:    llmService,
		DataService:   dataService,
		DraftService:  draftService,
		ChatService:   chatService,
		ConfigService: configService,
		StatsService:  statsService,
		Response:      NewResponseHelper(),
	}
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// 校验失败条目的序号（仅条目文本为空时有值）
	Sequence int `json:"sequence,omitempty"`
}

// ------------------------------------------------
// 状态相关处理器
// ------------------------------------------------

// GetHealth 健康检查
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.StatsService.Health())
}

// GetStatus 系统状态：运行时长与各模块按状态的计数
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.StatsService.Status())
}

// ------------------------------------------------
// 错误映射
// ------------------------------------------------

// handleServiceError 把服务层的 AppError 映射到HTTP响应
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		h.Response.InternalError(c, "内部错误", err.Error())
		return
	}

	status := statusForErrorType(appErr.Type)
	apiError := &APIError{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Sequence: appErr.Sequence,
	}
	if appErr.Err != nil {
		apiError.Details = appErr.Err.Error()
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: c.GetString("request_id"),
	})
}

func statusForErrorType(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation,
		apperrors.ErrorTypeMinimumItems,
		apperrors.ErrorTypeMetadataMissing,
		apperrors.ErrorTypeEmptyItemText:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrorTypeUploadFailed,
		apperrors.ErrorTypePersistenceFailed:
		// 协作方失败，对外表现为网关错误
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
