// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 文档编排相关错误
	ErrorMinimumItems      = "MINIMUM_ITEMS"
	ErrorMetadataMissing   = "METADATA_MISSING"
	ErrorEmptyItemText     = "EMPTY_ITEM_TEXT"
	ErrorUploadFailed      = "UPLOAD_FAILED"
	ErrorPersistenceFailed = "PERSISTENCE_FAILED"
	ErrorDraftNotFound     = "DRAFT_NOT_FOUND"

	// MCP配置相关错误
	ErrorMCPConfigInvalid = "MCP_CONFIG_INVALID"
	ErrorMCPTestFailed    = "MCP_TEST_FAILED"

	// LLM配置相关错误
	ErrorLLMConfigInvalid = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed = "CONNECTION_FAILED"

	// 文件相关错误
	ErrorFileUploadFailed = "FILE_UPLOAD_FAILED"
	ErrorFileInvalid      = "FILE_INVALID"

	// 导出相关错误
	ErrorExportFailed    = "EXPORT_FAILED"
	ErrorExportDataEmpty = "EXPORT_DATA_EMPTY"
)
