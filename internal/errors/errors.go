// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 文档编排相关错误类型
	ErrorTypeMinimumItems      ErrorType = "minimum_items"
	ErrorTypeMetadataMissing   ErrorType = "metadata_missing"
	ErrorTypeEmptyItemText     ErrorType = "empty_item_text"
	ErrorTypeUploadFailed      ErrorType = "upload_failed"
	ErrorTypePersistenceFailed ErrorType = "persistence_failed"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
	// 校验失败条目的序号（仅 empty_item_text 使用）
	Sequence int
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewMinimumItemsError 删除会低于最少条目数时返回
func NewMinimumItemsError(message string) *AppError {
	return NewAppError(ErrorTypeMinimumItems, message, nil)
}

// NewMetadataMissingError 提交时文档名缺失
func NewMetadataMissingError(message string) *AppError {
	return NewAppError(ErrorTypeMetadataMissing, message, nil)
}

// NewEmptyItemTextError 提交时某条目的文本为空，sequence 指明是哪一条
func NewEmptyItemTextError(sequence int) *AppError {
	err := NewAppError(ErrorTypeEmptyItemText,
		fmt.Sprintf("第 %d 条内容的文本为空", sequence), nil)
	err.Sequence = sequence
	return err
}

// NewUploadFailedError 图片上传协作方失败
func NewUploadFailedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUploadFailed, message, originalError)
}

// NewPersistenceFailedError 文档创建协作方失败
func NewPersistenceFailedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePersistenceFailed, message, originalError)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsMinimumItemsError 检查是否为最少条目数错误
func IsMinimumItemsError(err error) bool {
	return isType(err, ErrorTypeMinimumItems)
}

// IsMetadataMissingError 检查是否为元数据缺失错误
func IsMetadataMissingError(err error) bool {
	return isType(err, ErrorTypeMetadataMissing)
}

// IsEmptyItemTextError 检查是否为条目文本为空错误
func IsEmptyItemTextError(err error) bool {
	return isType(err, ErrorTypeEmptyItemText)
}

// IsUploadFailedError 检查是否为上传失败错误
func IsUploadFailedError(err error) bool {
	return isType(err, ErrorTypeUploadFailed)
}

// IsPersistenceFailedError 检查是否为持久化失败错误
func IsPersistenceFailedError(err error) bool {
	return isType(err, ErrorTypePersistenceFailed)
}

func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// AsAppError 提取错误链中的 AppError
func AsAppError(err error) (*AppError, bool) {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError, true
	}
	return nil, false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeMinimumItems:
		return "MINIMUM_ITEMS"
	case ErrorTypeMetadataMissing:
		return "METADATA_MISSING"
	case ErrorTypeEmptyItemText:
		return "EMPTY_ITEM_TEXT"
	case ErrorTypeUploadFailed:
		return "UPLOAD_FAILED"
	case ErrorTypePersistenceFailed:
		return "PERSISTENCE_FAILED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
