// internal/errors/errors.go
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 本地校验失败，未发起任何外部调用
	ErrorTypeValidation ErrorType = "validation_error"
	// 模型服务返回错误载荷或拒绝调用
	ErrorTypeExternalService ErrorType = "external_service_error"
	// 模型调用成功但返回内容不符合JSON/schema预期
	ErrorTypeMalformedResponse ErrorType = "malformed_response_error"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeError             ErrorType = "processing_error"
)

// GeminiErrorMarker 模型边界错误文本的固定前缀
const GeminiErrorMarker = "Gemini API Error: "

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
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

// NewValidationError 创建校验错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewExternalServiceError 创建模型服务错误
func NewExternalServiceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeExternalService, message, originalError)
}

// NewMalformedResponseError 创建响应格式错误
func NewMalformedResponseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeMalformedResponse, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// IsValidationError 检查是否为校验错误
func IsValidationError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeValidation
	}
	return false
}

// IsExternalServiceError 检查是否为模型服务错误
func IsExternalServiceError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeExternalService
	}
	return false
}

// IsMalformedResponseError 检查是否为响应格式错误
func IsMalformedResponseError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeMalformedResponse
	}
	return false
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeNotFound
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeExternalService:
		return "EXTERNAL_SERVICE_ERROR"
	case ErrorTypeMalformedResponse:
		return "MALFORMED_RESPONSE"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
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

// ExternalServiceMessage 从带有固定前缀的模型边界错误中提取可展示的消息。
// 前缀之后的内容优先按JSON错误体解码并取error.message，解码失败时原样返回后缀文本。
func ExternalServiceMessage(err error) string {
	if err == nil {
		return ""
	}

	text := err.Error()
	idx := strings.Index(text, GeminiErrorMarker)
	if idx == -1 {
		return text
	}

	suffix := strings.TrimSpace(text[idx+len(GeminiErrorMarker):])
	if suffix == "" {
		return text
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal([]byte(suffix), &body); jsonErr == nil && body.Error.Message != "" {
		return body.Error.Message
	}

	return suffix
}
