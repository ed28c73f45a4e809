// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSessionInvalid  = "SESSION_INVALID"

	// 角色/台词相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorLineNotFound      = "LINE_NOT_FOUND"

	// 提示词生成相关错误
	ErrorValidationFailed     = "VALIDATION_FAILED"
	ErrorModelServiceFailed   = "MODEL_SERVICE_FAILED"
	ErrorModelResponseInvalid = "MODEL_RESPONSE_INVALID"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"
)
