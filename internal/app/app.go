// internal/app/app.go
package app

import (
	"fmt"
	"log"

	"github.com/Corphon/VoicePromptMCP/internal/di"
	"github.com/Corphon/VoicePromptMCP/internal/services"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器。
// LLM服务初始化失败时降级为待机实例，应用仍可启动，
// 用户可以在设置页面补全API密钥后恢复。
func InitServices() error {
	container := di.GetContainer()

	// 1. LLM服务（其余服务的基础依赖）
	llmService, err := services.NewLLMService()
	if err != nil || llmService == nil {
		log.Printf("⚠️ LLM服务初始化失败，进入待机模式: %v", err)
		llmService = services.NewEmptyLLMService()
	}
	container.Register("llm", llmService)

	// 2. 会话服务（纯内存，无外部依赖）
	container.Register("session", services.NewSessionService())

	// 3. 提示词服务
	container.Register("prompt", services.NewPromptService(llmService))

	// 4. 建议服务
	container.Register("suggestion", services.NewSuggestionService(llmService))

	return nil
}

// GetLLMService 从容器获取LLM服务
func GetLLMService() (*services.LLMService, error) {
	service := di.GetContainer().Get("llm")
	if service == nil {
		return nil, fmt.Errorf("LLM服务未注册")
	}

	llmService, ok := service.(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务类型错误")
	}
	return llmService, nil
}

// GetSessionService 从容器获取会话服务
func GetSessionService() (*services.SessionService, error) {
	service := di.GetContainer().Get("session")
	if service == nil {
		return nil, fmt.Errorf("会话服务未注册")
	}

	sessionService, ok := service.(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("会话服务类型错误")
	}
	return sessionService, nil
}

// GetPromptService 从容器获取提示词服务
func GetPromptService() (*services.PromptService, error) {
	service := di.GetContainer().Get("prompt")
	if service == nil {
		return nil, fmt.Errorf("提示词服务未注册")
	}

	promptService, ok := service.(*services.PromptService)
	if !ok {
		return nil, fmt.Errorf("提示词服务类型错误")
	}
	return promptService, nil
}

// GetSuggestionService 从容器获取建议服务
func GetSuggestionService() (*services.SuggestionService, error) {
	service := di.GetContainer().Get("suggestion")
	if service == nil {
		return nil, fmt.Errorf("建议服务未注册")
	}

	suggestionService, ok := service.(*services.SuggestionService)
	if !ok {
		return nil, fmt.Errorf("建议服务类型错误")
	}
	return suggestionService, nil
}
