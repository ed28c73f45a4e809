// internal/api/router.go
package api

import (
	"fmt"

	"github.com/Corphon/VoicePromptMCP/internal/config"
	"github.com/Corphon/VoicePromptMCP/internal/di"
	"github.com/Corphon/VoicePromptMCP/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	sessionService, ok := container.Get("session").(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("会话服务未正确初始化")
	}

	promptService, ok := container.Get("prompt").(*services.PromptService)
	if !ok {
		return nil, fmt.Errorf("提示词服务未正确初始化")
	}

	suggestionService, ok := container.Get("suggestion").(*services.SuggestionService)
	if !ok {
		return nil, fmt.Errorf("建议服务未正确初始化")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未正确初始化")
	}

	handler := NewHandler(sessionService, promptService, suggestionService, llmService)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 跨域与请求追踪
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-Request-ID")
	r.Use(cors.New(corsConfig))
	r.Use(RequestIDMiddleware())
	r.Use(MetricsMiddleware())

	// 静态文件服务（表单前端）
	r.Static("/static", cfg.StaticDir)

	// 健康检查
	r.GET("/health", handler.Health)

	// WebSocket 支持
	r.GET("/ws/sessions/:id", handler.SessionWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		// ===============================
		// 会话相关路由
		// ===============================
		sessionsGroup := api.Group("/sessions")
		{
			sessionsGroup.POST("", handler.CreateSession)
			sessionsGroup.GET("/:id", handler.GetSession)
			sessionsGroup.DELETE("/:id", handler.DeleteSession)
			sessionsGroup.PUT("/:id/narration", handler.UpdateNarration)
			sessionsGroup.PUT("/:id/dialogue", handler.UpdateDialogueSettings)

			sessionsGroup.POST("/:id/characters", handler.AddCharacter)
			sessionsGroup.PUT("/:id/characters/:cid", handler.UpdateCharacter)
			sessionsGroup.DELETE("/:id/characters/:cid", handler.RemoveCharacter)

			sessionsGroup.POST("/:id/lines", handler.AddScriptLine)
			sessionsGroup.PUT("/:id/lines/:lid", handler.UpdateScriptLine)
			sessionsGroup.DELETE("/:id/lines/:lid", handler.RemoveScriptLine)

			sessionsGroup.POST("/:id/generate", handler.GeneratePrompt)
		}

		// ===============================
		// 建议相关路由
		// ===============================
		suggestGroup := api.Group("/suggest")
		{
			suggestGroup.POST("/scenario", handler.SuggestScenario)
			suggestGroup.POST("/narrator", handler.SuggestNarratorDetails)
			suggestGroup.POST("/image-touch", handler.SuggestImageTouch)
		}

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.PUT("", handler.SaveSettings)
			settingsGroup.POST("/test", handler.TestConnection)
		}

		// ===============================
		// LLM状态相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
		}

		// 调试路由
		api.GET("/ws/status", handler.GetWebSocketStatus)
		api.GET("/metrics", handler.GetMetrics)
	}

	return r, nil
}
