// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Corphon/VoicePromptMCP/internal/config"
	"github.com/Corphon/VoicePromptMCP/internal/di"
	"github.com/Corphon/VoicePromptMCP/internal/llm"
	"github.com/Corphon/VoicePromptMCP/internal/models"
	"github.com/Corphon/VoicePromptMCP/internal/services"
	"github.com/Corphon/VoicePromptMCP/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	SessionService    *services.SessionService    // 会话服务
	PromptService     *services.PromptService     // 提示词服务
	SuggestionService *services.SuggestionService // 建议服务
	LLMService        *services.LLMService        // LLM服务
	WebSocketHandler  *WebSocketHandler           // WebSocket 处理器
	Response          *ResponseHelper             // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	sessionService *services.SessionService,
	promptService *services.PromptService,
	suggestionService *services.SuggestionService,
	llmService *services.LLMService,
) *Handler {
	return &Handler{
		SessionService:    sessionService,
		PromptService:     promptService,
		SuggestionService: suggestionService,
		LLMService:        llmService,
		WebSocketHandler:  NewWebSocketHandler(sessionService),
		Response:          NewResponseHelper(),
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
}

// ========================================
// 会话管理
// ========================================

// CreateSession 创建表单会话
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		Mode models.SpeechMode `json:"mode" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.SessionService.CreateSession(req.Mode)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Created(c, session, "会话创建成功")
}

// GetSession 获取会话状态
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.SessionService.GetSession(c.Param("id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session)
}

// DeleteSession 丢弃会话
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.SessionService.DeleteSession(c.Param("id")); err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, nil, "会话已删除")
}

// UpdateNarration 更新旁白模式表单
func (h *Handler) UpdateNarration(c *gin.Context) {
	var params models.NarrationParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.SessionService.UpdateNarration(c.Param("id"), params)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "旁白设置已更新")
}

// UpdateDialogueSettings 更新对话模式的场景和约束
func (h *Handler) UpdateDialogueSettings(c *gin.Context) {
	var req struct {
		Scenario string `json:"scenario"`
		Duration string `json:"duration"`
		Sections string `json:"sections"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.SessionService.UpdateDialogueSettings(c.Param("id"), req.Scenario, req.Duration, req.Sections)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "对话设置已更新")
}

// ========================================
// 角色管理
// ========================================

// AddCharacter 添加角色
func (h *Handler) AddCharacter(c *gin.Context) {
	var character models.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.SessionService.AddCharacter(c.Param("id"), character)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "角色已添加")
}

// UpdateCharacter 更新角色
func (h *Handler) UpdateCharacter(c *gin.Context) {
	var character models.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	character.ID = c.Param("cid")

	session, err := h.SessionService.UpdateCharacter(c.Param("id"), character)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "角色已更新")
}

// RemoveCharacter 删除角色，同时清除台词上的引用
func (h *Handler) RemoveCharacter(c *gin.Context) {
	session, err := h.SessionService.RemoveCharacter(c.Param("id"), c.Param("cid"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "角色已删除")
}

// ========================================
// 台词管理
// ========================================

// AddScriptLine 添加台词
func (h *Handler) AddScriptLine(c *gin.Context) {
	var line models.ScriptLine
	if err := c.ShouldBindJSON(&line); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.SessionService.AddScriptLine(c.Param("id"), line)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "台词已添加")
}

// UpdateScriptLine 更新台词
func (h *Handler) UpdateScriptLine(c *gin.Context) {
	var line models.ScriptLine
	if err := c.ShouldBindJSON(&line); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	line.ID = c.Param("lid")

	session, err := h.SessionService.UpdateScriptLine(c.Param("id"), line)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "台词已更新")
}

// RemoveScriptLine 删除台词
func (h *Handler) RemoveScriptLine(c *gin.Context) {
	session, err := h.SessionService.RemoveScriptLine(c.Param("id"), c.Param("lid"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "台词已删除")
}

// ========================================
// 提示词生成
// ========================================

// GeneratePrompt 提交会话表单并生成提示词。
// 校验失败不发起外部调用；生成状态通过WebSocket推送给订阅者。
func (h *Handler) GeneratePrompt(c *gin.Context) {
	sessionID := c.Param("id")

	req, err := h.SessionService.BuildPromptRequest(sessionID)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	NotifyGenerationStatus(sessionID, GenerationPending, nil)

	result, err := h.PromptService.Generate(c.Request.Context(), req)
	if err != nil {
		NotifyGenerationStatus(sessionID, GenerationFailed, map[string]interface{}{
			"error": appErrorMessage(err),
		})
		h.Response.AppError(c, err)
		return
	}

	NotifyGenerationStatus(sessionID, GenerationDone, nil)
	utils.NewAPIMetrics().RecordGeneration(sessionID, string(req.Mode))

	h.Response.Success(c, result, "提示词生成成功")
}

// GetMetrics 获取运行指标
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetMetricsCollector().GetMetrics(), "指标获取成功")
}

// ========================================
// 建议接口
// ========================================

// SuggestScenario 主题 → 场景描述
func (h *Handler) SuggestScenario(c *gin.Context) {
	var req struct {
		Theme string `json:"theme"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	scenario, err := h.SuggestionService.ScenarioFromTheme(c.Request.Context(), req.Theme)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	utils.NewAPIMetrics().RecordSuggestion("scenario")
	h.Response.Success(c, gin.H{"scenario": scenario})
}

// SuggestNarratorDetails 场景 → 旁白者细节
func (h *Handler) SuggestNarratorDetails(c *gin.Context) {
	var req struct {
		Scenario string `json:"scenario"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	details, err := h.SuggestionService.NarratorDetailsFromScenario(c.Request.Context(), req.Scenario)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	utils.NewAPIMetrics().RecordSuggestion("narrator_details")
	h.Response.Success(c, details)
}

// SuggestImageTouch 角色名称+人设 → 表演风格备注
func (h *Handler) SuggestImageTouch(c *gin.Context) {
	var req struct {
		Name    string `json:"name"`
		Persona string `json:"persona"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	notes, err := h.SuggestionService.PerformanceNotesFromCharacter(c.Request.Context(), req.Name, req.Persona)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	utils.NewAPIMetrics().RecordSuggestion("image_touch")
	h.Response.Success(c, gin.H{"image_touch": notes})
}

// ========================================
// 设置和LLM状态
// ========================================

// GetSettings 获取当前设置
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	llmConfig := make(map[string]interface{})
	if cfg.LLMConfig != nil {
		llmConfig["model"] = cfg.LLMConfig["default_model"]
		llmConfig["has_api_key"] = cfg.LLMConfig["api_key"] != ""
	}

	data := map[string]interface{}{
		"llm_provider": cfg.LLMProvider,
		"debug_mode":   cfg.DebugMode,
		"port":         cfg.Port,
		"llm_config":   llmConfig,
	}

	h.Response.Success(c, data, "设置获取成功")
}

// SaveSettings 保存LLM提供商设置并热更新服务
func (h *Handler) SaveSettings(c *gin.Context) {
	var request struct {
		LLMProvider string            `json:"llm_provider"`
		LLMConfig   map[string]string `json:"llm_config"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	if request.LLMProvider == "" || request.LLMConfig == nil {
		h.Response.BadRequest(c, "缺少提供商或配置")
		return
	}

	if err := config.UpdateLLMConfig(request.LLMProvider, request.LLMConfig); err != nil {
		h.Response.InternalError(c, "保存LLM配置失败", err.Error())
		return
	}

	// 更新 LLMService
	container := di.GetContainer()
	if llmService, ok := container.Get("llm").(*services.LLMService); ok {
		if err := llmService.UpdateProvider(request.LLMProvider, request.LLMConfig); err != nil {
			h.Response.Error(c, http.StatusPartialContent, "CONFIG_UPDATED_LLM_FAILED",
				"配置已保存，但LLM服务更新失败", err.Error())
			return
		}
	}

	h.Response.Success(c, nil, "设置保存成功")
}

// TestConnection 连接测试
func (h *Handler) TestConnection(c *gin.Context) {
	if !h.LLMService.IsReady() {
		h.Response.ServiceUnavailable(c, ErrorConnectionFailed,
			"LLM服务未就绪", h.LLMService.GetReadyState())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	_, err := h.LLMService.Complete(ctx, llm.CompletionRequest{
		Prompt:      "Hello",
		Temperature: 0.1,
		MaxTokens:   5,
	})
	if err != nil {
		h.Response.ServiceUnavailable(c, "CONNECTION_TEST_FAILED",
			"连接测试失败", err.Error())
		return
	}

	data := map[string]interface{}{
		"provider": h.LLMService.GetProviderName(),
		"status":   "connected",
		"test":     "passed",
	}
	h.Response.Success(c, data, "连接测试成功")
}

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	statusConfig := map[string]interface{}{
		"provider":    cfg.LLMProvider,
		"has_api_key": cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] != "",
	}
	if cfg.LLMConfig != nil {
		if model, ok := cfg.LLMConfig["default_model"]; ok {
			statusConfig["model"] = model
		}
	}

	status := map[string]interface{}{
		"ready":    h.LLMService.IsReady(),
		"status":   h.LLMService.GetReadyState(),
		"provider": h.LLMService.GetProviderName(),
		"config":   statusConfig,
	}

	c.JSON(http.StatusOK, status)
}

// GetLLMModels 获取指定LLM提供商支持的模型列表
func (h *Handler) GetLLMModels(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" {
		h.Response.BadRequest(c, "缺少提供商参数")
		return
	}

	modelList := llm.GetSupportedModelsForProvider(provider)

	if len(modelList) == 0 {
		providerExists := false
		for _, p := range llm.ListProviders() {
			if p == provider {
				providerExists = true
				break
			}
		}
		if !providerExists {
			h.Response.BadRequest(c, "不支持的LLM提供商: "+provider)
			return
		}
	}

	h.Response.Success(c, gin.H{
		"provider": provider,
		"models":   modelList,
		"count":    len(modelList),
	})
}

// ========================================
// WebSocket 和健康检查
// ========================================

// SessionWebSocket 处理会话状态 WebSocket 连接
func (h *Handler) SessionWebSocket(c *gin.Context) {
	h.WebSocketHandler.SessionWebSocket(c)
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := wsManager.GetStatus()
	status["ping_timeout_seconds"] = int(wsManager.pingTimeout.Seconds())
	status["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, status)
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"llm_ready": h.LLMService.IsReady(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
