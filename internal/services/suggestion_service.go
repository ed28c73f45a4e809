// internal/services/suggestion_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/VoicePromptMCP/internal/errors"
	"github.com/Corphon/VoicePromptMCP/internal/llm"
	"github.com/Corphon/VoicePromptMCP/internal/models"
)

// SuggestionService 提供三个无状态的建议接口，
// 都是Builder/Normalizer模式的简化实例，没有schema分支
type SuggestionService struct {
	llmService *LLMService
}

// NewSuggestionService 创建建议服务
func NewSuggestionService(llmService *LLMService) *SuggestionService {
	return &SuggestionService{llmService: llmService}
}

// ScenarioFromTheme 由主题生成一段场景描述，自由文本直接透传
func (s *SuggestionService) ScenarioFromTheme(ctx context.Context, theme string) (string, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", apperrors.NewValidationError("主题不能为空", nil)
	}

	var prompt string
	if isEnglishText(theme) {
		prompt = fmt.Sprintf(`Write one vivid scenario paragraph for a speech or voice-acting prompt, based on the theme "%s".
Return only the paragraph itself, without headings or commentary.`, theme)
	} else {
		prompt = fmt.Sprintf(`围绕主题"%s"撰写一段生动的场景描述，用于朗读/配音提示词。
只返回场景段落本身，不要添加标题或说明。`, theme)
	}

	resp, err := s.llmService.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.9,
	})
	if err != nil {
		return "", apperrors.NewExternalServiceError(apperrors.ExternalServiceMessage(err), err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// NarratorDetailsFromScenario 由场景推导旁白者细节。
// schema约束输出，四个字段全部必填，任何格式问题直接报错，没有宽松回退。
func (s *SuggestionService) NarratorDetailsFromScenario(ctx context.Context, scenario string) (*models.NarratorDetails, error) {
	scenario = strings.TrimSpace(scenario)
	if scenario == "" {
		return nil, apperrors.NewValidationError("场景描述不能为空", nil)
	}

	var prompt string
	if isEnglishText(scenario) {
		prompt = fmt.Sprintf(`Given the following scenario for a narration prompt, suggest a fitting narrator persona, primary emotion, vocal tone, and environment description.

Scenario: %s`, scenario)
	} else {
		prompt = fmt.Sprintf(`根据以下旁白场景，建议合适的旁白者人设、主要情绪、声音语调和环境描述。

场景: %s`, scenario)
	}

	resp, err := s.llmService.Complete(ctx, llm.CompletionRequest{
		Prompt:         prompt,
		Temperature:    0.7,
		ResponseSchema: llm.NarratorDetailsSchema(),
	})
	if err != nil {
		return nil, apperrors.NewExternalServiceError(apperrors.ExternalServiceMessage(err), err)
	}

	cleaned := cleanJSONString(resp.Text)

	var details models.NarratorDetails
	if err := json.Unmarshal([]byte(cleaned), &details); err != nil {
		return nil, apperrors.NewMalformedResponseError(
			fmt.Sprintf("解析旁白者细节失败: %v", err), err)
	}

	if details.Persona == "" || details.Emotion == "" || details.Tone == "" || details.Environment == "" {
		return nil, apperrors.NewMalformedResponseError("旁白者细节字段不完整", nil)
	}

	return &details, nil
}

// PerformanceNotesFromCharacter 由角色名称和人设生成表演风格备注，自由文本直接透传
func (s *SuggestionService) PerformanceNotesFromCharacter(ctx context.Context, name, persona string) (string, error) {
	name = strings.TrimSpace(name)
	persona = strings.TrimSpace(persona)
	if name == "" || persona == "" {
		return "", apperrors.NewValidationError("角色名称和人设均不能为空", nil)
	}

	var prompt string
	if isEnglishText(name + " " + persona) {
		prompt = fmt.Sprintf(`Suggest brief performance-direction notes (expression, gesture, styling) for the character below, to guide an embodied vocal delivery.

Name: %s
Persona: %s

Return only the notes themselves.`, name, persona)
	} else {
		prompt = fmt.Sprintf(`为以下角色提供简短的表演指导备注（表情、手势、妆造），用于指导有形象感的配音演绎。

名称: %s
人设: %s

只返回备注内容本身。`, name, persona)
	}

	resp, err := s.llmService.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.8,
	})
	if err != nil {
		return "", apperrors.NewExternalServiceError(apperrors.ExternalServiceMessage(err), err)
	}

	return strings.TrimSpace(resp.Text), nil
}
