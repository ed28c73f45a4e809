// internal/services/prompt_service.go
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

// IntegratedTextFallback 模型缺失integrated_text字段时的固定替代文本。
// 缺失该字段不视为失败，这是有意的宽松处理。
const IntegratedTextFallback = "(integrated text unavailable)"

// PromptService 负责把表单状态转换为模型请求，并把模型输出归一化为稳定结果
type PromptService struct {
	llmService *LLMService
}

// NewPromptService 创建提示词服务
func NewPromptService(llmService *LLMService) *PromptService {
	return &PromptService{llmService: llmService}
}

// ValidateRequest 提交边界的本地校验，失败时不会发起任何外部调用
func (s *PromptService) ValidateRequest(req *models.PromptRequest) error {
	if req == nil {
		return apperrors.NewValidationError("请求不能为空", nil)
	}

	if !req.Mode.IsValid() {
		return apperrors.NewValidationError(fmt.Sprintf("未知的朗读模式: %s", req.Mode), nil)
	}

	if req.Mode == models.ModeNarration {
		n := req.Narration
		if n == nil {
			return apperrors.NewValidationError("旁白模式缺少参数", nil)
		}
		missing := narrationMissingFields(n)
		if len(missing) > 0 {
			return apperrors.NewValidationError("旁白模式缺少必填字段: "+strings.Join(missing, ", "), nil)
		}
		return nil
	}

	// 对话模式：至少需要一个名称和人设均非空的角色
	if len(models.FilterCharacters(req.Characters)) == 0 {
		return apperrors.NewValidationError("至少需要一个填写了名称和人设的角色", nil)
	}

	return nil
}

func narrationMissingFields(n *models.NarrationParams) []string {
	var missing []string
	if strings.TrimSpace(n.Scenario) == "" {
		missing = append(missing, "scenario")
	}
	if strings.TrimSpace(n.Persona) == "" {
		missing = append(missing, "persona")
	}
	if strings.TrimSpace(n.Emotion) == "" {
		missing = append(missing, "emotion")
	}
	if len(nonEmptyStrings(n.Tones)) == 0 {
		missing = append(missing, "tones")
	}
	if strings.TrimSpace(n.Environment) == "" {
		missing = append(missing, "environment")
	}
	return missing
}

func nonEmptyStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

// BuildRequest 把已过滤的请求确定性地转换为(指令文本, 输出schema)。
// 纯转换，无副作用。
func (s *PromptService) BuildRequest(req *models.PromptRequest) (string, llm.Schema, error) {
	if err := s.ValidateRequest(req); err != nil {
		return "", nil, err
	}

	if req.Mode == models.ModeNarration {
		return buildNarrationInstruction(req), llm.NarrationSchema(), nil
	}

	return buildDialogueInstruction(req), llm.DialogueSchema(), nil
}

// buildNarrationInstruction 旁白模式：五个字段逐行标注，
// 只有正整数时长才追加"approximately N seconds"子句
func buildNarrationInstruction(req *models.PromptRequest) string {
	n := req.Narration
	tones := strings.Join(nonEmptyStrings(n.Tones), ", ")
	isEnglish := isEnglishText(n.Scenario)

	var b strings.Builder

	if isEnglish {
		b.WriteString("Create a narration voice-acting prompt from the following settings:\n\n")
		fmt.Fprintf(&b, "Scenario: %s\n", n.Scenario)
		fmt.Fprintf(&b, "Narrator persona: %s\n", n.Persona)
		fmt.Fprintf(&b, "Primary emotion: %s\n", n.Emotion)
		fmt.Fprintf(&b, "Vocal tones: %s\n", tones)
		fmt.Fprintf(&b, "Environment: %s\n", n.Environment)

		if req.DurationSeconds > 0 {
			fmt.Fprintf(&b, "\nThe narration should run for approximately %d seconds.\n", req.DurationSeconds)
		}
		if req.SectionCount > 0 {
			fmt.Fprintf(&b, "Structure the narration into %d sections.\n", req.SectionCount)
		}

		b.WriteString("\nWrite the narration content in the narrator's voice, true to the emotion and tones above.\n")
		b.WriteString("Render the complete prompt as a single readable piece in the integrated_text field.")
	} else {
		b.WriteString("根据以下设定创建一段旁白配音提示词:\n\n")
		fmt.Fprintf(&b, "场景: %s\n", n.Scenario)
		fmt.Fprintf(&b, "旁白者人设: %s\n", n.Persona)
		fmt.Fprintf(&b, "主要情绪: %s\n", n.Emotion)
		fmt.Fprintf(&b, "声音语调: %s\n", tones)
		fmt.Fprintf(&b, "环境描述: %s\n", n.Environment)

		if req.DurationSeconds > 0 {
			fmt.Fprintf(&b, "\n旁白时长控制在大约%d秒。\n", req.DurationSeconds)
		}
		if req.SectionCount > 0 {
			fmt.Fprintf(&b, "旁白内容分为%d个段落。\n", req.SectionCount)
		}

		b.WriteString("\n以旁白者的口吻撰写旁白内容，忠于上述情绪和语调。\n")
		b.WriteString("在integrated_text字段中将完整提示词渲染为一段可直接阅读的文本。")
	}

	return b.String()
}

// buildDialogueInstruction 对话模式。有效台词存在时进入"整理既有剧本"子模式，
// 用户台词必须逐字保留；否则进入"从零生成"子模式，由模型创作完整剧本。
func buildDialogueInstruction(req *models.PromptRequest) string {
	characters := models.FilterCharacters(req.Characters)
	lines := models.FilterScriptLines(req.Script)
	isEnglish := isEnglishText(req.Scenario)

	nameByID := make(map[string]string, len(characters))
	for _, c := range characters {
		nameByID[c.ID] = c.Name
	}

	var b strings.Builder

	if isEnglish {
		if len(lines) > 0 {
			b.WriteString("Format the following dialogue script into a polished voice-acting prompt.\n\n")
		} else {
			b.WriteString("Create a complete dialogue script for a voice-acting prompt.\n\n")
		}

		fmt.Fprintf(&b, "Scenario: %s\n\n", req.Scenario)

		b.WriteString("Characters:\n")
		for _, c := range characters {
			fmt.Fprintf(&b, "- %s: %s", c.Name, c.Persona)
			if strings.TrimSpace(c.ImageTouch) != "" {
				fmt.Fprintf(&b, " (performance notes: %s)", c.ImageTouch)
			}
			b.WriteString("\n")
		}

		if len(lines) > 0 {
			b.WriteString("\nScript:\n")
			for i, l := range lines {
				fmt.Fprintf(&b, "%d. %s: \"%s\"", i+1, nameByID[l.CharacterID], l.Text)
				writeLineAnnotation(&b, l, true)
				b.WriteString("\n")
			}
			b.WriteString("\nKeep every provided line and its character assignment exactly as written; refine only the surrounding descriptive language.\n")
		} else {
			b.WriteString("\nInvent the full script: every line with its character, emotion and tone, fitting the scenario and personas above.\n")
		}

		writeDialogueConstraints(&b, req, true)
		b.WriteString("Render the complete prompt as a single readable piece in the integrated_text field.")
	} else {
		if len(lines) > 0 {
			b.WriteString("将以下对话剧本整理为一份完整的配音提示词。\n\n")
		} else {
			b.WriteString("为配音提示词创作一份完整的对话剧本。\n\n")
		}

		fmt.Fprintf(&b, "场景: %s\n\n", req.Scenario)

		b.WriteString("角色列表:\n")
		for _, c := range characters {
			fmt.Fprintf(&b, "- %s: %s", c.Name, c.Persona)
			if strings.TrimSpace(c.ImageTouch) != "" {
				fmt.Fprintf(&b, " (表演备注: %s)", c.ImageTouch)
			}
			b.WriteString("\n")
		}

		if len(lines) > 0 {
			b.WriteString("\n剧本台词:\n")
			for i, l := range lines {
				fmt.Fprintf(&b, "%d. %s: \"%s\"", i+1, nameByID[l.CharacterID], l.Text)
				writeLineAnnotation(&b, l, false)
				b.WriteString("\n")
			}
			b.WriteString("\n必须逐字保留每条台词及其角色分配，只允许润色台词之外的描述性语言。\n")
		} else {
			b.WriteString("\n由你创作完整剧本：每条台词都要标注角色、情绪和语调，并贴合上述场景与人设。\n")
		}

		writeDialogueConstraints(&b, req, false)
		b.WriteString("在integrated_text字段中将完整提示词渲染为一段可直接阅读的文本。")
	}

	return b.String()
}

func writeLineAnnotation(b *strings.Builder, l models.ScriptLine, isEnglish bool) {
	emotion := strings.TrimSpace(l.Emotion)
	tone := strings.TrimSpace(l.Tone)
	if emotion == "" && tone == "" {
		return
	}

	var parts []string
	if isEnglish {
		if emotion != "" {
			parts = append(parts, "emotion: "+emotion)
		}
		if tone != "" {
			parts = append(parts, "tone: "+tone)
		}
	} else {
		if emotion != "" {
			parts = append(parts, "情绪: "+emotion)
		}
		if tone != "" {
			parts = append(parts, "语调: "+tone)
		}
	}
	fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
}

func writeDialogueConstraints(b *strings.Builder, req *models.PromptRequest, isEnglish bool) {
	if isEnglish {
		if req.DurationSeconds > 0 {
			fmt.Fprintf(b, "The full performance should run for approximately %d seconds.\n", req.DurationSeconds)
		}
		if req.SectionCount > 0 {
			fmt.Fprintf(b, "Structure the dialogue into %d sections.\n", req.SectionCount)
		}
	} else {
		if req.DurationSeconds > 0 {
			fmt.Fprintf(b, "整段表演时长控制在大约%d秒。\n", req.DurationSeconds)
		}
		if req.SectionCount > 0 {
			fmt.Fprintf(b, "对话内容分为%d个段落。\n", req.SectionCount)
		}
	}
}

func promptSystemPrompt(isEnglish bool) string {
	if isEnglish {
		return "You are a professional voice-acting director. Produce speech prompts that are vivid, performable, and faithful to the requested emotion, tone, and setting."
	}
	return "你是一名专业的配音导演。输出的提示词要生动、可表演，并忠于要求的情绪、语调和场景设定。"
}

// NormalizeResponse 把模型的原始文本响应归一化为GeneratedPrompt。
// 整体解析失败报MalformedResponseError；仅缺失integrated_text时用固定替代文本继续。
func (s *PromptService) NormalizeResponse(raw string) (*models.GeneratedPrompt, error) {
	cleaned := cleanJSONString(raw)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, apperrors.NewMalformedResponseError(
			fmt.Sprintf("解析模型响应失败: %v", err), err)
	}

	integrated := IntegratedTextFallback
	if v, ok := parsed["integrated_text"].(string); ok && strings.TrimSpace(v) != "" {
		integrated = v
	}

	return &models.GeneratedPrompt{
		JSON:       parsed,
		Integrated: integrated,
	}, nil
}

// Generate 校验 → 构建 → 调用模型 → 归一化。
// 失败一律不自动重试，错误类型区分校验/外部服务/响应格式。
func (s *PromptService) Generate(ctx context.Context, req *models.PromptRequest) (*models.GeneratedPrompt, error) {
	instruction, schema, err := s.BuildRequest(req)
	if err != nil {
		return nil, err
	}

	scenario := req.Scenario
	if req.Mode == models.ModeNarration && req.Narration != nil {
		scenario = req.Narration.Scenario
	}

	resp, err := s.llmService.Complete(ctx, llm.CompletionRequest{
		Prompt:         instruction,
		SystemPrompt:   promptSystemPrompt(isEnglishText(scenario)),
		Temperature:    0.7,
		ResponseSchema: schema,
	})
	if err != nil {
		return nil, apperrors.NewExternalServiceError(apperrors.ExternalServiceMessage(err), err)
	}

	return s.NormalizeResponse(resp.Text)
}
