// internal/models/prompt.go
package models

import (
	"strconv"
	"strings"
)

// SpeechMode 朗读模式，决定请求形状和输出schema
type SpeechMode string

const (
	ModeNarration SpeechMode = "narration"
	ModeOneOnOne  SpeechMode = "one_on_one"
	ModeMulti     SpeechMode = "multi"
)

// IsValid 检查模式是否合法
func (m SpeechMode) IsValid() bool {
	switch m {
	case ModeNarration, ModeOneOnOne, ModeMulti:
		return true
	}
	return false
}

// IsDialogue 单对单和多人模式共用对话请求形状
func (m SpeechMode) IsDialogue() bool {
	return m == ModeOneOnOne || m == ModeMulti
}

// NarrationParams 旁白模式的表单字段
type NarrationParams struct {
	Scenario    string   `json:"scenario"`
	Persona     string   `json:"persona"`
	Emotion     string   `json:"emotion"`
	Tones       []string `json:"tones"`
	Environment string   `json:"environment"`
	// 表单原始输入，非正整数视为无约束
	Duration string `json:"duration,omitempty"`
	Sections string `json:"sections,omitempty"`
}

// Character 对话模式中的角色
type Character struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Persona string `json:"persona"`
	// ImageTouch 表演风格备注（表情、手势、妆造）
	ImageTouch string `json:"image_touch,omitempty"`
}

// IsValid 名称和人设都非空的角色才能参与提交
func (c Character) IsValid() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.Persona) != ""
}

// ScriptLine 对话模式中的一条台词
type ScriptLine struct {
	ID          string `json:"id"`
	CharacterID string `json:"character_id,omitempty"` // 空串表示未分配
	Text        string `json:"text"`
	Emotion     string `json:"emotion,omitempty"`
	Tone        string `json:"tone,omitempty"`
}

// IsSubmittable 文本为空或未分配角色的台词不参与提交
func (l ScriptLine) IsSubmittable() bool {
	return strings.TrimSpace(l.Text) != "" && l.CharacterID != ""
}

// PromptRequest 按模式区分载荷的提示词生成请求。
// 进入Builder前已完成过滤：无效角色和台词已被剔除。
type PromptRequest struct {
	Mode       SpeechMode       `json:"mode"`
	Narration  *NarrationParams `json:"narration,omitempty"`
	Scenario   string           `json:"scenario,omitempty"`
	Characters []Character      `json:"characters,omitempty"`
	Script     []ScriptLine     `json:"script,omitempty"`
	// 已解析的约束，0表示无约束
	DurationSeconds int `json:"duration_seconds,omitempty"`
	SectionCount    int `json:"section_count,omitempty"`
}

// GeneratedPrompt 归一化后的生成结果
type GeneratedPrompt struct {
	// JSON 模型返回的结构化对象（schema随模式变化）
	JSON map[string]interface{} `json:"json"`
	// Integrated 集成文本，结果的规范化人类可读形式
	Integrated string `json:"integrated_text"`
}

// NarratorDetails 旁白者细节建议，四个字段全部必填
type NarratorDetails struct {
	Persona     string `json:"persona"`
	Emotion     string `json:"emotion"`
	Tone        string `json:"tone"`
	Environment string `json:"environment"`
}

// ParsePositiveInt 解析表单中的正整数约束，
// 非数字或非正值一律按无约束处理而不是报错
func ParsePositiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// FilterCharacters 返回名称和人设都非空的角色
func FilterCharacters(characters []Character) []Character {
	valid := make([]Character, 0, len(characters))
	for _, c := range characters {
		if c.IsValid() {
			valid = append(valid, c)
		}
	}
	return valid
}

// FilterScriptLines 返回可提交的台词
func FilterScriptLines(lines []ScriptLine) []ScriptLine {
	valid := make([]ScriptLine, 0, len(lines))
	for _, l := range lines {
		if l.IsSubmittable() {
			valid = append(valid, l)
		}
	}
	return valid
}
