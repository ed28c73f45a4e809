// internal/models/session.go
package models

import "time"

// PromptSession 一次表单会话的全部瞬态状态。
// 只存在于内存中，随会话结束丢弃，不做任何持久化。
type PromptSession struct {
	ID         string          `json:"id"`
	Mode       SpeechMode      `json:"mode"`
	Narration  NarrationParams `json:"narration"`
	Scenario   string          `json:"scenario"`
	// 对话模式的表单原始约束输入，非正整数视为无约束
	Duration   string          `json:"duration,omitempty"`
	Sections   string          `json:"sections,omitempty"`
	Characters []Character     `json:"characters"`
	Script     []ScriptLine    `json:"script"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// FindCharacter 按ID查找角色
func (s *PromptSession) FindCharacter(id string) (Character, bool) {
	for _, c := range s.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

// FindScriptLine 按ID查找台词
func (s *PromptSession) FindScriptLine(id string) (ScriptLine, bool) {
	for _, l := range s.Script {
		if l.ID == id {
			return l, true
		}
	}
	return ScriptLine{}, false
}
