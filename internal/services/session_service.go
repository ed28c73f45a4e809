// internal/services/session_service.go
package services

import (
	"sync"
	"time"

	apperrors "github.com/Corphon/VoicePromptMCP/internal/errors"
	"github.com/Corphon/VoicePromptMCP/internal/models"
	"github.com/google/uuid"
)

// SessionService 管理表单会话的瞬态状态。
// 会话只存在于内存中，进程退出即丢弃，不做任何持久化。
type SessionService struct {
	mutex    sync.RWMutex
	sessions map[string]*models.PromptSession
}

// NewSessionService 创建会话服务
func NewSessionService() *SessionService {
	return &SessionService{
		sessions: make(map[string]*models.PromptSession),
	}
}

// CreateSession 创建一个新的表单会话
func (s *SessionService) CreateSession(mode models.SpeechMode) (*models.PromptSession, error) {
	if !mode.IsValid() {
		return nil, apperrors.NewValidationError("未知的朗读模式: "+string(mode), nil)
	}

	now := time.Now()
	session := &models.PromptSession{
		ID:         uuid.NewString(),
		Mode:       mode,
		Characters: []models.Character{},
		Script:     []models.ScriptLine{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mutex.Lock()
	s.sessions[session.ID] = session
	s.mutex.Unlock()

	return s.snapshot(session), nil
}

// GetSession 返回会话状态的副本
func (s *SessionService) GetSession(id string) (*models.PromptSession, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("会话不存在: "+id, nil)
	}
	return s.snapshot(session), nil
}

// DeleteSession 丢弃一个会话
func (s *SessionService) DeleteSession(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return apperrors.NewNotFoundError("会话不存在: "+id, nil)
	}
	delete(s.sessions, id)
	return nil
}

// UpdateNarration 更新旁白模式的表单字段
func (s *SessionService) UpdateNarration(id string, params models.NarrationParams) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		session.Narration = params
		return nil
	})
}

// UpdateDialogueSettings 更新对话模式的场景描述和时长/段落约束
func (s *SessionService) UpdateDialogueSettings(id string, scenario, duration, sections string) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		session.Scenario = scenario
		session.Duration = duration
		session.Sections = sections
		return nil
	})
}

// AddCharacter 追加一个角色并分配本地唯一ID
func (s *SessionService) AddCharacter(id string, character models.Character) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		character.ID = uuid.NewString()
		session.Characters = append(session.Characters, character)
		return nil
	})
}

// UpdateCharacter 按ID更新角色
func (s *SessionService) UpdateCharacter(id string, character models.Character) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		for i, c := range session.Characters {
			if c.ID == character.ID {
				session.Characters[i] = character
				return nil
			}
		}
		return apperrors.NewNotFoundError("角色不存在: "+character.ID, nil)
	})
}

// RemoveCharacter 删除角色，并清除所有台词上对它的引用，
// 保证不会留下悬空的角色ID
func (s *SessionService) RemoveCharacter(id string, characterID string) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		found := false
		characters := make([]models.Character, 0, len(session.Characters))
		for _, c := range session.Characters {
			if c.ID == characterID {
				found = true
				continue
			}
			characters = append(characters, c)
		}
		if !found {
			return apperrors.NewNotFoundError("角色不存在: "+characterID, nil)
		}
		session.Characters = characters

		for i, l := range session.Script {
			if l.CharacterID == characterID {
				session.Script[i].CharacterID = ""
			}
		}
		return nil
	})
}

// AddScriptLine 追加一条台词并分配本地唯一ID
func (s *SessionService) AddScriptLine(id string, line models.ScriptLine) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		if line.CharacterID != "" {
			if _, ok := session.FindCharacter(line.CharacterID); !ok {
				return apperrors.NewValidationError("台词引用了不存在的角色: "+line.CharacterID, nil)
			}
		}
		line.ID = uuid.NewString()
		session.Script = append(session.Script, line)
		return nil
	})
}

// UpdateScriptLine 按ID更新台词
func (s *SessionService) UpdateScriptLine(id string, line models.ScriptLine) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		if line.CharacterID != "" {
			if _, ok := session.FindCharacter(line.CharacterID); !ok {
				return apperrors.NewValidationError("台词引用了不存在的角色: "+line.CharacterID, nil)
			}
		}
		for i, l := range session.Script {
			if l.ID == line.ID {
				session.Script[i] = line
				return nil
			}
		}
		return apperrors.NewNotFoundError("台词不存在: "+line.ID, nil)
	})
}

// RemoveScriptLine 删除一条台词
func (s *SessionService) RemoveScriptLine(id string, lineID string) (*models.PromptSession, error) {
	return s.update(id, func(session *models.PromptSession) error {
		for i, l := range session.Script {
			if l.ID == lineID {
				session.Script = append(session.Script[:i], session.Script[i+1:]...)
				return nil
			}
		}
		return apperrors.NewNotFoundError("台词不存在: "+lineID, nil)
	})
}

// BuildPromptRequest 把会话状态组装为已过滤的提示词请求：
// 无效角色/台词被剔除，时长和段落数按正整数解析，否则视为无约束
func (s *SessionService) BuildPromptRequest(id string) (*models.PromptRequest, error) {
	s.mutex.RLock()
	session, exists := s.sessions[id]
	if !exists {
		s.mutex.RUnlock()
		return nil, apperrors.NewNotFoundError("会话不存在: "+id, nil)
	}
	snapshot := s.snapshot(session)
	s.mutex.RUnlock()

	req := &models.PromptRequest{Mode: snapshot.Mode}

	if snapshot.Mode == models.ModeNarration {
		narration := snapshot.Narration
		req.Narration = &narration
		req.DurationSeconds = models.ParsePositiveInt(narration.Duration)
		req.SectionCount = models.ParsePositiveInt(narration.Sections)
		return req, nil
	}

	req.Scenario = snapshot.Scenario
	req.Characters = models.FilterCharacters(snapshot.Characters)
	req.Script = models.FilterScriptLines(snapshot.Script)
	req.DurationSeconds = models.ParsePositiveInt(snapshot.Duration)
	req.SectionCount = models.ParsePositiveInt(snapshot.Sections)
	return req, nil
}

// update 在写锁内应用一次变更并刷新更新时间
func (s *SessionService) update(id string, fn func(*models.PromptSession) error) (*models.PromptSession, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("会话不存在: "+id, nil)
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	session.UpdatedAt = time.Now()
	return s.snapshot(session), nil
}

// snapshot 返回会话的深拷贝，避免调用方持有内部切片
func (s *SessionService) snapshot(session *models.PromptSession) *models.PromptSession {
	copied := *session
	copied.Characters = append([]models.Character{}, session.Characters...)
	copied.Script = append([]models.ScriptLine{}, session.Script...)
	return &copied
}
