package services

import (
	"context"
	"testing"

	apperrors "github.com/Corphon/VoicePromptMCP/internal/errors"
)

func TestScenarioFromTheme(t *testing.T) {
	provider := &fakeProvider{response: "  Waves crash against a lonely lighthouse.  \n"}
	svc := NewSuggestionService(newTestLLMService(provider))

	scenario, err := svc.ScenarioFromTheme(context.Background(), "the sea")
	if err != nil {
		t.Fatalf("ScenarioFromTheme failed: %v", err)
	}

	if scenario != "Waves crash against a lonely lighthouse." {
		t.Errorf("Expected trimmed passthrough, got '%s'", scenario)
	}
	if provider.lastReq.ResponseSchema != nil {
		t.Error("Scenario suggestion should be free text, no schema")
	}
}

func TestScenarioFromThemeEmptyTheme(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewSuggestionService(newTestLLMService(provider))

	_, err := svc.ScenarioFromTheme(context.Background(), "   ")
	if !apperrors.IsValidationError(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("No external call should be made, got %d", provider.calls)
	}
}

func TestNarratorDetailsFromScenario(t *testing.T) {
	provider := &fakeProvider{
		response: `{"persona":"retired lighthouse keeper","emotion":"longing","tone":"low and steady","environment":"wind and distant gulls"}`,
	}
	svc := NewSuggestionService(newTestLLMService(provider))

	details, err := svc.NarratorDetailsFromScenario(context.Background(), "A lighthouse at dusk")
	if err != nil {
		t.Fatalf("NarratorDetailsFromScenario failed: %v", err)
	}

	if details.Persona != "retired lighthouse keeper" {
		t.Errorf("Unexpected persona '%s'", details.Persona)
	}
	if provider.lastReq.ResponseSchema == nil {
		t.Error("Narrator details should be schema-constrained")
	}
}

func TestNarratorDetailsRejectsIncompleteFields(t *testing.T) {
	// 四字段接口没有宽松回退，缺字段即失败
	provider := &fakeProvider{
		response: `{"persona":"keeper","emotion":"","tone":"low","environment":"wind"}`,
	}
	svc := NewSuggestionService(newTestLLMService(provider))

	_, err := svc.NarratorDetailsFromScenario(context.Background(), "A lighthouse at dusk")
	if !apperrors.IsMalformedResponseError(err) {
		t.Fatalf("Expected malformed response error, got %v", err)
	}
}

func TestNarratorDetailsRejectsUnparsableResponse(t *testing.T) {
	provider := &fakeProvider{response: "Sure! Here are some ideas for your narrator..."}
	svc := NewSuggestionService(newTestLLMService(provider))

	_, err := svc.NarratorDetailsFromScenario(context.Background(), "A lighthouse at dusk")
	if !apperrors.IsMalformedResponseError(err) {
		t.Fatalf("Expected malformed response error, got %v", err)
	}
}

func TestPerformanceNotesFromCharacter(t *testing.T) {
	provider := &fakeProvider{response: "Keep the shoulders loose; smile through the vowels."}
	svc := NewSuggestionService(newTestLLMService(provider))

	notes, err := svc.PerformanceNotesFromCharacter(context.Background(), "Alice", "warm and nostalgic")
	if err != nil {
		t.Fatalf("PerformanceNotesFromCharacter failed: %v", err)
	}
	if notes == "" {
		t.Error("Expected non-empty performance notes")
	}
}

func TestPerformanceNotesRequiresNameAndPersona(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewSuggestionService(newTestLLMService(provider))

	if _, err := svc.PerformanceNotesFromCharacter(context.Background(), "Alice", ""); !apperrors.IsValidationError(err) {
		t.Fatalf("Expected validation error for empty persona, got %v", err)
	}
	if _, err := svc.PerformanceNotesFromCharacter(context.Background(), "", "warm"); !apperrors.IsValidationError(err) {
		t.Fatalf("Expected validation error for empty name, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("No external call should be made, got %d", provider.calls)
	}
}
