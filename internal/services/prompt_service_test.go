package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/Corphon/VoicePromptMCP/internal/errors"
	"github.com/Corphon/VoicePromptMCP/internal/llm"
	"github.com/Corphon/VoicePromptMCP/internal/models"
)

// fakeProvider 返回预设响应或错误，并记录调用次数
type fakeProvider struct {
	response string
	err      error
	calls    int
	lastReq  llm.CompletionRequest
}

func (f *fakeProvider) Initialize(config map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                           { return "fake" }
func (f *fakeProvider) GetSupportedModels() []string              { return []string{"fake-model"} }
func (f *fakeProvider) FetchAvailableModels(ctx context.Context) error {
	return nil
}

func (f *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.response, ModelName: req.Model}, nil
}

func newTestLLMService(p llm.Provider) *LLMService {
	s := createBaseLLMService()
	s.provider = p
	s.providerName = "fake"
	s.isReady = true
	s.readyState = "Ready"
	return s
}

func narrationRequest(duration string) *models.PromptRequest {
	return &models.PromptRequest{
		Mode: models.ModeNarration,
		Narration: &models.NarrationParams{
			Scenario:    "A stormy night at sea",
			Persona:     "weary sailor",
			Emotion:     "dread",
			Tones:       []string{"hushed"},
			Environment: "ship deck",
			Duration:    duration,
		},
		DurationSeconds: models.ParsePositiveInt(duration),
	}
}

func dialogueRequest(lines []models.ScriptLine) *models.PromptRequest {
	return &models.PromptRequest{
		Mode:     models.ModeOneOnOne,
		Scenario: "Two old friends meet at a train station",
		Characters: []models.Character{
			{ID: "char-a", Name: "Alice", Persona: "warm and nostalgic"},
			{ID: "char-b", Name: "Bob", Persona: "guarded, tired"},
		},
		Script: models.FilterScriptLines(lines),
	}
}

func TestBuildNarrationInstructionContainsLabeledFields(t *testing.T) {
	svc := NewPromptService(nil)

	instruction, schema, err := svc.BuildRequest(narrationRequest("30"))
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	for _, want := range []string{
		"A stormy night at sea",
		"weary sailor",
		"dread",
		"hushed",
		"ship deck",
		"approximately 30 seconds",
	} {
		if !strings.Contains(instruction, want) {
			t.Errorf("Instruction missing %q:\n%s", want, instruction)
		}
	}

	if schema == nil {
		t.Fatal("Expected narration schema")
	}
	required, _ := schema["required"].([]string)
	found := false
	for _, field := range required {
		if field == "integrated_text" {
			found = true
		}
	}
	if !found {
		t.Error("Narration schema should require integrated_text")
	}
}

func TestBuildNarrationDurationClauseOmitted(t *testing.T) {
	svc := NewPromptService(nil)

	for _, duration := range []string{"", "abc", "0", "-5", "3.5"} {
		instruction, _, err := svc.BuildRequest(narrationRequest(duration))
		if err != nil {
			t.Fatalf("BuildRequest failed for duration %q: %v", duration, err)
		}
		if strings.Contains(instruction, "approximately") {
			t.Errorf("Duration clause should be absent for input %q", duration)
		}
	}
}

func TestBuildNarrationMissingFieldValidation(t *testing.T) {
	svc := NewPromptService(nil)

	req := narrationRequest("30")
	req.Narration.Environment = ""

	_, _, err := svc.BuildRequest(req)
	if !apperrors.IsValidationError(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestBuildDialogueGenerateFromScratch(t *testing.T) {
	svc := NewPromptService(nil)

	// 全部台词为空或未分配角色时进入从零生成子模式
	req := dialogueRequest([]models.ScriptLine{
		{ID: "l1", CharacterID: "", Text: "orphan line"},
		{ID: "l2", CharacterID: "char-a", Text: "   "},
	})

	instruction, schema, err := svc.BuildRequest(req)
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	if !strings.Contains(instruction, "Invent the full script") {
		t.Errorf("Expected generate-from-scratch instruction, got:\n%s", instruction)
	}
	if strings.Contains(instruction, "exactly as written") {
		t.Error("Format-existing wording should be absent in generate-from-scratch mode")
	}
	if !strings.Contains(instruction, "Alice") || !strings.Contains(instruction, "Bob") {
		t.Error("Character roster should always be embedded")
	}
	if schema == nil {
		t.Fatal("Expected dialogue schema")
	}
}

func TestBuildDialogueFormatExistingScript(t *testing.T) {
	svc := NewPromptService(nil)

	req := dialogueRequest([]models.ScriptLine{
		{ID: "l1", CharacterID: "char-a", Text: "It has been ten years, hasn't it?", Emotion: "wistful", Tone: "soft"},
	})

	instruction, _, err := svc.BuildRequest(req)
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	if !strings.Contains(instruction, "exactly as written") {
		t.Errorf("Expected format-existing-script instruction, got:\n%s", instruction)
	}
	if !strings.Contains(instruction, `"It has been ten years, hasn't it?"`) {
		t.Error("Script line should appear verbatim in the instruction")
	}
	if !strings.Contains(instruction, "emotion: wistful") || !strings.Contains(instruction, "tone: soft") {
		t.Error("Line annotations should carry emotion and tone")
	}
}

func TestDialogueWithoutValidCharactersFailsBeforeCall(t *testing.T) {
	provider := &fakeProvider{response: "{}"}
	svc := NewPromptService(newTestLLMService(provider))

	req := &models.PromptRequest{
		Mode:     models.ModeMulti,
		Scenario: "An empty stage",
		Characters: []models.Character{
			{ID: "c1", Name: "NoPersona", Persona: ""},
			{ID: "c2", Name: "", Persona: "no name"},
		},
	}

	_, err := svc.Generate(context.Background(), req)
	if !apperrors.IsValidationError(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("No external call should be made, got %d calls", provider.calls)
	}
}

func TestNormalizeResponse(t *testing.T) {
	svc := NewPromptService(nil)

	raw := "```json\n" + `{"type":"narration","integrated_text":"A calm voice begins..."}` + "\n```"
	result, err := svc.NormalizeResponse(raw)
	if err != nil {
		t.Fatalf("NormalizeResponse failed: %v", err)
	}

	if result.Integrated != "A calm voice begins..." {
		t.Errorf("Expected integrated text, got '%s'", result.Integrated)
	}
	if result.JSON["type"] != "narration" {
		t.Errorf("Expected parsed type field, got '%v'", result.JSON["type"])
	}
}

func TestNormalizeResponseMissingIntegratedTextFallsBack(t *testing.T) {
	svc := NewPromptService(nil)

	result, err := svc.NormalizeResponse(`{"type":"narration"}`)
	if err != nil {
		t.Fatalf("NormalizeResponse should tolerate missing integrated_text: %v", err)
	}
	if result.Integrated != IntegratedTextFallback {
		t.Errorf("Expected fallback text, got '%s'", result.Integrated)
	}
}

func TestNormalizeResponseMalformed(t *testing.T) {
	svc := NewPromptService(nil)

	_, err := svc.NormalizeResponse("this is not json at all")
	if !apperrors.IsMalformedResponseError(err) {
		t.Fatalf("Expected malformed response error, got %v", err)
	}
}

func TestNormalizeResponseRoundTripStable(t *testing.T) {
	svc := NewPromptService(nil)

	raw := `{"type":"dialogue","script":[{"character":"Alice","line":"hi","emotion":"joy","tone":"bright"}],"integrated_text":"x"}`
	result, err := svc.NormalizeResponse(raw)
	if err != nil {
		t.Fatalf("NormalizeResponse failed: %v", err)
	}

	first, err := json.Marshal(result.JSON)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var reparsed map[string]interface{}
	if err := json.Unmarshal(first, &reparsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	second, err := json.Marshal(reparsed)
	if err != nil {
		t.Fatalf("Second marshal failed: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("Re-serialization should be byte-stable:\n%s\n%s", first, second)
	}
}

func TestGenerateSendsSchemaAndNormalizes(t *testing.T) {
	provider := &fakeProvider{response: `{"type":"narration","integrated_text":"done"}`}
	svc := NewPromptService(newTestLLMService(provider))

	result, err := svc.Generate(context.Background(), narrationRequest("30"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("Expected exactly one provider call, got %d", provider.calls)
	}
	if provider.lastReq.ResponseSchema == nil {
		t.Error("Generate should pass a response schema")
	}
	if result.Integrated != "done" {
		t.Errorf("Expected integrated text 'done', got '%s'", result.Integrated)
	}
}

func TestGenerateExternalServiceError(t *testing.T) {
	provider := &fakeProvider{
		err: fmt.Errorf("%s%s", apperrors.GeminiErrorMarker, `{"error":{"message":"quota exceeded"}}`),
	}
	svc := NewPromptService(newTestLLMService(provider))

	_, err := svc.Generate(context.Background(), narrationRequest(""))
	if !apperrors.IsExternalServiceError(err) {
		t.Fatalf("Expected external service error, got %v", err)
	}

	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		t.Fatal("Expected AppError")
	}
	if appErr.Message != "quota exceeded" {
		t.Errorf("Expected extracted message 'quota exceeded', got '%s'", appErr.Message)
	}
}
