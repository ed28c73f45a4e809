package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/Corphon/VoicePromptMCP/internal/errors"
	"github.com/Corphon/VoicePromptMCP/internal/llm"
	"github.com/Corphon/VoicePromptMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// stubProvider 以固定响应或错误实现llm.Provider
type stubProvider struct {
	response string
	err      error
}

func (p *stubProvider) Initialize(config map[string]string) error      { return nil }
func (p *stubProvider) GetName() string                                { return "stub" }
func (p *stubProvider) GetSupportedModels() []string                   { return []string{"stub-model"} }
func (p *stubProvider) FetchAvailableModels(ctx context.Context) error { return nil }

func (p *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.response, ModelName: req.Model}, nil
}

var stubCounter int

func newTestRouter(provider llm.Provider) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)

	stubCounter++
	name := fmt.Sprintf("stub-%d", stubCounter)
	llm.Register(name, func() llm.Provider { return provider })

	llmService := services.NewEmptyLLMService()
	if err := llmService.UpdateProvider(name, nil); err != nil {
		panic(err)
	}

	sessionService := services.NewSessionService()
	handler := NewHandler(
		sessionService,
		services.NewPromptService(llmService),
		services.NewSuggestionService(llmService),
		llmService,
	)

	r := gin.New()
	r.Use(RequestIDMiddleware())

	api := r.Group("/api")
	{
		api.POST("/sessions", handler.CreateSession)
		api.GET("/sessions/:id", handler.GetSession)
		api.POST("/sessions/:id/characters", handler.AddCharacter)
		api.DELETE("/sessions/:id/characters/:cid", handler.RemoveCharacter)
		api.POST("/sessions/:id/lines", handler.AddScriptLine)
		api.POST("/sessions/:id/generate", handler.GeneratePrompt)
		api.POST("/suggest/scenario", handler.SuggestScenario)
		api.POST("/suggest/narrator", handler.SuggestNarratorDetails)
	}
	r.GET("/health", handler.Health)

	return r, handler
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode request body failed: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) *APIResponse {
	t.Helper()

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode response failed: %v\nbody: %s", err, w.Body.String())
	}
	return &resp
}

func createTestSession(t *testing.T, r *gin.Engine, mode string) string {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"mode": mode})
	if w.Code != http.StatusCreated {
		t.Fatalf("CreateSession returned %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data, _ := resp.Data.(map[string]interface{})
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatal("Session response should carry an id")
	}
	return id
}

func TestSessionEndpoints(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{})

	id := createTestSession(t, r, "one_on_one")

	w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GetSession returned %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/sessions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorNotFound {
		t.Errorf("Expected NOT_FOUND error code, got %+v", resp.Error)
	}
}

func TestCreateSessionRejectsInvalidMode(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{})

	w := doJSON(t, r, http.MethodPost, "/api/sessions", gin.H{"mode": "opera"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGenerateEndpoint(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{
		response: `{"type":"dialogue","integrated_text":"Scene opens..."}`,
	})

	id := createTestSession(t, r, "one_on_one")

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/characters",
		gin.H{"name": "Alice", "persona": "warm"})
	if w.Code != http.StatusOK {
		t.Fatalf("AddCharacter returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Generate returned %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data, _ := resp.Data.(map[string]interface{})
	if data["integrated_text"] != "Scene opens..." {
		t.Errorf("Expected integrated text in response, got %v", data)
	}
}

func TestGenerateWithoutCharactersReturnsValidationError(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{response: "{}"})

	id := createTestSession(t, r, "multi")

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorValidationFailed {
		t.Errorf("Expected VALIDATION_FAILED, got %+v", resp.Error)
	}
}

func TestGenerateExternalErrorSurfacesMessage(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{
		err: fmt.Errorf("%s%s", apperrors.GeminiErrorMarker, `{"error":{"message":"quota exceeded"}}`),
	})

	id := createTestSession(t, r, "one_on_one")
	doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/characters",
		gin.H{"name": "Alice", "persona": "warm"})

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Message != "quota exceeded" {
		t.Errorf("Expected extracted provider message, got %+v", resp.Error)
	}
}

func TestRemoveCharacterEndpointClearsLineRefs(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{})

	id := createTestSession(t, r, "one_on_one")

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/characters",
		gin.H{"name": "Alice", "persona": "warm"})
	resp := decodeResponse(t, w)
	data, _ := resp.Data.(map[string]interface{})
	chars, _ := data["characters"].([]interface{})
	char, _ := chars[0].(map[string]interface{})
	charID, _ := char["id"].(string)

	doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/lines",
		gin.H{"character_id": charID, "text": "Hello"})

	w = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id+"/characters/"+charID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("RemoveCharacter returned %d: %s", w.Code, w.Body.String())
	}

	resp = decodeResponse(t, w)
	data, _ = resp.Data.(map[string]interface{})
	lines, _ := data["script"].([]interface{})
	if len(lines) != 1 {
		t.Fatalf("Expected line to survive, got %d", len(lines))
	}
	line, _ := lines[0].(map[string]interface{})
	if ref, _ := line["character_id"].(string); ref != "" {
		t.Errorf("Line should be unassigned after removal, got '%s'", ref)
	}
}

func TestSuggestScenarioEndpoint(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{response: "A foggy harbor at dawn."})

	w := doJSON(t, r, http.MethodPost, "/api/suggest/scenario", gin.H{"theme": "the sea"})
	if w.Code != http.StatusOK {
		t.Fatalf("SuggestScenario returned %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data, _ := resp.Data.(map[string]interface{})
	if data["scenario"] != "A foggy harbor at dawn." {
		t.Errorf("Unexpected scenario payload: %v", data)
	}
}

func TestSuggestNarratorMalformedResponse(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{response: "not json"})

	w := doJSON(t, r, http.MethodPost, "/api/suggest/narrator", gin.H{"scenario": "A harbor"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorModelResponseInvalid {
		t.Errorf("Expected MODEL_RESPONSE_INVALID, got %+v", resp.Error)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(&stubProvider{})

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Health returned %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Decode health body failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}
