package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Corphon/VoicePromptMCP/internal/llm"
)

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()

	p := &Provider{
		models:  []string{"gemini-2.5-flash"},
		baseURL: baseURL,
	}
	if err := p.Initialize(map[string]string{"api_key": "test-key"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	p.baseURL = baseURL
	return p
}

func geminiTextResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]int{
			"promptTokenCount":     10,
			"candidatesTokenCount": 20,
			"totalTokenCount":      30,
		},
	}
}

func TestCompleteTextSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("Expected generateContent path, got '%s'", r.URL.Path)
		}
		json.NewEncoder(w).Encode(geminiTextResponse("hello there"))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}
	if resp.Text != "hello there" {
		t.Errorf("Expected 'hello there', got '%s'", resp.Text)
	}
	if resp.TokensUsed != 30 {
		t.Errorf("Expected 30 tokens used, got %d", resp.TokensUsed)
	}
}

func TestCompleteTextSendsResponseSchema(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(geminiTextResponse(`{"persona":"x"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:         "hi",
		ResponseSchema: llm.NarratorDetailsSchema(),
	})
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}

	genConfig, ok := captured["generationConfig"].(map[string]any)
	if !ok {
		t.Fatal("Expected generationConfig in request body")
	}
	if genConfig["responseMimeType"] != "application/json" {
		t.Errorf("Expected responseMimeType 'application/json', got '%v'", genConfig["responseMimeType"])
	}
	if _, ok := genConfig["responseSchema"]; !ok {
		t.Error("Expected responseSchema in generationConfig")
	}
}

func TestCompleteTextOmitsSchemaForFreeText(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(geminiTextResponse("a scenario"))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}

	genConfig := captured["generationConfig"].(map[string]any)
	if _, ok := genConfig["responseSchema"]; ok {
		t.Error("responseSchema should be absent without a schema descriptor")
	}
}

func TestCompleteTextAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded","code":429}}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("Expected error for API failure")
	}
	if !strings.HasPrefix(err.Error(), ErrorMarker) {
		t.Errorf("Expected error to start with marker, got '%s'", err.Error())
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Expected error body to be preserved, got '%s'", err.Error())
	}
}

func TestCompleteTextInBandErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"invalid argument"}}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("Expected error for in-band error body")
	}
	if !strings.HasPrefix(err.Error(), ErrorMarker) {
		t.Errorf("Expected marker prefix, got '%s'", err.Error())
	}
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	p := &Provider{}
	if err := p.Initialize(map[string]string{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}
