package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewGeminiClient(context.Background(), GeminiConfig{
		APIKey:  "g-test",
		Model:   "gemini-test",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestGeminiClient_Success(t *testing.T) {
	var got map[string]any
	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "g-test", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  hi  "}]}}]}`))
	})

	res := client.Complete(context.Background(), Request{System: "sys", User: "hello", Temperature: 0.3, MaxTokens: 400})
	require.Equal(t, OK, res.Kind, res.Err)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, "gemini:gemini-test", client.Name())

	assert.Contains(t, got, "contents")
	assert.Contains(t, got, "systemInstruction")
	gen, ok := got["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig missing: %v", got)
	assert.EqualValues(t, 400, gen["maxOutputTokens"])
}

func TestGeminiClient_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, QuotaExceeded},
		{"resource exhausted", http.StatusBadRequest, `{"error":{"code":400,"message":"limit","status":"RESOURCE_EXHAUSTED"}}`, QuotaExceeded},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`, Failed},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, Failed},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"   "}]}}]}`, Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			res := client.Complete(context.Background(), Request{User: "x"})
			assert.Equal(t, tt.want, res.Kind)
			assert.Error(t, res.Err)
			assert.Empty(t, res.Text)
		})
	}
}

func TestGeminiClient_NoKey(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestIsGeminiQuota(t *testing.T) {
	assert.True(t, isGeminiQuota(genai.APIError{Code: http.StatusTooManyRequests}))
	assert.True(t, isGeminiQuota(&genai.APIError{Code: http.StatusBadRequest, Status: "RESOURCE_EXHAUSTED"}))
	assert.True(t, isGeminiQuota(fmt.Errorf("wrapped: %w", genai.APIError{Code: 429})))
	assert.False(t, isGeminiQuota(genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}))
	assert.True(t, isGeminiQuota(errors.New("You exceeded your current quota")))
	assert.False(t, isGeminiQuota(errors.New("connection refused")))
}
