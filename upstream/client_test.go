package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

const testKey = "sk-test-0123456789abcdef0123456789abcdef"

func completionJSON(content string) string {
	resp := ChatResponse{
		ID:      "cmpl-1",
		Object:  "chat.completion",
		Model:   "deepseek-chat",
		Choices: []Choice{{Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"}},
		Usage:   &Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestHTTPClient_ChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
			t.Errorf("Authorization = %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "deepseek-chat" || len(req.Messages) != 1 || req.Stream {
			t.Errorf("request body = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("pong")))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL + "/", APIKey: testKey})
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}

	resp, err := c.ChatCompletion(context.Background(), ChatRequest{
		Model:    "deepseek-chat",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	content, err := resp.Content()
	if err != nil || content != "pong" {
		t.Errorf("Content() = %q, %v; want pong", content, err)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestHTTPClient_APIErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid key " + testKey + " " + strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	c, _ := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, APIKey: testKey})
	_, err := c.ChatCompletion(context.Background(), ChatRequest{Model: "m"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if strings.Contains(apiErr.Body, testKey) || strings.Contains(err.Error(), testKey) {
		t.Error("API key leaked into the error")
	}
	if !strings.Contains(apiErr.Body, redactedKey) {
		t.Errorf("Body = %q, want redaction marker", apiErr.Body)
	}
	if n := utf8.RuneCountInString(apiErr.Body); n != maxErrorBody {
		t.Errorf("body length = %d, want %d", n, maxErrorBody)
	}
	if apiErr.Temporary() {
		t.Error("401 should not be temporary")
	}
}

func TestNewHTTPClient_MissingKey(t *testing.T) {
	if _, err := NewHTTPClient(HTTPConfig{BaseURL: "http://localhost", APIKey: "  "}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestAPIError_Temporary(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		if got := (&APIError{Status: tt.status}).Temporary(); got != tt.want {
			t.Errorf("Temporary(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestChatResponse_ContentEmpty(t *testing.T) {
	if _, err := (&ChatResponse{}).Content(); !errors.Is(err, ErrNoChoices) {
		t.Errorf("error = %v, want ErrNoChoices", err)
	}
}

func TestHTTPClient_RetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, APIKey: testKey})
	_, err := c.ChatCompletion(context.Background(), ChatRequest{Model: "m"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.Temporary() || apiErr.RetryAfter() != 7*time.Second {
		t.Errorf("APIError = %+v, want temporary with 7s hint", apiErr)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":                              0,
		"3":                             3 * time.Second,
		" 10 ":                          10 * time.Second,
		"-1":                            0,
		"Wed, 21 Oct 2015 07:28:00 GMT": 0,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}
