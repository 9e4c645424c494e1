package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quietloop/remora/internal/genai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, keys ...string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if len(keys) == 0 {
		keys = []string{"test-key"}
	}
	ring, err := genai.NewKeyRing(keys)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	cfg := Config{BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 4096}
	return NewClient(cfg, ring, srv.Client())
}

func okBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
		"usage": chatUsage{PromptTokens: 12, CompletionTokens: 7, TotalTokens: 19},
	})
	return string(b)
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()
	var gotReq chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(okBody("hello there")))
	})

	resp, err := client.Generate(context.Background(), genai.Request{Prompt: "say hello"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "hello there" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 19 || resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if gotReq.Model != "gpt-4o-mini" || gotReq.MaxTokens != 4096 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Messages[0].Content != "say hello" {
		t.Errorf("content = %v", gotReq.Messages[0].Content)
	}
}

func TestGenerate_KeyRotation(t *testing.T) {
	t.Parallel()
	var seen []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(okBody("ok")))
	}, "k1", "k2")

	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), genai.Request{Prompt: "p"}); err != nil {
			t.Fatalf("Generate[%d]: %v", i, err)
		}
	}
	want := []string{"Bearer k1", "Bearer k2", "Bearer k1"}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("call %d used %q, want %q", i, seen[i], w)
		}
	}
}

func TestGenerate_ImageAsDataURI(t *testing.T) {
	t.Parallel()
	var raw struct {
		Messages []struct {
			Content []contentPart `json:"content"`
		} `json:"messages"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(okBody("a cat")))
	})

	_, err := client.Generate(context.Background(), genai.Request{
		Prompt:   "what is this",
		Image:    []byte{0xFF, 0xD8, 0xFF},
		MIMEType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	parts := raw.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "what is this" {
		t.Errorf("text part = %+v", parts[0])
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL == nil {
		t.Fatalf("image part = %+v", parts[1])
	}
	if parts[1].ImageURL.URL != "data:image/jpeg;base64,/9j/" {
		t.Errorf("data URI = %q", parts[1].ImageURL.URL)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limit", http.StatusTooManyRequests, genai.ErrRateLimit},
		{"server error", http.StatusInternalServerError, genai.ErrServiceDown},
		{"bad gateway", http.StatusBadGateway, genai.ErrServiceDown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error":{"message":"nope"}}`))
			})
			_, err := client.Generate(context.Background(), genai.Request{Prompt: "p"})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Generate error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestGenerate_BadRequestNotTransient(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid model"}}`))
	})
	_, err := client.Generate(context.Background(), genai.Request{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if genai.IsTransient(err) {
		t.Errorf("400 classified transient: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid model") {
		t.Errorf("error lost API detail: %v", err)
	}
}

func TestGenerate_FilteredResponses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"content filter", `{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`},
		{"empty completion", `{"choices":[{"message":{"content":""},"finish_reason":"stop"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			_, err := client.Generate(context.Background(), genai.Request{Prompt: "p"})
			if !errors.Is(err, genai.ErrFiltered) {
				t.Errorf("Generate error = %v, want ErrFiltered", err)
			}
		})
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})
	_, err := client.Generate(context.Background(), genai.Request{Prompt: "p"})
	if !errors.Is(err, genai.ErrMalformed) {
		t.Errorf("Generate error = %v, want ErrMalformed", err)
	}
}

func TestGenerate_ExtraHeaders(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Title"); got != "remora" {
			t.Errorf("X-Title = %q", got)
		}
		w.Write([]byte(okBody("ok")))
	}))
	defer srv.Close()

	ring, _ := genai.NewKeyRing([]string{"k"})
	cfg := Config{
		BaseURL: srv.URL,
		Model:   "m",
		Headers: map[string]string{"X-Title": "remora"},
	}
	client := NewClient(cfg, ring, srv.Client())
	if _, err := client.Generate(context.Background(), genai.Request{Prompt: "p"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}
