package gemini

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

func testGenConfig() generationConfig {
	return generationConfig{Temperature: 1, MaxOutputTokens: 80000, TopP: 1, TopK: 200}
}

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
	return NewClient(srv.URL, "gemini-2.5-flash", ring, testGenConfig(), srv.Client())
}

func okBody(text string) string {
	resp := generateResponse{
		Candidates: []candidate{{
			Content:      content{Parts: []part{{Text: text}}},
			FinishReason: "STOP",
		}},
		UsageMetadata: &usageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 7, TotalTokenCount: 19},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent") {
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

	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "say hello" {
		t.Errorf("request contents = %+v", gotReq.Contents)
	}
	if len(gotReq.SafetySettings) != 4 {
		t.Fatalf("safety settings count = %d, want 4", len(gotReq.SafetySettings))
	}
	for _, s := range gotReq.SafetySettings {
		if s.Threshold != "BLOCK_NONE" {
			t.Errorf("category %s threshold = %q", s.Category, s.Threshold)
		}
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 80000 || gotReq.GenerationConfig.TopK != 200 {
		t.Errorf("generationConfig = %+v", gotReq.GenerationConfig)
	}
}

func TestGenerate_KeyRotation(t *testing.T) {
	t.Parallel()
	var seen []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("key"))
		w.Write([]byte(okBody("ok")))
	}, "k1", "k2")

	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), genai.Request{Prompt: "p"}); err != nil {
			t.Fatalf("Generate[%d]: %v", i, err)
		}
	}
	want := []string{"k1", "k2", "k1"}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("call %d used key %q, want %q", i, seen[i], w)
		}
	}
}

func TestGenerate_ImageInlined(t *testing.T) {
	t.Parallel()
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
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

	parts := gotReq.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[1].InlineData == nil {
		t.Fatal("second part has no inline data")
	}
	if parts[1].InlineData.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q", parts[1].InlineData.MIMEType)
	}
	if parts[1].InlineData.Data != "/9j/" {
		t.Errorf("base64 data = %q", parts[1].InlineData.Data)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, genai.ErrRateLimit},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"internal"}}`, genai.ErrServiceDown},
		{"unavailable", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`, genai.ErrServiceDown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
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
		w.Write([]byte(`{"error":{"code":400,"message":"invalid argument"}}`))
	})
	_, err := client.Generate(context.Background(), genai.Request{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if genai.IsTransient(err) {
		t.Errorf("400 classified transient: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid argument") {
		t.Errorf("error lost API detail: %v", err)
	}
}

func TestGenerate_FilteredResponses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"prompt blocked", `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{"no candidates", `{"candidates":[]}`},
		{"safety finish", `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`},
		{"empty text", `{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"STOP"}]}`},
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

func TestGenerate_MultiPartTextJoined(t *testing.T) {
	t.Parallel()
	body, _ := json.Marshal(generateResponse{
		Candidates: []candidate{{
			Content:      content{Parts: []part{{Text: "first "}, {Text: "second"}}},
			FinishReason: "STOP",
		}},
	})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	})
	resp, err := client.Generate(context.Background(), genai.Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "first second" {
		t.Errorf("Text = %q", resp.Text)
	}
}
