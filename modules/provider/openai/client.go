package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quietloop/remora/internal/genai"
)

// Chat completions wire types.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

// chatMessage carries either a plain string or a list of content parts.
// The parts form is required when an image is attached.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// maxErrorBody caps how much of an error response body is read.
const maxErrorBody = 4096

// Client speaks the OpenAI chat completions protocol, picking a fresh key
// from the ring for every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	keys       *genai.KeyRing
	headers    map[string]string
	maxTokens  int
	temp       *float64
	topP       *float64
}

func NewClient(cfg Config, keys *genai.KeyRing, httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		keys:       keys,
		headers:    cfg.Headers,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temperature,
		topP:       cfg.TopP,
	}
}

// Generate implements genai.Generator over POST /chat/completions.
func (c *Client) Generate(ctx context.Context, req genai.Request) (genai.Response, error) {
	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return genai.Response{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return genai.Response{}, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.keys.Next())
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return genai.Response{}, ctx.Err()
		}
		return genai.Response{}, fmt.Errorf("%w: %w", genai.ErrServiceDown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return genai.Response{}, classifyHTTPError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return genai.Response{}, fmt.Errorf("%w: reading body: %w", genai.ErrServiceDown, err)
	}
	return parseResponse(body)
}

func (c *Client) buildRequest(req genai.Request) chatRequest {
	var content any = req.Prompt
	if len(req.Image) > 0 {
		dataURI := fmt.Sprintf("data:%s;base64,%s",
			req.MIMEType, base64.StdEncoding.EncodeToString(req.Image))
		content = []contentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
		}
	}
	return chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
		TopP:        c.topP,
	}
}

func classifyHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", genai.ErrRateLimit, body)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", genai.ErrServiceDown, resp.StatusCode, body)
	default:
		return fmt.Errorf("openai: HTTP %d: %s", resp.StatusCode, body)
	}
}

func parseResponse(body []byte) (genai.Response, error) {
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return genai.Response{}, fmt.Errorf("%w: %w", genai.ErrMalformed, err)
	}
	if len(cr.Choices) == 0 {
		return genai.Response{}, fmt.Errorf("%w: response has no choices", genai.ErrFiltered)
	}

	choice := cr.Choices[0]
	if choice.FinishReason == "content_filter" {
		return genai.Response{}, fmt.Errorf("%w: finish reason content_filter", genai.ErrFiltered)
	}
	if choice.Message.Content == "" {
		return genai.Response{}, fmt.Errorf("%w: empty completion", genai.ErrFiltered)
	}

	return genai.Response{
		Text: choice.Message.Content,
		Usage: genai.TokenUsage{
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			TotalTokens:      cr.Usage.TotalTokens,
		},
	}, nil
}
