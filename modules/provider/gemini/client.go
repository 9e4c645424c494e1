package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/quietloop/remora/internal/genai"
)

// maxResponseBytes caps how much of any API response body is read.
const maxResponseBytes = 10 << 20

// safetyCategories are the four categories the API accepts thresholds for.
// All are disabled: content-safety decisions belong to the service's
// non-overridable layer, and its blocks still surface as blockReason.
var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Client is a minimal Generative Language API client. Each call draws the
// next credential from the ring, so consecutive requests use different keys.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	keys       *genai.KeyRing
	genConfig  generationConfig
}

// NewClient creates a client for the given model and credential ring.
func NewClient(baseURL, model string, keys *genai.KeyRing, genCfg generationConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      model,
		keys:       keys,
		genConfig:  genCfg,
	}
}

// Generate performs a single generateContent call.
func (c *Client) Generate(ctx context.Context, req genai.Request) (genai.Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return genai.Response{}, fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.keys.Next()))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return genai.Response{}, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return genai.Response{}, fmt.Errorf("gemini: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return genai.Response{}, fmt.Errorf("gemini: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return genai.Response{}, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return parseResponse(respBody)
}

// buildRequest assembles the wire request: the prompt as a single user
// turn, with the image attached as a second inline part when present.
func (c *Client) buildRequest(req genai.Request) generateRequest {
	parts := []part{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: req.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Image),
		}})
	}

	settings := make([]safetySetting, 0, len(safetyCategories))
	for _, cat := range safetyCategories {
		settings = append(settings, safetySetting{Category: cat, Threshold: "BLOCK_NONE"})
	}

	return generateRequest{
		Contents:         []content{{Parts: parts, Role: "user"}},
		SafetySettings:   settings,
		GenerationConfig: c.genConfig,
	}
}

// classifyHTTPError maps an error status to the generator sentinels.
func classifyHTTPError(status int, body []byte) error {
	detail := errorDetail(body)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429: %s", genai.ErrRateLimit, detail)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", genai.ErrServiceDown, status, detail)
	default:
		return fmt.Errorf("gemini: HTTP %d: %s", status, detail)
	}
}

// errorDetail extracts a human-readable message from an error body,
// falling back to a truncated raw dump.
func errorDetail(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// parseResponse extracts the generated text and token usage from a 200
// response. A prompt-level block or an empty candidate list classifies as
// filtered; a body that does not decode at all classifies as malformed.
func parseResponse(body []byte) (genai.Response, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return genai.Response{}, fmt.Errorf("%w: %v", genai.ErrMalformed, err)
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return genai.Response{}, fmt.Errorf("%w: prompt blocked (%s)",
			genai.ErrFiltered, parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return genai.Response{}, fmt.Errorf("%w: no candidates", genai.ErrFiltered)
	}

	cand := parsed.Candidates[0]
	if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
		return genai.Response{}, fmt.Errorf("%w: candidate blocked (%s)",
			genai.ErrFiltered, cand.FinishReason)
	}

	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}
	if text == "" {
		return genai.Response{}, fmt.Errorf("%w: candidate has no text", genai.ErrFiltered)
	}

	resp := genai.Response{Text: text}
	if parsed.UsageMetadata != nil {
		resp.Usage = genai.TokenUsage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}
