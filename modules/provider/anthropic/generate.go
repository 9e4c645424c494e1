package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/quietloop/remora/internal/genai"
)

// Generate implements genai.Generator. The prompt is sent as a single user
// turn; an attached image becomes an additional content block.
func (a *Anthropic) Generate(ctx context.Context, req genai.Request) (genai.Response, error) {
	blocks := []sdkanthropic.ContentBlockParamUnion{
		sdkanthropic.NewTextBlock(req.Prompt),
	}
	if len(req.Image) > 0 {
		blocks = append(blocks, sdkanthropic.NewImageBlockBase64(
			req.MIMEType,
			base64.StdEncoding.EncodeToString(req.Image),
		))
	}

	msg, err := a.client.Messages.New(ctx, sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(blocks...),
		},
	}, option.WithAPIKey(a.keys.Next()))
	if err != nil {
		return genai.Response{}, mapError(err)
	}

	if msg.StopReason == sdkanthropic.StopReasonRefusal {
		return genai.Response{}, fmt.Errorf("%w: model refused", genai.ErrFiltered)
	}

	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	if text == "" {
		return genai.Response{}, fmt.Errorf("%w: response has no text", genai.ErrFiltered)
	}

	return genai.Response{
		Text: text,
		Usage: genai.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}
