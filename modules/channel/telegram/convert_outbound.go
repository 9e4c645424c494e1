package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/pkg/message"
)

// sendOutbound sends an OutboundMessage through the Telegram API. It splits
// the message if needed and dispatches each block by type.
func (t *Telegram) sendOutbound(ctx context.Context, msg message.OutboundMessage) error {
	chunks := channel.SplitMessage(msg, channel.ChunkConfig{
		MaxLength:      t.config.MaxMessageLength,
		PreserveBlocks: true,
	})

	chatID, err := strconv.ParseInt(msg.Chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", msg.Chat.ID, err)
	}

	for _, chunk := range chunks {
		if err := t.sendChunk(ctx, chunk, chatID); err != nil {
			return err
		}
	}

	return nil
}

// sendChunk dispatches a single chunk's blocks to the appropriate Telegram
// API methods. Fail-fast: if any block send fails, remaining blocks are
// skipped so partial delivery is never reported as success.
func (t *Telegram) sendChunk(ctx context.Context, chunk message.OutboundMessage, chatID int64) error {
	replyToID := parseOptionalInt(chunk.ReplyToID, t.logger)
	parseMode := resolveParseMode(chunk.Hints)
	disablePreview := false
	disableNotification := false

	if chunk.Hints != nil {
		disablePreview = chunk.Hints.DisablePreview
		disableNotification = chunk.Hints.DisableNotification
	}

	for _, block := range chunk.Blocks {
		var err error

		switch block.Type {
		case message.BlockText:
			_, err = t.client.SendMessage(ctx, SendMessageRequest{
				ChatID:                chatID,
				Text:                  block.Text,
				ParseMode:             parseMode,
				ReplyToMessageID:      replyToID,
				DisableWebPagePreview: disablePreview,
				DisableNotification:   disableNotification,
			})

		case message.BlockImage:
			_, err = t.client.SendPhoto(ctx, SendPhotoRequest{
				ChatID:              chatID,
				Photo:               block.URL,
				Caption:             block.Caption,
				ParseMode:           parseMode,
				ReplyToMessageID:    replyToID,
				DisableNotification: disableNotification,
			})

		default:
			// Skip unsupported block types.
			continue
		}

		if err != nil {
			return fmt.Errorf("telegram: send %s block: %w", block.Type, err)
		}
	}

	return nil
}

// resolveParseMode returns the parse mode from hints. Empty means plain
// text, which is also what the relay's delivery retry falls back to.
func resolveParseMode(hints *message.OutboundHints) string {
	if hints != nil && hints.ParseMode != "" {
		return hints.ParseMode
	}
	return ""
}

// parseOptionalInt converts a string to int, returning 0 for empty strings.
func parseOptionalInt(s string, logger *slog.Logger) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Warn("parseOptionalInt: invalid integer value",
			"value", s,
			"error", err,
		)
		return 0
	}
	return v
}
