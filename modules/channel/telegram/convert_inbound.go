package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/quietloop/remora/pkg/message"
)

// mediaFetcher downloads a file_id's contents. Nil disables downloads, in
// which case photos are carried as reference URIs only.
type mediaFetcher func(ctx context.Context, fileID string) ([]byte, error)

// fileIDRef returns a reference URI for a Telegram file_id. This is NOT a
// download URL; the tg://file_id/ scheme signals that consumers must
// resolve it through the Bot API.
func fileIDRef(fileID string) string {
	return "tg://file_id/" + fileID
}

// convertInbound transforms a Telegram Update into a platform-agnostic
// InboundMessage.
func convertInbound(ctx context.Context, update *Update, botUsername, channelName string, fetch mediaFetcher) (message.InboundMessage, error) {
	msg := extractMessage(update)
	if msg == nil {
		return message.InboundMessage{}, fmt.Errorf("telegram: update %d contains no message", update.UpdateID)
	}

	raw, err := json.Marshal(update)
	if err != nil {
		return message.InboundMessage{}, fmt.Errorf("telegram: marshal update: %w", err)
	}

	inbound := message.InboundMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Timestamp: time.Unix(int64(msg.Date), 0),
		Channel:   channelName,
		Sender:    convertSender(msg.From),
		Chat:      convertChat(msg.Chat),
		Raw:       raw,
	}

	if msg.ReplyToMessage != nil {
		inbound.ReplyTo = convertReplyContext(msg.ReplyToMessage)
	}

	inbound.Blocks = convertBlocks(ctx, msg, fetch)
	inbound.Mentions = extractMentions(msg, botUsername)

	return inbound, nil
}

// extractMessage returns the actual message from an Update, checking
// Message and EditedMessage in order.
func extractMessage(update *Update) *Message {
	if update.Message != nil {
		return update.Message
	}
	return update.EditedMessage
}

// convertReplyContext captures the replied-to message's author and its
// text or caption, which the relay embeds as a quote in the transcript.
func convertReplyContext(msg *Message) *message.ReplyContext {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	return &message.ReplyContext{
		ID:     strconv.Itoa(msg.MessageID),
		Sender: convertSender(msg.From),
		Text:   text,
	}
}

// convertSender maps a Telegram User to a platform-agnostic Sender.
func convertSender(user *User) message.Sender {
	if user == nil {
		return message.Sender{}
	}
	displayName := user.FirstName
	if user.LastName != "" {
		displayName += " " + user.LastName
	}
	return message.Sender{
		ID:          strconv.FormatInt(user.ID, 10),
		Username:    user.Username,
		DisplayName: displayName,
		IsBot:       user.IsBot,
	}
}

// convertChat maps a Telegram Chat to a platform-agnostic Chat.
func convertChat(chat Chat) message.Chat {
	return message.Chat{
		ID:    strconv.FormatInt(chat.ID, 10),
		Type:  mapChatType(chat.Type),
		Title: chat.Title,
	}
}

// mapChatType converts Telegram chat type strings to message.ChatType.
func mapChatType(tgType string) message.ChatType {
	switch tgType {
	case "private":
		return message.ChatDM
	case "group", "supergroup":
		return message.ChatGroup
	case "channel":
		return message.ChatBroadcast
	default:
		return message.ChatGroup
	}
}

// convertBlocks builds content blocks from a Telegram message. Photos are
// downloaded through fetch so the relay can hand the bytes to the
// generative service; a failed download degrades to a reference URI.
func convertBlocks(ctx context.Context, msg *Message, fetch mediaFetcher) []message.ContentBlock {
	var blocks []message.ContentBlock

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		if fetch != nil {
			if data, err := fetch(ctx, largest.FileID); err == nil {
				blocks = append(blocks, message.NewImageDataBlock(data, "image/jpeg"))
				break
			}
		}
		blocks = append(blocks, message.NewImageBlock(fileIDRef(largest.FileID), "image/jpeg"))
	case msg.Document != nil:
		blocks = append(blocks, message.NewFileBlock(fileIDRef(msg.Document.FileID), msg.Document.MIMEType, msg.Document.FileName))
	}

	// Append caption as a text block after media blocks.
	if msg.Caption != "" {
		blocks = append(blocks, message.NewTextBlock(msg.Caption))
	}

	// If no media was found, use the text field.
	if len(blocks) == 0 && msg.Text != "" {
		blocks = append(blocks, message.NewTextBlock(msg.Text))
	}

	return blocks
}

// extractMentions scans message entities for mentions and detects bot
// mentions.
func extractMentions(msg *Message, botUsername string) *message.Mentions {
	entities := msg.Entities
	if entities == nil {
		entities = msg.CaptionEntities
	}
	if len(entities) == 0 {
		return nil
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	var mentions message.Mentions

	for _, ent := range entities {
		switch ent.Type {
		case "mention":
			// @username mentions extract the username from the text.
			username := extractEntityText(text, ent.Offset, ent.Length)
			username = strings.TrimPrefix(username, "@")
			if username != "" {
				mentions.IDs = append(mentions.IDs, username)
				if strings.EqualFold(username, botUsername) {
					mentions.IsMentioned = true
				}
			}
		case "text_mention":
			// Mentions of users without usernames carry the User object.
			if ent.User != nil {
				mentions.IDs = append(mentions.IDs, strconv.FormatInt(ent.User.ID, 10))
			}
		}
	}

	if mentions.IsEmpty() {
		return nil
	}
	return &mentions
}

// extractEntityText safely extracts a substring from text using UTF-16
// offsets. Telegram encodes entity offsets as UTF-16 code units, so the
// text must round-trip through UTF-16 to handle non-BMP characters.
func extractEntityText(text string, offset, length int) string {
	encoded := utf16.Encode([]rune(text))
	if offset >= len(encoded) {
		return ""
	}
	end := offset + length
	if end > len(encoded) {
		end = len(encoded)
	}
	return string(utf16.Decode(encoded[offset:end]))
}
