package message

import (
	"encoding/json"
	"time"
)

// InboundMessage represents a message received from a channel.
type InboundMessage struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Channel   string          `json:"channel"`
	Sender    Sender          `json:"sender"`
	Chat      Chat            `json:"chat"`
	ReplyTo   *ReplyContext   `json:"reply_to,omitempty"`
	Blocks    []ContentBlock  `json:"blocks"`
	Mentions  *Mentions       `json:"mentions,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// MarshalJSON implements json.Marshaler. It normalizes empty Mentions to nil
// so that the field is omitted from JSON output.
func (m InboundMessage) MarshalJSON() ([]byte, error) {
	if m.Mentions.IsEmpty() {
		m.Mentions = nil
	}
	type alias InboundMessage
	return json.Marshal(alias(m))
}

// TextContent returns the concatenated text of all text blocks.
// For media messages this is the caption, if any.
func (m *InboundMessage) TextContent() string {
	return textContent(m.Blocks)
}

// HasMedia reports whether the message carries an image or file attachment.
func (m *InboundMessage) HasMedia() bool {
	return hasMedia(m.Blocks)
}

// FirstImage returns the payload bytes and MIME type of the first image
// block that carries data, or nil when the message has none.
func (m *InboundMessage) FirstImage() ([]byte, string) {
	for _, b := range m.Blocks {
		if b.Type == BlockImage && len(b.Bytes) > 0 {
			return b.Bytes, b.MIMEType
		}
	}
	return nil, ""
}

// IsDirectMessage reports whether the message is a direct message.
func (m *InboundMessage) IsDirectMessage() bool {
	return m.Chat.IsDirectMessage()
}

// IsCommand reports whether the message text starts with the command prefix.
func (m *InboundMessage) IsCommand() bool {
	text := m.TextContent()
	return len(text) > 0 && text[0] == '/'
}
