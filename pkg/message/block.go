package message

import "encoding/json"

// ContentBlock is a flat union representing one piece of content inside a
// message. The Type field discriminates which fields are meaningful.
type ContentBlock struct {
	Type     BlockType       `json:"type"`
	Text     string          `json:"text,omitempty"`
	URL      string          `json:"url,omitempty"`
	MIMEType string          `json:"mime_type,omitempty"`
	FileName string          `json:"file_name,omitempty"`
	Caption  string          `json:"caption,omitempty"`
	Emoji    string          `json:"emoji,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`

	// Bytes carries the downloaded payload of an image or file block for
	// in-process consumers. It is never serialized.
	Bytes []byte `json:"-"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewImageBlock creates an image content block.
func NewImageBlock(url, mimeType string) ContentBlock {
	return ContentBlock{Type: BlockImage, URL: url, MIMEType: mimeType}
}

// NewImageDataBlock creates an image content block carrying the payload
// bytes directly.
func NewImageDataBlock(data []byte, mimeType string) ContentBlock {
	return ContentBlock{Type: BlockImage, MIMEType: mimeType, Bytes: data}
}

// NewFileBlock creates a file content block.
func NewFileBlock(url, mimeType, fileName string) ContentBlock {
	return ContentBlock{Type: BlockFile, URL: url, MIMEType: mimeType, FileName: fileName}
}

// NewReactionBlock creates a reaction content block.
func NewReactionBlock(emoji string) ContentBlock {
	return ContentBlock{Type: BlockReaction, Emoji: emoji}
}

// NewRawBlock creates a raw content block carrying opaque JSON data.
func NewRawBlock(data json.RawMessage) ContentBlock {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	return ContentBlock{Type: BlockRaw, Data: cp}
}

// textContent concatenates the text of all text blocks, separated by newlines.
func textContent(blocks []ContentBlock) string {
	var result string
	for _, b := range blocks {
		if b.Type == BlockText && b.Text != "" {
			if result != "" {
				result += "\n"
			}
			result += b.Text
		}
	}
	return result
}

// hasMedia reports whether any block is an image or file attachment.
func hasMedia(blocks []ContentBlock) bool {
	for _, b := range blocks {
		switch b.Type {
		case BlockImage, BlockFile:
			return true
		}
	}
	return false
}
