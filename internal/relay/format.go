package relay

import (
	"strings"

	"github.com/quietloop/remora/internal/transcript"
)

const (
	// addressedMarker prefixes transcript lines that were directed at the
	// agent. Its presence is what makes a line reply-worthy, and the
	// prompt template explains it to the model.
	addressedMarker = "*** "

	// agentName is how the agent's own lines are attributed in the
	// transcript, matching the second-person voice of the prompt template.
	agentName = "You"

	// noTextSentinel stands in for messages that carry neither text nor
	// caption.
	noTextSentinel = "No Text"

	// attachmentTag marks lines whose message carried an image.
	attachmentTag = "[IMAGE ATTACHED]"

	// quoteGlue joins the head and tail fragments of a truncated quote.
	quoteGlue = " {...} "
)

// FormatEntry renders one transcript entry as a prompt line:
//
//	["*** "]["[REPLYING TO: <quote>] "]Name[ (username)]: text
//
// quoteMax bounds the embedded reply quote; see TruncateQuote.
func FormatEntry(e transcript.Entry, quoteMax int) string {
	var b strings.Builder

	if e.Addressed {
		b.WriteString(addressedMarker)
	}

	if e.HasQuote {
		quote := e.Quote
		if quote == "" {
			quote = noTextSentinel
		}
		b.WriteString("[REPLYING TO: ")
		b.WriteString(TruncateQuote(quote, quoteMax))
		b.WriteString("] ")
	}

	if e.FromAgent {
		b.WriteString(agentName)
	} else {
		b.WriteString(e.DisplayName)
		if e.Username != "" && e.Username != e.DisplayName {
			b.WriteString(" (")
			b.WriteString(e.Username)
			b.WriteString(")")
		}
	}
	b.WriteString(": ")

	switch {
	case e.Text != "" && e.HasAttachment:
		b.WriteString(e.Text)
		b.WriteString(" ")
		b.WriteString(attachmentTag)
	case e.Text != "":
		b.WriteString(e.Text)
	case e.HasAttachment:
		b.WriteString(attachmentTag)
	default:
		b.WriteString(noTextSentinel)
	}

	return b.String()
}

// FormatTranscript renders all entries as prompt lines.
func FormatTranscript(entries []transcript.Entry, quoteMax int) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, FormatEntry(e, quoteMax))
	}
	return lines
}

// TruncateQuote shortens a quoted message for embedding in a transcript
// line. Newlines are flattened to spaces. Text at or under max runes passes
// through unchanged; longer text keeps a head and a tail fragment joined by
// an ellipsis marker, each trimmed back to a word boundary when one exists
// inside the fragment.
func TruncateQuote(text string, max int) string {
	text = strings.ReplaceAll(text, "\n", " ")

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	part := max/2 - len(quoteGlue)/2
	if part < 1 {
		part = 1
	}

	head := string(runes[:part])
	if i := strings.LastIndex(head, " "); i > 0 {
		head = head[:i]
	}

	tail := string(runes[len(runes)-part:])
	if i := strings.Index(tail, " "); i >= 0 {
		tail = tail[i+1:]
	}

	return head + quoteGlue + tail
}
