// Package prompt assembles the outbound prompt from a template and a
// conversation transcript. Templates are external assets, validated at load
// time and hot-swappable at runtime.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// Input carries the substitution values for one prompt rendering.
type Input struct {
	// Transcript is the joined transcript, one formatted line per entry.
	Transcript string

	// LastMessage is the formatted line the agent is replying to.
	LastMessage string

	// ChatKind describes the conversation ("group chat", "direct chat").
	ChatKind string

	// AttachmentHint is an extra instruction when the triggering message
	// carries an attachment, empty otherwise.
	AttachmentHint string

	// BotUsername is the agent's own handle, so the model can tell its
	// messages apart from the users'.
	BotUsername string
}

// requiredSlots must all be referenced by a template. AttachmentHint and
// BotUsername are optional.
var requiredSlots = []string{"Transcript", "LastMessage", "ChatKind"}

// Template is a parsed, validated prompt template.
type Template struct {
	tmpl *template.Template
	src  string
}

// Parse compiles template text and verifies every required substitution
// slot is referenced. A missing slot is a configuration error and should be
// treated as fatal at load time, not per request.
func Parse(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse template %s: %w", name, err)
	}

	t := &Template{tmpl: tmpl, src: text}
	if err := t.checkSlots(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkSlots renders the template against unique probe values and verifies
// each required slot's probe shows up in the output.
func (t *Template) checkSlots() error {
	probe := Input{
		Transcript:     "\x00transcript\x00",
		LastMessage:    "\x00last\x00",
		ChatKind:       "\x00kind\x00",
		AttachmentHint: "\x00attachment\x00",
		BotUsername:    "\x00bot\x00",
	}
	out, err := t.Render(probe)
	if err != nil {
		return fmt.Errorf("prompt: template probe render: %w", err)
	}

	probes := map[string]string{
		"Transcript":  probe.Transcript,
		"LastMessage": probe.LastMessage,
		"ChatKind":    probe.ChatKind,
	}
	for _, slot := range requiredSlots {
		if !strings.Contains(out, probes[slot]) {
			return fmt.Errorf("prompt: template missing required slot {{.%s}}", slot)
		}
	}
	return nil
}

// Render executes the template with the given input.
func (t *Template) Render(in Input) (string, error) {
	var b strings.Builder
	if err := t.tmpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("prompt: render: %w", err)
	}
	return b.String(), nil
}

// Build assembles the full outbound prompt. Pure: no side effects, no
// external calls. Template errors cannot occur here for a template that
// passed Parse, but are still propagated rather than swallowed.
func Build(t *Template, lines []string, lastLine, chatKind, botUsername string, hasAttachment bool) (string, error) {
	in := Input{
		Transcript:  strings.Join(lines, "\n"),
		LastMessage: lastLine,
		ChatKind:    chatKind,
		BotUsername: botUsername,
	}
	if hasAttachment {
		in.AttachmentHint = "The last message includes an attached image. Describe and react to its content as part of your reply."
	}
	return t.Render(in)
}
