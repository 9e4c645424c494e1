package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/quietloop/remora/internal/genai"
	"github.com/quietloop/remora/internal/transcript"
)

// User-facing failure messages. The raw error never reaches the chat.
const (
	apologyFiltered  = "Sorry, I can't answer that one."
	apologyTransient = "I'm a bit overloaded right now, try me again in a minute."
	apologyFatal     = "Something went wrong on my end, sorry."
)

// Placeholder texts recorded in the transcript for failed attempts, so
// later prompts know a reply was attempted.
const (
	placeholderFiltered  = "(the reply was blocked)"
	placeholderTransient = "(no reply: service busy)"
	placeholderFatal     = "(no reply: internal error)"
)

// Outcome is the result of one Gateway.Respond call.
type Outcome struct {
	// Text is what gets delivered to the chat: the generated reply on
	// success, a fixed apology otherwise.
	Text string

	// Entry is the agent-authored transcript record of this attempt.
	Entry transcript.Entry

	// OK reports whether generation succeeded.
	OK bool

	// Record reports whether Entry should be appended. False only when
	// the call was abandoned by shutdown.
	Record bool

	// Usage carries token accounting for status reporting.
	Usage genai.TokenUsage
}

// Gateway issues generative-service calls. For the duration of each call it
// runs a liveness loop emitting a typing signal at a fixed interval; the
// loop is cancelled and joined before Respond returns, so no signal can
// fire after the outcome is produced.
type Gateway struct {
	generator genai.Generator
	interval  time.Duration
	logger    *slog.Logger
}

// NewGateway creates a Gateway. interval <= 0 falls back to 4 seconds.
func NewGateway(gen genai.Generator, interval time.Duration, logger *slog.Logger) (*Gateway, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}
	if interval <= 0 {
		interval = 4 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{generator: gen, interval: interval, logger: logger}, nil
}

// Respond sends the request and classifies the result. typing, when
// non-nil, is invoked immediately and then once per interval until the
// call settles; errors from it are advisory and swallowed by the caller's
// closure.
func (g *Gateway) Respond(ctx context.Context, req genai.Request, typing func(context.Context)) Outcome {
	liveCtx, cancelLive := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if typing == nil {
			return
		}
		typing(liveCtx)
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-liveCtx.Done():
				return
			case <-ticker.C:
				typing(liveCtx)
			}
		}
	}()

	start := time.Now()
	resp, err := g.generator.Generate(ctx, req)
	metricGenerateDuration.Observe(time.Since(start).Seconds())

	// Stop the liveness loop and wait for it to exit before classifying.
	cancelLive()
	<-done

	return g.classify(ctx, resp, err)
}

func (g *Gateway) classify(ctx context.Context, resp genai.Response, err error) Outcome {
	now := time.Now()
	entry := transcript.Entry{FromAgent: true, DisplayName: agentName, Timestamp: now}

	switch {
	case err == nil:
		text := NormalizeOutput(resp.Text)
		if text == "" {
			// The final-character strip can empty a degenerate reply;
			// treat it like a safety block rather than sending nothing.
			metricRepliesTotal.WithLabelValues("filtered").Inc()
			entry.Text = placeholderFiltered
			return Outcome{Text: apologyFiltered, Entry: entry, Record: true, Usage: resp.Usage}
		}
		metricRepliesTotal.WithLabelValues("ok").Inc()
		entry.Text = text
		return Outcome{Text: text, Entry: entry, OK: true, Record: true, Usage: resp.Usage}

	case ctx.Err() != nil:
		// Shutdown or upstream cancellation: nothing to deliver, nothing
		// to record.
		return Outcome{}

	case errors.Is(err, genai.ErrFiltered):
		metricRepliesTotal.WithLabelValues("filtered").Inc()
		g.logger.Warn("relay: reply filtered", "model", g.generator.ModelName())
		entry.Text = placeholderFiltered
		return Outcome{Text: apologyFiltered, Entry: entry, Record: true, Usage: resp.Usage}

	case genai.IsTransient(err):
		metricRepliesTotal.WithLabelValues("transient").Inc()
		g.logger.Warn("relay: transient generation failure", "error", err)
		entry.Text = placeholderTransient
		return Outcome{Text: apologyTransient, Entry: entry, Record: true}

	default:
		metricRepliesTotal.WithLabelValues("fatal").Inc()
		g.logger.Error("relay: generation failed", "error", err)
		entry.Text = placeholderFatal
		return Outcome{Text: apologyFatal, Entry: entry, Record: true}
	}
}

// NormalizeOutput applies the template's output contract: the final rune is
// dropped (the template asks the model to end every reply with a terminator
// token) and runs of double spaces collapse to single spaces.
func NormalizeOutput(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}
	s = string(runes[:len(runes)-1])
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
