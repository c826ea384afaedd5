package forwarddigest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

// Module consumes aggregated self-forward batches and answers each batch
// with a digest of what was collected, including resolved attachment URLs.
type Module struct {
	logger *slog.Logger
}

// New creates a forward-digest module logging through the given logger.
func New(logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}

	return &Module{logger: logger}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "forwarddigest"
}

// Register installs this module as the aggregated-forwards consumer.
func (m *Module) Register(registration *tessen.Registration) {
	registration.Forwards = m.handleBatch
}

func (m *Module) handleBatch(ctx context.Context, bot *botapi.Client, batch []*tessen.Message) error {
	if len(batch) == 0 {
		return nil
	}
	first := batch[0]
	if first.Payload == nil || first.Payload.Chat == nil {
		return nil
	}

	m.logger.InfoContext(ctx, "forward batch flushed",
		"chat_id", first.ChatID,
		"size", len(batch),
	)

	_, err := bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID: first.Payload.Chat.ID,
		Text:   renderDigest(batch),
	})
	if err != nil {
		return fmt.Errorf("forwarddigest send digest message: %w", err)
	}

	return nil
}

// renderDigest summarizes a batch in arrival order, one line per message.
func renderDigest(batch []*tessen.Message) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Collected %d forwarded message(s):", len(batch)))
	for index, msg := range batch {
		builder.WriteString(fmt.Sprintf("\n%d. %s", index+1, describe(msg)))
	}

	return builder.String()
}

// describe renders one batched message: its text when present, otherwise the
// content kind plus any resolved attachment locations.
func describe(msg *tessen.Message) string {
	if text := msg.Text(); text != "" {
		return text
	}

	parts := []string{string(msg.Kind)}
	for _, attachment := range msg.Attachments {
		if attachment.File != nil {
			parts = append(parts, attachment.File.URL)
		}
	}

	return strings.Join(parts, " ")
}
