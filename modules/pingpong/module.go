package pingpong

import (
	"context"
	"fmt"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

const pingEventName = "cmd_ping"

// Module replies with "pong!" when a message matches the /ping trigger.
type Module struct{}

// New creates a ping-pong module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "pingpong"
}

// Register contributes the ping trigger rule to a registration.
func (m *Module) Register(registration *tessen.Registration) {
	registration.Rules = append(registration.Rules, tessen.RuleSpec{
		Name:    pingEventName,
		Pattern: `^/ping(@\w+)?$`,
		Flags:   "i",
		Handler: m.handlePing,
	})
}

func (m *Module) handlePing(ctx context.Context, bot *botapi.Client, msg *tessen.Message) error {
	if msg == nil || msg.Payload == nil || msg.Payload.Chat == nil {
		return nil
	}

	_, err := bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:           msg.Payload.Chat.ID,
		Text:             "pong!",
		ReplyToMessageID: msg.Payload.MessageID,
	})
	if err != nil {
		return fmt.Errorf("pingpong send pong message: %w", err)
	}

	return nil
}
