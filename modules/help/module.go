package help

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

const helpEventName = "cmd_help"

// Module replies with command reference text when a message matches the
// /help trigger. Commands are declared at construction so the reference
// stays in sync with what the deployment actually registers.
type Module struct {
	commands map[string]string
}

// New creates a help module with the default command reference.
func New() *Module {
	return &Module{
		commands: map[string]string{
			"/ping": "reply with pong!",
			"/help": "show all available commands",
		},
	}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Register contributes the help trigger rule to a registration.
func (m *Module) Register(registration *tessen.Registration) {
	registration.Rules = append(registration.Rules, tessen.RuleSpec{
		Name:    helpEventName,
		Pattern: `^/help(@\w+)?$`,
		Flags:   "i",
		Handler: m.handleHelp,
	})
}

func (m *Module) handleHelp(ctx context.Context, bot *botapi.Client, msg *tessen.Message) error {
	if msg == nil || msg.Payload == nil || msg.Payload.Chat == nil {
		return nil
	}

	_, err := bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:           msg.Payload.Chat.ID,
		Text:             m.renderReference(),
		ReplyToMessageID: msg.Payload.MessageID,
	})
	if err != nil {
		return fmt.Errorf("help send reference message: %w", err)
	}

	return nil
}

// renderReference formats the command list in a stable order.
func (m *Module) renderReference() string {
	names := make([]string, 0, len(m.commands))
	for name := range m.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	builder.WriteString("Available commands:")
	for _, name := range names {
		builder.WriteString(fmt.Sprintf("\n%s - %s", name, m.commands[name]))
	}

	return builder.String()
}
