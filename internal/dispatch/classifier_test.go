package dispatch

import (
	"regexp"
	"testing"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

func textMessage(t *testing.T, variant tessen.Variant, mutate func(*botapi.Message)) *tessen.Message {
	t.Helper()

	payload := &botapi.Message{
		MessageID: 1,
		Chat:      &botapi.Chat{ID: 1, Type: botapi.ChatTypePrivate},
		From:      &botapi.User{ID: 42},
		Text:      "hello world",
	}
	if mutate != nil {
		mutate(payload)
	}

	msg, err := tessen.Normalize(&botapi.Update{Message: payload})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	msg.Variant = variant

	return msg
}

func mustRule(name, pattern string) tessen.Rule {
	return tessen.Rule{Name: name, Expr: regexp.MustCompile(pattern)}
}

func TestClassifyContactMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*botapi.Message)
		want   string
	}{
		{
			name: "own contact card",
			mutate: func(m *botapi.Message) {
				m.Text = ""
				m.Contact = &botapi.Contact{PhoneNumber: "+1", UserID: 42}
			},
			want: tessen.EventAuthByContact,
		},
		{
			name: "someone else's contact card",
			mutate: func(m *botapi.Message) {
				m.Text = ""
				m.Contact = &botapi.Contact{PhoneNumber: "+1", UserID: 99}
			},
			want: tessen.EventContact,
		},
		{
			name: "own contact card shared by a bot",
			mutate: func(m *botapi.Message) {
				m.Text = ""
				m.From.IsBot = true
				m.Contact = &botapi.Contact{PhoneNumber: "+1", UserID: 42}
			},
			want: tessen.EventContact,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			msg := textMessage(t, tessen.VariantMessage, testCase.mutate)
			if got := classify(msg, nil); got != testCase.want {
				t.Fatalf("event = %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestClassifyPatternRulesDominateStructuralFallback(t *testing.T) {
	t.Parallel()

	// A reply that also matches a registered rule must classify as the rule.
	msg := textMessage(t, tessen.VariantMessage, func(m *botapi.Message) {
		m.Text = "/ping"
		m.ReplyToMessage = &botapi.Message{MessageID: 7}
		m.Entities = []botapi.MessageEntity{{Type: botapi.EntityTypeBotCommand, Offset: 0, Length: 5}}
	})
	rules := []tessen.Rule{
		mustRule("cmd_status", `^/status$`),
		mustRule("cmd_ping", `^/ping$`),
	}

	if got := classify(msg, rules); got != "cmd_ping" {
		t.Fatalf("event = %s, want cmd_ping", got)
	}
}

func TestClassifyRulesMatchInRegistrationOrder(t *testing.T) {
	t.Parallel()

	msg := textMessage(t, tessen.VariantMessage, func(m *botapi.Message) { m.Text = "/ping" })
	rules := []tessen.Rule{
		mustRule("broad", `^/`),
		mustRule("narrow", `^/ping$`),
	}

	if got := classify(msg, rules); got != "broad" {
		t.Fatalf("event = %s, want broad (first registered match)", got)
	}
}

func TestClassifyTextStructuralFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant tessen.Variant
		mutate  func(*botapi.Message)
		want    string
	}{
		{
			name:    "edited text",
			variant: tessen.VariantEditedMessage,
			want:    tessen.EventEditedMessageText,
		},
		{
			name:    "reply",
			variant: tessen.VariantMessage,
			mutate:  func(m *botapi.Message) { m.ReplyToMessage = &botapi.Message{MessageID: 2} },
			want:    tessen.EventReplyToMessage,
		},
		{
			name:    "mention entity",
			variant: tessen.VariantMessage,
			mutate: func(m *botapi.Message) {
				m.Entities = []botapi.MessageEntity{{Type: botapi.EntityTypeMention, Offset: 0, Length: 5}}
			},
			want: tessen.EventMention,
		},
		{
			name:    "bot command entity",
			variant: tessen.VariantMessage,
			mutate: func(m *botapi.Message) {
				m.Entities = []botapi.MessageEntity{{Type: botapi.EntityTypeBotCommand, Offset: 0, Length: 5}}
			},
			want: tessen.EventBotCommand,
		},
		{
			name:    "edit wins over reply",
			variant: tessen.VariantEditedMessage,
			mutate:  func(m *botapi.Message) { m.ReplyToMessage = &botapi.Message{MessageID: 2} },
			want:    tessen.EventEditedMessageText,
		},
		{
			name:    "plain text",
			variant: tessen.VariantMessage,
			want:    tessen.EventText,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			msg := textMessage(t, testCase.variant, testCase.mutate)
			if got := classify(msg, nil); got != testCase.want {
				t.Fatalf("event = %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestClassifyNonTextFallsThroughToContentKind(t *testing.T) {
	t.Parallel()

	msg := textMessage(t, tessen.VariantMessage, func(m *botapi.Message) {
		m.Text = ""
		m.Sticker = &botapi.Sticker{FileID: "s1"}
	})
	// Rules apply to text messages only.
	rules := []tessen.Rule{mustRule("everything", `.*`)}

	if got := classify(msg, rules); got != string(tessen.KindSticker) {
		t.Fatalf("event = %s, want %s", got, tessen.KindSticker)
	}
}
