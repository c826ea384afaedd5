package dispatch

import (
	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

// classify maps one enriched canonical message to exactly one event name.
// It is total: the fallback chain always terminates in the content-kind tag.
// Pattern rules are checked before structural heuristics so a registered
// trigger always wins over inference.
func classify(msg *tessen.Message, rules []tessen.Rule) string {
	if msg.Kind == tessen.KindContact {
		return classifyContact(msg.Payload)
	}
	if msg.Kind == tessen.KindText {
		return classifyText(msg, rules)
	}

	return string(msg.Kind)
}

// classifyContact distinguishes a sender sharing their own contact card
// (a self-verification signal) from any other shared contact.
func classifyContact(payload *botapi.Message) string {
	if payload == nil || payload.Contact == nil || payload.From == nil {
		return tessen.EventContact
	}
	if payload.Contact.UserID == payload.From.ID && !payload.From.IsBot {
		return tessen.EventAuthByContact
	}

	return tessen.EventContact
}

// classifyText scans pattern rules in registration order, then falls back to
// structural heuristics, then to the plain text tag.
func classifyText(msg *tessen.Message, rules []tessen.Rule) string {
	text := msg.Text()
	for _, rule := range rules {
		if rule.Expr.MatchString(text) {
			return rule.Name
		}
	}

	switch {
	case msg.Edited():
		return tessen.EventEditedMessageText
	case msg.Payload != nil && msg.Payload.ReplyToMessage != nil:
		return tessen.EventReplyToMessage
	case msg.HasEntity(botapi.EntityTypeMention):
		return tessen.EventMention
	case msg.HasEntity(botapi.EntityTypeBotCommand):
		return tessen.EventBotCommand
	default:
		return tessen.EventText
	}
}
