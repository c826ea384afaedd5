package tessen

import (
	"fmt"
	"regexp"
	"strings"
)

// Structural event names produced by classification. Pattern rule names
// extend this set dynamically at registration time.
const (
	// EventText is an unmatched plain text message.
	EventText = "text"
	// EventContact is a shared contact card.
	EventContact = "contact"
	// EventAuthByContact is a sender sharing their own contact card.
	EventAuthByContact = "auth_by_contact"
	// EventEditedMessageText is an edited text message with no matching rule.
	EventEditedMessageText = "edited_message_text"
	// EventReplyToMessage is a reply with no matching rule.
	EventReplyToMessage = "reply_to_message"
	// EventMention is a text message carrying a mention entity.
	EventMention = "mention"
	// EventBotCommand is a text message carrying a bot_command entity.
	EventBotCommand = "bot_command"
	// EventMessageForwards is the aggregated self-forward batch event,
	// private scope only.
	EventMessageForwards = "message_forwards"
	// EventChannelPost is the fixed event for channel posts, public scope only.
	EventChannelPost = "channel_post"
	// EventInlineQuery is the fixed event for inline queries.
	EventInlineQuery = "inline_query"
)

// patternDelimiter marks serialized pattern keys in compatibility maps.
const patternDelimiter = "/"

// Rule is one compiled pattern rule. Rules match message text in
// registration order and their names double as dispatch keys.
type Rule struct {
	// Name is the event name dispatched when the rule matches.
	Name string
	// Expr is the compiled pattern including flag prefixes.
	Expr *regexp.Regexp
}

// RuleSpec declares one pattern rule before compilation. Flags follow the
// serialized convention: any combination of "i", "m", and "s".
type RuleSpec struct {
	Name    string
	Pattern string
	Flags   string
	Handler Handler
}

// Registration declares one registry: plain event handlers, ordered pattern
// rules, and the optional aggregated-forwards handler. Rule handlers are
// keyed by rule name.
type Registration struct {
	Handlers map[string]Handler
	Rules    []RuleSpec
	// Forwards receives flushed self-forward batches. Meaningful only on
	// the private registry.
	Forwards BatchHandler
}

// Registry maps event names to handlers and holds the ordered rule set.
// Registries are populated at construction and read-only afterward.
type Registry struct {
	handlers map[string]Handler
	rules    []Rule
	forwards BatchHandler
}

// NewRegistry validates and compiles one registration. Rule patterns are
// compiled here so malformed registrations fail construction, not dispatch.
func NewRegistry(registration Registration) (*Registry, error) {
	handlers := make(map[string]Handler, len(registration.Handlers)+len(registration.Rules))
	for event, handler := range registration.Handlers {
		if strings.TrimSpace(event) == "" {
			return nil, fmt.Errorf("new registry: empty event name")
		}
		if handler == nil {
			return nil, fmt.Errorf("new registry: event %s: nil handler", event)
		}
		handlers[event] = handler
	}

	rules := make([]Rule, 0, len(registration.Rules))
	for index, spec := range registration.Rules {
		rule, err := compileRule(spec)
		if err != nil {
			return nil, fmt.Errorf("new registry: rule %d: %w", index, err)
		}
		if _, exists := handlers[rule.Name]; exists {
			return nil, fmt.Errorf("new registry: rule %s: %w", rule.Name, ErrDuplicateEvent)
		}
		handlers[rule.Name] = spec.Handler
		rules = append(rules, rule)
	}

	return &Registry{handlers: handlers, rules: rules, forwards: registration.Forwards}, nil
}

// NewRegistryFromMap builds a registry from the legacy map form, where a key
// starting with the pattern delimiter is a serialized pattern
// ("/pattern/flags") and everything else is a plain event name. The
// serialized form is re-parsed once, here, never at dispatch time.
func NewRegistryFromMap(entries map[string]Handler) (*Registry, error) {
	registration := Registration{Handlers: make(map[string]Handler, len(entries))}
	for key, handler := range entries {
		if !strings.HasPrefix(key, patternDelimiter) {
			registration.Handlers[key] = handler
			continue
		}
		pattern, flags, err := splitSerializedPattern(key)
		if err != nil {
			return nil, fmt.Errorf("new registry from map: key %q: %w", key, err)
		}
		registration.Rules = append(registration.Rules, RuleSpec{
			Name:    key,
			Pattern: pattern,
			Flags:   flags,
			Handler: handler,
		})
	}

	return NewRegistry(registration)
}

// Handler looks up the handler for one event name. A nil registry has no
// handlers, so deployments serving a single scope can omit the other one.
func (r *Registry) Handler(event string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	handler, found := r.handlers[event]

	return handler, found
}

// Rules returns the ordered rule set. The returned slice is shared and must
// not be mutated.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}

	return r.rules
}

// Forwards returns the aggregated-forwards batch handler when registered.
func (r *Registry) Forwards() (BatchHandler, bool) {
	if r == nil || r.forwards == nil {
		return nil, false
	}

	return r.forwards, true
}

// compileRule validates one rule spec and compiles its pattern with flags.
func compileRule(spec RuleSpec) (Rule, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return Rule{}, fmt.Errorf("empty rule name: %w", ErrInvalidRule)
	}
	if spec.Pattern == "" {
		return Rule{}, fmt.Errorf("rule %s: empty pattern: %w", spec.Name, ErrInvalidRule)
	}
	if spec.Handler == nil {
		return Rule{}, fmt.Errorf("rule %s: nil handler: %w", spec.Name, ErrInvalidRule)
	}
	for _, flag := range spec.Flags {
		switch flag {
		case 'i', 'm', 's':
		default:
			return Rule{}, fmt.Errorf("rule %s: unsupported flag %q: %w", spec.Name, string(flag), ErrInvalidRule)
		}
	}

	pattern := spec.Pattern
	if spec.Flags != "" {
		pattern = "(?" + spec.Flags + ")" + pattern
	}
	expr, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: compile pattern: %w", spec.Name, err)
	}

	return Rule{Name: spec.Name, Expr: expr}, nil
}

// splitSerializedPattern splits "/pattern/flags" on the first and last
// delimiter occurrence, so patterns containing the delimiter stay intact.
func splitSerializedPattern(key string) (pattern string, flags string, err error) {
	last := strings.LastIndex(key, patternDelimiter)
	if last <= 0 {
		return "", "", fmt.Errorf("missing closing delimiter: %w", ErrInvalidRule)
	}
	pattern = key[len(patternDelimiter):last]
	flags = key[last+len(patternDelimiter):]
	if pattern == "" {
		return "", "", fmt.Errorf("empty pattern body: %w", ErrInvalidRule)
	}

	return pattern, flags, nil
}
