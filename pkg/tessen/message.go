package tessen

import (
	"context"
	"strconv"

	"tessen/pkg/botapi"
)

// Variant identifies which payload variant an update carried.
type Variant string

const (
	// VariantMessage is an ordinary new message.
	VariantMessage Variant = "message"
	// VariantEditedMessage is an edit of an existing message.
	VariantEditedMessage Variant = "edited_message"
	// VariantChannelPost is a post in a broadcast channel.
	VariantChannelPost Variant = "channel_post"
	// VariantCallbackQuery is an inline-keyboard button press.
	VariantCallbackQuery Variant = "callback_query"
	// VariantInlineQuery is an inline query typed at the bot.
	VariantInlineQuery Variant = "inline_query"
)

// ContentKind tags the dominant content block of a message. Kinds double as
// the terminal fallback of event classification.
type ContentKind string

const (
	// KindText is a plain text message.
	KindText ContentKind = "text"
	// KindPhoto is a photo message with size variants.
	KindPhoto ContentKind = "photo"
	// KindVoice is a voice note.
	KindVoice ContentKind = "voice"
	// KindAudio is an audio track.
	KindAudio ContentKind = "audio"
	// KindDocument is a generic file.
	KindDocument ContentKind = "document"
	// KindVideo is a video recording.
	KindVideo ContentKind = "video"
	// KindVideoNote is a round video message.
	KindVideoNote ContentKind = "video_note"
	// KindSticker is a sticker.
	KindSticker ContentKind = "sticker"
	// KindContact is a shared contact card.
	KindContact ContentKind = "contact"
	// KindMessage is the fallback for messages without a recognized content block.
	KindMessage ContentKind = "message"
)

// Scope selects which handler registry an event routes through.
type Scope string

const (
	// ScopePrivate routes through the private-chat registry.
	ScopePrivate Scope = "private"
	// ScopePublic routes through the group/channel registry.
	ScopePublic Scope = "public"
)

// UndefinedID is the chat/sender identifier used when the source payload
// omits the corresponding object. Callers must not treat it as a real id.
const UndefinedID = "undefined"

// Message is the canonical projection of one update: variant and content
// tags, string-coerced identifiers, the original wire payload, and the
// attachment blocks enrichment resolves. It is mutable only during
// enrichment and immutable afterward.
type Message struct {
	// Variant is the update payload variant this message came from.
	Variant Variant
	// Kind tags the message content.
	Kind ContentKind
	// ChatID is the chat identifier in decimal string form, or UndefinedID.
	// String form keeps 64-bit identifiers precise and map-key stable.
	ChatID string
	// SenderID is the sender identifier in decimal string form, or UndefinedID.
	SenderID string
	// Payload is the original nested wire message, nil for inline queries
	// and callback queries without an embedded message.
	Payload *botapi.Message
	// Attachments are the resolvable media blocks in payload order.
	Attachments []*Attachment
}

// Edited reports whether this message arrived as an edit.
func (m *Message) Edited() bool {
	return m.Variant == VariantEditedMessage
}

// Scope derives the routing scope from the chat type: private chats route
// private, everything else routes public.
func (m *Message) Scope() Scope {
	if m.Payload != nil && m.Payload.Chat != nil && m.Payload.Chat.Type == botapi.ChatTypePrivate {
		return ScopePrivate
	}

	return ScopePublic
}

// Text returns the payload text, empty when no payload is attached.
func (m *Message) Text() string {
	if m.Payload == nil {
		return ""
	}

	return m.Payload.Text
}

// SelfForward reports whether the payload was forwarded by the chat that is
// also the forward's original source (a user forwarding into their own chat).
func (m *Message) SelfForward() bool {
	if m.Payload == nil || m.Payload.ForwardFrom == nil || m.Payload.Chat == nil {
		return false
	}

	return m.Payload.ForwardFrom.ID == m.Payload.Chat.ID
}

// HasEntity reports whether any payload entity has the given type.
func (m *Message) HasEntity(entityType string) bool {
	if m.Payload == nil {
		return false
	}
	for _, entity := range m.Payload.Entities {
		if entity.Type == entityType {
			return true
		}
	}

	return false
}

// AttachmentKind tags which media block an attachment reference came from.
type AttachmentKind string

const (
	// AttachmentVoice references a voice note recording.
	AttachmentVoice AttachmentKind = "voice"
	// AttachmentAudio references an audio track.
	AttachmentAudio AttachmentKind = "audio"
	// AttachmentDocument references a generic file.
	AttachmentDocument AttachmentKind = "document"
	// AttachmentVideo references a video recording.
	AttachmentVideo AttachmentKind = "video"
	// AttachmentVideoNote references a round video message.
	AttachmentVideoNote AttachmentKind = "video_note"
	// AttachmentPhoto references one photo size variant.
	AttachmentPhoto AttachmentKind = "photo"
	// AttachmentThumbnail references a thumbnail sub-reference.
	AttachmentThumbnail AttachmentKind = "thumbnail"
)

// Attachment is one resolvable media reference. Enrichment fills File; the
// reference fields never change after normalization.
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	FileID   string         `json:"file_id"`
	FileSize int64          `json:"file_size,omitempty"`
	// Thumbnail is an optional sub-reference of the same shape.
	Thumbnail *Attachment `json:"thumbnail,omitempty"`
	// File is the resolved location, attached by enrichment.
	File *ResolvedFile `json:"file,omitempty"`
}

// Resolvable reports whether this reference carries enough information to
// resolve: a file identifier and, for photo variants, a positive size hint.
func (a *Attachment) Resolvable() bool {
	if a.FileID == "" {
		return false
	}
	if a.Kind == AttachmentPhoto && a.FileSize <= 0 {
		return false
	}

	return true
}

// ResolvedFile is the result of resolving an attachment reference.
// Resolution is idempotent for a stable file identifier.
type ResolvedFile struct {
	FilePath string `json:"file_path"`
	URL      string `json:"url"`
}

// Handler processes one classified message with the bot client it may answer
// through. Handler failures are isolated by the dispatcher; they never reach
// the transport boundary.
type Handler func(ctx context.Context, bot *botapi.Client, msg *Message) error

// BatchHandler processes one flushed self-forward batch in arrival order.
type BatchHandler func(ctx context.Context, bot *botapi.Client, batch []*Message) error

// formatID coerces a platform identifier to its canonical string form.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
