package tessen

import (
	"fmt"

	"tessen/pkg/botapi"
)

// Normalize extracts the canonical message record from one raw update.
// Exactly one of the recognized variants must be populated; otherwise it
// fails with ErrUnrecognizedUpdate. For callback queries the canonical
// message is the embedded message, not the callback envelope.
func Normalize(update *botapi.Update) (*Message, error) {
	if update == nil {
		return nil, fmt.Errorf("normalize: nil update: %w", ErrUnrecognizedUpdate)
	}

	switch {
	case update.Message != nil:
		return fromMessage(VariantMessage, update.Message), nil
	case update.EditedMessage != nil:
		return fromMessage(VariantEditedMessage, update.EditedMessage), nil
	case update.ChannelPost != nil:
		return fromMessage(VariantChannelPost, update.ChannelPost), nil
	case update.CallbackQuery != nil:
		return fromCallbackQuery(update.CallbackQuery), nil
	case update.InlineQuery != nil:
		return fromInlineQuery(update.InlineQuery), nil
	default:
		return nil, fmt.Errorf("normalize update %d: %w", update.UpdateID, ErrUnrecognizedUpdate)
	}
}

// fromMessage builds the canonical record for message-bearing variants.
func fromMessage(variant Variant, payload *botapi.Message) *Message {
	return &Message{
		Variant:     variant,
		Kind:        contentKind(payload),
		ChatID:      chatID(payload),
		SenderID:    senderID(payload),
		Payload:     payload,
		Attachments: attachmentRefs(payload),
	}
}

// fromCallbackQuery projects the embedded message; the interaction identifier
// on the envelope is routed separately by the dispatcher.
func fromCallbackQuery(query *botapi.CallbackQuery) *Message {
	msg := fromMessage(VariantCallbackQuery, query.Message)
	if query.From != nil {
		msg.SenderID = formatID(query.From.ID)
	}

	return msg
}

// fromInlineQuery builds a canonical record without a message payload;
// inline queries carry no chat object.
func fromInlineQuery(query *botapi.InlineQuery) *Message {
	msg := &Message{
		Variant:  VariantInlineQuery,
		Kind:     KindMessage,
		ChatID:   UndefinedID,
		SenderID: UndefinedID,
	}
	if query.From != nil {
		msg.SenderID = formatID(query.From.ID)
	}

	return msg
}

// chatID coerces the nested chat identifier, falling back to UndefinedID.
func chatID(payload *botapi.Message) string {
	if payload == nil || payload.Chat == nil {
		return UndefinedID
	}

	return formatID(payload.Chat.ID)
}

// senderID coerces the nested sender identifier, falling back to UndefinedID.
// Channel posts legitimately omit the sender object.
func senderID(payload *botapi.Message) string {
	if payload == nil || payload.From == nil {
		return UndefinedID
	}

	return formatID(payload.From.ID)
}

// contentKind tags the dominant content block of the wire message.
func contentKind(payload *botapi.Message) ContentKind {
	switch {
	case payload == nil:
		return KindMessage
	case payload.Text != "":
		return KindText
	case len(payload.Photo) > 0:
		return KindPhoto
	case payload.Voice != nil:
		return KindVoice
	case payload.Audio != nil:
		return KindAudio
	case payload.Document != nil:
		return KindDocument
	case payload.Video != nil:
		return KindVideo
	case payload.VideoNote != nil:
		return KindVideoNote
	case payload.Sticker != nil:
		return KindSticker
	case payload.Contact != nil:
		return KindContact
	default:
		return KindMessage
	}
}

// attachmentRefs extracts every resolvable media reference in payload order.
// Photo size variants keep their wire order: smallest to largest.
func attachmentRefs(payload *botapi.Message) []*Attachment {
	if payload == nil {
		return nil
	}

	refs := make([]*Attachment, 0, 2)
	if payload.Voice != nil {
		refs = append(refs, &Attachment{
			Kind:     AttachmentVoice,
			FileID:   payload.Voice.FileID,
			FileSize: payload.Voice.FileSize,
		})
	}
	if payload.Audio != nil {
		refs = append(refs, &Attachment{
			Kind:      AttachmentAudio,
			FileID:    payload.Audio.FileID,
			FileSize:  payload.Audio.FileSize,
			Thumbnail: thumbnailRef(payload.Audio.Thumbnail),
		})
	}
	if payload.Document != nil {
		refs = append(refs, &Attachment{
			Kind:      AttachmentDocument,
			FileID:    payload.Document.FileID,
			FileSize:  payload.Document.FileSize,
			Thumbnail: thumbnailRef(payload.Document.Thumbnail),
		})
	}
	if payload.Video != nil {
		refs = append(refs, &Attachment{
			Kind:      AttachmentVideo,
			FileID:    payload.Video.FileID,
			FileSize:  payload.Video.FileSize,
			Thumbnail: thumbnailRef(payload.Video.Thumbnail),
		})
	}
	if payload.VideoNote != nil {
		refs = append(refs, &Attachment{
			Kind:      AttachmentVideoNote,
			FileID:    payload.VideoNote.FileID,
			FileSize:  payload.VideoNote.FileSize,
			Thumbnail: thumbnailRef(payload.VideoNote.Thumbnail),
		})
	}
	for _, variant := range payload.Photo {
		refs = append(refs, &Attachment{
			Kind:     AttachmentPhoto,
			FileID:   variant.FileID,
			FileSize: variant.FileSize,
		})
	}
	if len(refs) == 0 {
		return nil
	}

	return refs
}

// thumbnailRef builds the optional thumbnail sub-reference.
func thumbnailRef(thumb *botapi.PhotoSize) *Attachment {
	if thumb == nil || thumb.FileID == "" {
		return nil
	}

	return &Attachment{
		Kind:     AttachmentThumbnail,
		FileID:   thumb.FileID,
		FileSize: thumb.FileSize,
	}
}
