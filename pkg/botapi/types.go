package botapi

// Update is one inbound Bot API notification. Exactly one of the payload
// variants is populated per update.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	EditedMessage *Message       `json:"edited_message,omitempty"`
	ChannelPost   *Message       `json:"channel_post,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	InlineQuery   *InlineQuery   `json:"inline_query,omitempty"`
}

// ChatType values as delivered on the wire.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
	// ChatTypeSender marks inline queries issued from a private chat with
	// the requesting user.
	ChatTypeSender = "sender"
)

// Chat identifies the conversation an update belongs to.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// User identifies a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Message carries the subset of Bot API message fields this system inspects,
// plus the media blocks it resolves.
type Message struct {
	MessageID      int64           `json:"message_id"`
	Date           int64           `json:"date,omitempty"`
	Chat           *Chat           `json:"chat,omitempty"`
	From           *User           `json:"from,omitempty"`
	ForwardFrom    *User           `json:"forward_from,omitempty"`
	ForwardDate    int64           `json:"forward_date,omitempty"`
	ReplyToMessage *Message        `json:"reply_to_message,omitempty"`
	Text           string          `json:"text,omitempty"`
	Caption        string          `json:"caption,omitempty"`
	Entities       []MessageEntity `json:"entities,omitempty"`
	MediaGroupID   string          `json:"media_group_id,omitempty"`

	Contact   *Contact    `json:"contact,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Voice     *Voice      `json:"voice,omitempty"`
	Audio     *Audio      `json:"audio,omitempty"`
	Document  *Document   `json:"document,omitempty"`
	Video     *Video      `json:"video,omitempty"`
	VideoNote *VideoNote  `json:"video_note,omitempty"`
	Sticker   *Sticker    `json:"sticker,omitempty"`
}

// Entity types relevant to classification.
const (
	EntityTypeMention    = "mention"
	EntityTypeBotCommand = "bot_command"
)

// MessageEntity marks one special region inside message text.
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"`
	User   *User  `json:"user,omitempty"`
}

// Contact is a shared contact card.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
}

// PhotoSize is one size variant of a photo, conventionally ordered from
// smallest to largest inside Message.Photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Voice is a voice note recording.
type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Audio is an audio track with optional album-art thumbnail.
type Audio struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id,omitempty"`
	Duration     int        `json:"duration,omitempty"`
	Performer    string     `json:"performer,omitempty"`
	Title        string     `json:"title,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Thumbnail    *PhotoSize `json:"thumb,omitempty"`
}

// Document is a generic file with optional thumbnail.
type Document struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Thumbnail    *PhotoSize `json:"thumb,omitempty"`
}

// Video is a video recording with optional thumbnail.
type Video struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	Duration     int        `json:"duration,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Thumbnail    *PhotoSize `json:"thumb,omitempty"`
}

// VideoNote is a round video message with optional thumbnail.
type VideoNote struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id,omitempty"`
	Length       int        `json:"length,omitempty"`
	Duration     int        `json:"duration,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Thumbnail    *PhotoSize `json:"thumb,omitempty"`
}

// Sticker is a sticker message. Stickers are classified but not resolved.
type Sticker struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	Emoji        string `json:"emoji,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// CallbackQuery is an inline-keyboard button press. Message is the message
// the pressed keyboard was attached to.
type CallbackQuery struct {
	ID           string   `json:"id"`
	From         *User    `json:"from,omitempty"`
	Message      *Message `json:"message,omitempty"`
	ChatInstance string   `json:"chat_instance,omitempty"`
	Data         string   `json:"data,omitempty"`
}

// InlineQuery is an incoming inline query.
type InlineQuery struct {
	ID       string `json:"id"`
	From     *User  `json:"from,omitempty"`
	Query    string `json:"query,omitempty"`
	Offset   string `json:"offset,omitempty"`
	ChatType string `json:"chat_type,omitempty"`
}

// File is the getFile lookup result used to build download URLs.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}
