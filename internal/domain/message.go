package domain

import (
	"time"
)

// Wire event names. These are the socket contract shared with existing
// clients and must not change.
const (
	// Inbound
	EventAuthenticate      = "authenticate"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventMarkRead          = "mark-read"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"

	// Outbound
	EventNewMessage     = "new-message"
	EventMessagesRead   = "messages-read"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
)

// FileRef describes an already-uploaded file attached to a message.
// Upload handling happens elsewhere; the core only carries the metadata.
type FileRef struct {
	URL      string `json:"fileUrl"`
	Name     string `json:"fileName"`
	Kind     string `json:"fileType"`
	MimeType string `json:"fileMimeType"`
	Size     int64  `json:"fileSize"`
}

// Message is a single chat message. Content and file are both optional,
// but a message must carry at least one of them. Messages are append-only:
// after creation only IsRead ever changes, and only false -> true.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	SenderID       string    `json:"senderId" bson:"sender_id"`
	Content        string    `json:"content,omitempty" bson:"content,omitempty"`
	FileURL        string    `json:"fileUrl,omitempty" bson:"file_url,omitempty"`
	FileName       string    `json:"fileName,omitempty" bson:"file_name,omitempty"`
	FileType       string    `json:"fileType,omitempty" bson:"file_type,omitempty"`
	FileMimeType   string    `json:"fileMimeType,omitempty" bson:"file_mime_type,omitempty"`
	FileSize       int64     `json:"fileSize,omitempty" bson:"file_size,omitempty"`
	IsRead         bool      `json:"isRead" bson:"is_read"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`

	// Sender projection, resolved after persistence. Not stored with the
	// message document.
	Sender *User `json:"sender,omitempty" bson:"-"`
}

// HasFile reports whether the message carries a file reference.
func (m *Message) HasFile() bool {
	return m.FileURL != ""
}

// AttachFile copies file metadata onto the message.
func (m *Message) AttachFile(f *FileRef) {
	if f == nil {
		return
	}
	m.FileURL = f.URL
	m.FileName = f.Name
	m.FileType = f.Kind
	m.FileMimeType = f.MimeType
	m.FileSize = f.Size
}

// ReadReceipt is the payload of the messages-read event. It deliberately
// names no message ids; each receiving client flips the read flag on its
// own previously sent messages in the conversation.
type ReadReceipt struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

// TypingEvent is the payload of user-typing and user-stop-typing. Typing
// state is never stored; it exists only as an in-flight broadcast.
type TypingEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// Conversation is a two-party chat thread. Realtime room membership is
// transient and lives in the router, not here.
type Conversation struct {
	ID             string    `json:"id" bson:"_id"`
	ParticipantIDs []string  `json:"-" bson:"participants"`
	Participants   []User    `json:"participants" bson:"-"`
	LastMessage    *Message  `json:"lastMessage,omitempty" bson:"-"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}
