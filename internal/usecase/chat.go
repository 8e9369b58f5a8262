package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/duochat/duochat/internal/domain"
	"github.com/duochat/duochat/internal/store"
)

// Broadcaster delivers an event to every connection joined to a
// conversation room, optionally excluding one connection id. Implemented
// by the ws room router.
type Broadcaster interface {
	Broadcast(conversationID, event string, data any, exceptConn string)
}

// ChatService owns the message pipeline plus the typing and read-receipt
// relays. The socket gateway and the HTTP fallback both funnel into it, so
// there is exactly one code path that can create a message.
type ChatService struct {
	store store.Store
	rooms Broadcaster
	log   *zap.Logger
}

func NewChatService(st store.Store, rooms Broadcaster, log *zap.Logger) *ChatService {
	return &ChatService{store: st, rooms: rooms, log: log}
}

// SendMessage validates, persists, and fans out a message. Persistence is
// the durability boundary: on store failure nothing is broadcast and the
// error is returned to the caller only. On success the fanout includes the
// sender's own joined connections, keeping all of a user's devices
// consistent.
func (s *ChatService) SendMessage(ctx context.Context, senderID, conversationID, content string, file *domain.FileRef) (*domain.Message, error) {
	if content == "" && (file == nil || file.URL == "") {
		return nil, domain.ErrEmptyMessage
	}

	msg, err := s.store.CreateMessage(ctx, conversationID, senderID, content, file)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	s.rooms.Broadcast(conversationID, domain.EventNewMessage, msg, "")

	s.log.Debug("message sent",
		zap.String("conversation", conversationID),
		zap.String("sender", senderID),
		zap.Bool("file", msg.HasFile()))
	return msg, nil
}

// MarkRead flips every unread message in the conversation not authored by
// the reader, as a single conditional bulk update, then tells the other
// room members. The receipt excludes the reader's own connection; their
// other devices learn nothing they did not already know.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID, exceptConn string) (int64, error) {
	count, err := s.store.MarkReadBulk(ctx, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	s.rooms.Broadcast(conversationID, domain.EventMessagesRead, domain.ReadReceipt{
		ConversationID: conversationID,
		ReaderID:       readerID,
	}, exceptConn)

	return count, nil
}

// TypingStarted relays a typing indicator to the other room members.
// Stateless: no debounce, no expiry; the client is responsible for the
// matching stop event.
func (s *ChatService) TypingStarted(userID, conversationID, exceptConn string) {
	s.rooms.Broadcast(conversationID, domain.EventUserTyping, domain.TypingEvent{
		UserID:         userID,
		ConversationID: conversationID,
	}, exceptConn)
}

// TypingStopped relays the end of a typing indicator.
func (s *ChatService) TypingStopped(userID, conversationID, exceptConn string) {
	s.rooms.Broadcast(conversationID, domain.EventUserStopTyping, domain.TypingEvent{
		UserID:         userID,
		ConversationID: conversationID,
	}, exceptConn)
}
