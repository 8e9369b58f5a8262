package store

import (
	"context"
	"time"

	"github.com/duochat/duochat/internal/domain"
)

// Store is the persistence collaborator consumed by the realtime core and
// the REST surface. Both MongoStore and MemoryStore implement it.
//
// CreateMessage is the durability boundary of the message pipeline: a
// message is never broadcast before this call has returned successfully.
type Store interface {
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	// Message operations
	CreateMessage(ctx context.Context, conversationID, senderID, content string, file *domain.FileRef) (*domain.Message, error)
	MarkReadBulk(ctx context.Context, conversationID, excludeSenderID string) (int64, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// User operations
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]domain.User, error)
	SetUserOnline(ctx context.Context, userID string, online bool, lastSeenAt *time.Time) error

	// Conversation operations
	GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
}
