package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duochat/duochat/internal/domain"
)

// MemoryStore is a map-backed Store used for development and tests. It
// honors the same contracts as MongoStore, in particular the bulk
// conditional update in MarkReadBulk.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	conversations map[string]domain.Conversation
	// messages keyed by conversation id, in creation order
	messages map[string][]domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }
func (s *MemoryStore) Ping(ctx context.Context) error  { return nil }

// AddUser seeds a user profile. Registration is handled by the account
// service; this exists for wiring up dev and test environments.
func (s *MemoryStore) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) CreateMessage(ctx context.Context, conversationID, senderID, content string, file *domain.FileRef) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsRead:         false,
		CreatedAt:      time.Now(),
	}
	msg.AttachFile(file)

	s.messages[conversationID] = append(s.messages[conversationID], msg)

	out := msg
	if u, ok := s.users[senderID]; ok {
		sender := u
		out.Sender = &sender
	}
	return &out, nil
}

func (s *MemoryStore) MarkReadBulk(ctx context.Context, conversationID, excludeSenderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != excludeSenderID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if u, ok := s.users[out[i].SenderID]; ok {
			sender := u
			out[i].Sender = &sender
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for id, u := range s.users {
		if id == excludeID {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) SetUserOnline(ctx context.Context, userID string, online bool, lastSeenAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsOnline = online
	if lastSeenAt != nil {
		t := *lastSeenAt
		u.LastSeenAt = &t
	}
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if hasBoth(c.ParticipantIDs, userA, userB) {
			out := c
			s.fillParticipants(&out)
			return &out, false, nil
		}
	}

	conv := domain.Conversation{
		ID:             uuid.New().String(),
		ParticipantIDs: []string{userA, userB},
		CreatedAt:      time.Now(),
	}
	s.conversations[conv.ID] = conv

	out := conv
	s.fillParticipants(&out)
	return &out, true, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Conversation
	for _, c := range s.conversations {
		if !contains(c.ParticipantIDs, userID) {
			continue
		}
		conv := c
		s.fillParticipants(&conv)
		if msgs := s.messages[conv.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			conv.LastMessage = &last
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// fillParticipants resolves participant profiles. Caller must hold at
// least the read lock.
func (s *MemoryStore) fillParticipants(c *domain.Conversation) {
	c.Participants = make([]domain.User, 0, len(c.ParticipantIDs))
	for _, id := range c.ParticipantIDs {
		if u, ok := s.users[id]; ok {
			c.Participants = append(c.Participants, u)
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func hasBoth(ids []string, a, b string) bool {
	return contains(ids, a) && contains(ids, b)
}
