package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duochat/duochat/internal/domain"
)

func seededStore() *MemoryStore {
	s := NewMemoryStore()
	s.AddUser(domain.User{ID: "alice", Username: "alice", Email: "alice@example.com"})
	s.AddUser(domain.User{ID: "bob", Username: "bob", Email: "bob@example.com"})
	return s
}

func TestMemoryStore_CreateMessage(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	msg, err := s.CreateMessage(ctx, "conv1", "alice", "hi", nil)
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "conv1", msg.ConversationID)
	require.Equal(t, "alice", msg.SenderID)
	require.Equal(t, "hi", msg.Content)
	require.False(t, msg.IsRead)
	require.WithinDuration(t, time.Now(), msg.CreatedAt, time.Second)
	require.NotNil(t, msg.Sender)
	require.Equal(t, "alice", msg.Sender.Username)
}

func TestMemoryStore_CreateMessage_FileOnly(t *testing.T) {
	s := seededStore()

	file := &domain.FileRef{
		URL:      "https://files.example.com/a.png",
		Name:     "a.png",
		Kind:     "image",
		MimeType: "image/png",
		Size:     1234,
	}
	msg, err := s.CreateMessage(context.Background(), "conv1", "alice", "", file)
	require.NoError(t, err)
	require.True(t, msg.HasFile())
	require.Equal(t, "a.png", msg.FileName)
	require.Equal(t, int64(1234), msg.FileSize)
	require.Empty(t, msg.Content)
}

func TestMemoryStore_ListMessages_Order(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := s.CreateMessage(ctx, "conv1", "alice", text, nil)
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, "conv1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Content)
	require.Equal(t, "three", msgs[2].Content)
}

func TestMemoryStore_MarkReadBulk(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	_, err := s.CreateMessage(ctx, "conv1", "alice", "from alice 1", nil)
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, "conv1", "alice", "from alice 2", nil)
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, "conv1", "bob", "from bob", nil)
	require.NoError(t, err)

	// Bob reads: only alice's messages flip.
	count, err := s.MarkReadBulk(ctx, "conv1", "bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	msgs, err := s.ListMessages(ctx, "conv1")
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderID == "alice" {
			require.True(t, m.IsRead)
		} else {
			require.False(t, m.IsRead)
		}
	}

	// Second pass is a no-op.
	count, err = s.MarkReadBulk(ctx, "conv1", "bob")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryStore_SetUserOnline(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	require.NoError(t, s.SetUserOnline(ctx, "alice", true, nil))
	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, u.IsOnline)
	require.Nil(t, u.LastSeenAt)

	seen := time.Now()
	require.NoError(t, s.SetUserOnline(ctx, "alice", false, &seen))
	u, err = s.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.False(t, u.IsOnline)
	require.NotNil(t, u.LastSeenAt)

	err = s.SetUserOnline(ctx, "ghost", true, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_ListUsers_ExcludesCaller(t *testing.T) {
	s := seededStore()

	users, err := s.ListUsers(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "bob", users[0].ID)
}

func TestMemoryStore_GetOrCreateConversation(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	conv, created, err := s.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, conv.Participants, 2)

	again, created, err := s.GetOrCreateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, conv.ID, again.ID)
}

func TestMemoryStore_ListConversations(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	conv, _, err := s.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, conv.ID, "alice", "latest", nil)
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.NotNil(t, convs[0].LastMessage)
	require.Equal(t, "latest", convs[0].LastMessage.Content)

	convs, err = s.ListConversations(ctx, "ghost")
	require.NoError(t, err)
	require.Empty(t, convs)
}
