package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/duochat/duochat/internal/domain"
)

const (
	collUsers         = "users"
	collConversations = "conversations"
	collMessages      = "messages"
)

// MongoStore implements Store on top of MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects, pings, and prepares indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("messages index: %w", err)
	}
	_, err = s.db.Collection(collConversations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("conversations index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) CreateMessage(ctx context.Context, conversationID, senderID, content string, file *domain.FileRef) (*domain.Message, error) {
	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsRead:         false,
		CreatedAt:      time.Now().UTC(),
	}
	msg.AttachFile(file)

	if _, err := s.db.Collection(collMessages).InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// Sender projection; a missing profile is not an error for the
	// already-persisted message.
	if sender, err := s.GetUser(ctx, senderID); err == nil {
		msg.Sender = sender
	}
	return &msg, nil
}

func (s *MongoStore) MarkReadBulk(ctx context.Context, conversationID, excludeSenderID string) (int64, error) {
	res, err := s.db.Collection(collMessages).UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": excludeSenderID},
			"is_read":         false,
		},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	cur, err := s.db.Collection(collMessages).Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var msgs []domain.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	if err := s.fillSenders(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// fillSenders resolves sender projections for a batch of messages with a
// single users query.
func (s *MongoStore) fillSenders(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}

	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("find senders: %w", err)
	}
	var users []domain.User
	if err := cur.All(ctx, &users); err != nil {
		return fmt.Errorf("decode senders: %w", err)
	}

	byID := make(map[string]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range msgs {
		msgs[i].Sender = byID[msgs[i].SenderID]
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx,
		bson.M{"_id": bson.M{"$ne": excludeID}},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var users []domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) SetUserOnline(ctx context.Context, userID string, online bool, lastSeenAt *time.Time) error {
	set := bson.M{"is_online": online}
	if lastSeenAt != nil {
		set["last_seen_at"] = lastSeenAt.UTC()
	}
	_, err := s.db.Collection(collUsers).UpdateByID(ctx, userID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	return nil
}

func (s *MongoStore) GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	coll := s.db.Collection(collConversations)

	var conv domain.Conversation
	err := coll.FindOne(ctx, bson.M{"participants": bson.M{"$all": []string{userA, userB}}}).Decode(&conv)
	switch {
	case err == nil:
		if err := s.fillParticipants(ctx, &conv); err != nil {
			return nil, false, err
		}
		return &conv, false, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}

	conv = domain.Conversation{
		ID:             uuid.New().String(),
		ParticipantIDs: []string{userA, userB},
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := coll.InsertOne(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}
	if err := s.fillParticipants(ctx, &conv); err != nil {
		return nil, false, err
	}
	return &conv, true, nil
}

func (s *MongoStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	cur, err := s.db.Collection(collConversations).Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	var convs []domain.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	for i := range convs {
		if err := s.fillParticipants(ctx, &convs[i]); err != nil {
			return nil, err
		}
		var last domain.Message
		err := s.db.Collection(collMessages).FindOne(ctx,
			bson.M{"conversation_id": convs[i].ID},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
		).Decode(&last)
		if err == nil {
			convs[i].LastMessage = &last
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find last message: %w", err)
		}
	}
	return convs, nil
}

func (s *MongoStore) fillParticipants(ctx context.Context, c *domain.Conversation) error {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{"_id": bson.M{"$in": c.ParticipantIDs}})
	if err != nil {
		return fmt.Errorf("find participants: %w", err)
	}
	if err := cur.All(ctx, &c.Participants); err != nil {
		return fmt.Errorf("decode participants: %w", err)
	}
	return nil
}
