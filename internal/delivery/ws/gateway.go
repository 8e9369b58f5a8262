package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duochat/duochat/internal/auth"
	"github.com/duochat/duochat/internal/domain"
	"github.com/duochat/duochat/internal/usecase"
)

// Gateway is the connection lifecycle manager. It owns the set of live
// connections, drives the per-connection state machine (unauthenticated ->
// authenticated -> terminal), and wires registry, router, pipeline, and
// presence together. One Gateway per process; every field is injected so
// tests can build isolated instances.
type Gateway struct {
	registry *SessionRegistry
	router   *RoomRouter
	chat     *usecase.ChatService
	verifier auth.Verifier
	log      *zap.Logger

	// presence is set after construction: the tracker announces through
	// the gateway, so the two reference each other.
	presence *usecase.PresenceTracker

	muClients sync.RWMutex
	clients   map[string]*Client
}

func NewGateway(registry *SessionRegistry, router *RoomRouter, chat *usecase.ChatService, verifier auth.Verifier, log *zap.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		router:   router,
		chat:     chat,
		verifier: verifier,
		log:      log,
		clients:  make(map[string]*Client),
	}
}

// SetPresence wires the presence tracker. Must be called before the first
// connection is attached.
func (g *Gateway) SetPresence(p *usecase.PresenceTracker) {
	g.presence = p
}

// Attach adopts a freshly upgraded websocket connection. The caller starts
// the pumps.
func (g *Gateway) Attach(conn *websocket.Conn) *Client {
	c := &Client{
		ID:      uuid.New().String(),
		conn:    conn,
		gateway: g,
		send:    make(chan []byte, sendBufferSize),
	}

	g.muClients.Lock()
	g.clients[c.ID] = c
	g.muClients.Unlock()

	g.log.Debug("connection attached", zap.String("conn", c.ID))
	return c
}

// Disconnect tears the connection down: drop every room membership, then
// unregister, then (if this was the identity's last connection) announce
// offline. Runs exactly once per connection no matter how many times the
// transport signals teardown.
func (g *Gateway) Disconnect(c *Client) {
	c.teardown.Do(func() {
		g.muClients.Lock()
		delete(g.clients, c.ID)
		g.muClients.Unlock()

		g.router.DropAll(c)

		userID, last, ok := g.registry.Unregister(c)
		if ok && last {
			g.presence.Offline(context.Background(), userID, c.ID)
		}
		c.closeSend()

		g.log.Debug("connection torn down",
			zap.String("conn", c.ID),
			zap.String("user", userID))
	})
}

// Announce delivers an event to every live connection except the excluded
// one. Implements usecase.Announcer; presence transitions are global, not
// room-scoped.
func (g *Gateway) Announce(event string, data any, exceptConn string) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		g.log.Error("encode announce frame", zap.String("event", event), zap.Error(err))
		return
	}

	g.muClients.RLock()
	targets := make([]*Client, 0, len(g.clients))
	for id, c := range g.clients {
		if id == exceptConn {
			continue
		}
		targets = append(targets, c)
	}
	g.muClients.RUnlock()

	for _, c := range targets {
		c.Send(frame)
	}
}

// ClientCount returns the number of live connections.
func (g *Gateway) ClientCount() int {
	g.muClients.RLock()
	defer g.muClients.RUnlock()
	return len(g.clients)
}

// dispatch routes one inbound frame. Every event except authenticate
// requires a bound identity; frames from unauthenticated connections are
// dropped silently as protocol violations, never escalated.
func (g *Gateway) dispatch(c *Client, event string, data json.RawMessage) {
	if event == domain.EventAuthenticate {
		g.handleAuthenticate(c, data)
		return
	}

	userID := c.Identity()
	if userID == "" {
		g.log.Debug("event before authentication dropped",
			zap.String("conn", c.ID), zap.String("event", event))
		return
	}

	ctx := context.Background()

	switch event {
	case domain.EventJoinConversation:
		var convID string
		if err := json.Unmarshal(data, &convID); err != nil || convID == "" {
			return
		}
		g.router.Join(c, convID)
		g.log.Debug("joined conversation", zap.String("user", userID), zap.String("conversation", convID))

	case domain.EventLeaveConversation:
		var convID string
		if err := json.Unmarshal(data, &convID); err != nil || convID == "" {
			return
		}
		g.router.Leave(c, convID)

	case domain.EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		var file *domain.FileRef
		if p.FileURL != "" {
			file = &domain.FileRef{
				URL:      p.FileURL,
				Name:     p.FileName,
				Kind:     p.FileType,
				MimeType: p.FileMimeType,
				Size:     p.FileSize,
			}
		}
		if _, err := g.chat.SendMessage(ctx, userID, p.ConversationID, p.Content, file); err != nil {
			// Local to this operation; the connection survives and
			// no broadcast happened.
			if errors.Is(err, domain.ErrEmptyMessage) {
				g.log.Debug("empty message rejected", zap.String("user", userID))
			} else {
				g.log.Error("send message failed", zap.String("user", userID), zap.Error(err))
			}
		}

	case domain.EventMarkRead:
		var p domain.ReadReceipt
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if _, err := g.chat.MarkRead(ctx, p.ConversationID, p.ReaderID, c.ID); err != nil {
			g.log.Error("mark read failed", zap.String("user", userID), zap.Error(err))
		}

	case domain.EventTypingStart:
		var convID string
		if err := json.Unmarshal(data, &convID); err != nil || convID == "" {
			return
		}
		g.chat.TypingStarted(userID, convID, c.ID)

	case domain.EventTypingStop:
		var convID string
		if err := json.Unmarshal(data, &convID); err != nil || convID == "" {
			return
		}
		g.chat.TypingStopped(userID, convID, c.ID)

	default:
		g.log.Debug("unknown event", zap.String("event", event))
	}
}

func (g *Gateway) handleAuthenticate(c *Client, data json.RawMessage) {
	if c.Identity() != "" {
		// A connection maps to at most one identity.
		return
	}

	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		// Connection stays unauthenticated; nothing else happens.
		g.log.Warn("authentication failed", zap.String("conn", c.ID), zap.Error(err))
		return
	}

	c.setIdentity(userID)
	first := g.registry.Register(userID, c)
	if first {
		g.presence.Online(context.Background(), userID, c.ID)
	}

	g.log.Info("connection authenticated",
		zap.String("conn", c.ID),
		zap.String("user", userID),
		zap.Bool("first", first))
}
