package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/duochat/duochat/internal/domain"
	"github.com/duochat/duochat/internal/store"
)

// Announcer delivers an event to every live connection, optionally
// excluding one connection id. Presence is global, not room-scoped.
// Implemented by the ws gateway.
type Announcer interface {
	Announce(event string, data any, exceptConn string)
}

// PresenceTracker turns registry transitions (first registration, last
// unregistration of an identity) into user-online/user-offline broadcasts
// and a durable status update. The broadcast is never blocked by the
// store: realtime state is best-effort, durable status is eventually
// consistent.
type PresenceTracker struct {
	store     store.Store
	announcer Announcer
	log       *zap.Logger
}

func NewPresenceTracker(st store.Store, announcer Announcer, log *zap.Logger) *PresenceTracker {
	return &PresenceTracker{store: st, announcer: announcer, log: log}
}

// Online announces that a user's first connection registered.
func (p *PresenceTracker) Online(ctx context.Context, userID, exceptConn string) {
	p.announcer.Announce(domain.EventUserOnline, userID, exceptConn)

	if err := p.store.SetUserOnline(ctx, userID, true, nil); err != nil {
		p.log.Warn("persist online status failed", zap.String("user", userID), zap.Error(err))
	}
}

// Offline announces that a user's last connection went away and records
// last-seen.
func (p *PresenceTracker) Offline(ctx context.Context, userID, exceptConn string) {
	p.announcer.Announce(domain.EventUserOffline, userID, exceptConn)

	now := time.Now()
	if err := p.store.SetUserOnline(ctx, userID, false, &now); err != nil {
		p.log.Warn("persist offline status failed", zap.String("user", userID), zap.Error(err))
	}
}
