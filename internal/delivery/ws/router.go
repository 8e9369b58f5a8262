package ws

import (
	"sync"

	"go.uber.org/zap"
)

// RoomRouter maps conversation ids to the connections currently joined to
// them. Membership is connection-scoped, not identity-scoped: a user with
// two open connections to the same conversation sends and receives on each
// independently. Membership is transient and rebuilt from join events,
// never persisted.
//
// RoomRouter implements usecase.Broadcaster.
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client  // room id -> conn id -> client
	joined map[string]map[string]struct{} // conn id -> room ids
	log    *zap.Logger
}

func NewRoomRouter(log *zap.Logger) *RoomRouter {
	return &RoomRouter{
		rooms:  make(map[string]map[string]*Client),
		joined: make(map[string]map[string]struct{}),
		log:    log,
	}
}

// Join adds the connection to the room. Idempotent.
func (rt *RoomRouter) Join(c *Client, roomID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	members, ok := rt.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		rt.rooms[roomID] = members
	}
	members[c.ID] = c

	joined, ok := rt.joined[c.ID]
	if !ok {
		joined = make(map[string]struct{})
		rt.joined[c.ID] = joined
	}
	joined[roomID] = struct{}{}
}

// Leave removes the connection from the room. No-op if absent.
func (rt *RoomRouter) Leave(c *Client, roomID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.leaveLocked(c.ID, roomID)
}

// DropAll removes the connection from every room it joined. Called on
// teardown so no dangling membership survives a disconnect.
func (rt *RoomRouter) DropAll(c *Client) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for roomID := range rt.joined[c.ID] {
		rt.leaveLocked(c.ID, roomID)
	}
}

func (rt *RoomRouter) leaveLocked(connID, roomID string) {
	members, ok := rt.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(rt.rooms, roomID)
	}

	if joined, ok := rt.joined[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(rt.joined, connID)
		}
	}
}

// Broadcast delivers the event to every member of the room except the
// optionally excluded connection id. The frame is marshaled once; delivery
// to each peer is a non-blocking enqueue, so a slow consumer never stalls
// the fanout. No lock is held while the transport drains the queue.
func (rt *RoomRouter) Broadcast(roomID, event string, data any, exceptConn string) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		rt.log.Error("encode broadcast frame", zap.String("event", event), zap.Error(err))
		return
	}

	rt.mu.RLock()
	targets := make([]*Client, 0, len(rt.rooms[roomID]))
	for id, c := range rt.rooms[roomID] {
		if id == exceptConn {
			continue
		}
		targets = append(targets, c)
	}
	rt.mu.RUnlock()

	for _, c := range targets {
		c.Send(frame)
	}
}

// Contains reports whether the connection is a member of the room.
func (rt *RoomRouter) Contains(c *Client, roomID string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.rooms[roomID][c.ID]
	return ok
}

// Members returns the number of connections joined to the room.
func (rt *RoomRouter) Members(roomID string) int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.rooms[roomID])
}
