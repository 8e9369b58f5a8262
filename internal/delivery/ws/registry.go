package ws

import "sync"

// SessionRegistry maps authenticated identities to their live connections.
// An identity may hold several connections at once (multiple tabs or
// devices); registering a second connection never evicts the first.
//
// All mutations and the first/last decision happen under one lock, so two
// simultaneous disconnects can never both observe "not last" and swallow
// the offline transition.
type SessionRegistry struct {
	mu     sync.Mutex
	byUser map[string]map[string]*Client // identity -> conn id -> client
	byConn map[string]string             // conn id -> identity
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]string),
	}
}

// Register associates the connection with the identity. Reports whether
// this was the identity's first live connection (an online transition).
func (r *SessionRegistry) Register(userID string, c *Client) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]*Client)
		r.byUser[userID] = conns
	}
	first = len(conns) == 0
	conns[c.ID] = c
	r.byConn[c.ID] = userID
	return first
}

// Unregister removes the connection's association. Reports the identity it
// was bound to and whether it was the identity's last connection (an
// offline transition). ok is false for connections that never registered.
func (r *SessionRegistry) Unregister(c *Client) (userID string, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.byConn[c.ID]
	if !ok {
		return "", false, false
	}
	delete(r.byConn, c.ID)

	conns := r.byUser[userID]
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		last = true
	}
	return userID, last, true
}

// IsOnline reports whether the identity has at least one live connection.
func (r *SessionRegistry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]) > 0
}

// Connections returns the number of live connections for the identity.
func (r *SessionRegistry) Connections(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID])
}
