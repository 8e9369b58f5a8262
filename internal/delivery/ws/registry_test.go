package ws

import (
	"sync"
	"testing"
)

func newBareClient() *Client {
	return &Client{ID: newTestID(), send: make(chan []byte, sendBufferSize)}
}

var testIDCounter struct {
	sync.Mutex
	n int
}

func newTestID() string {
	testIDCounter.Lock()
	defer testIDCounter.Unlock()
	testIDCounter.n++
	return "conn-" + string(rune('a'+testIDCounter.n%26)) + string(rune('0'+testIDCounter.n/26%10))
}

func TestRegistry_RegisterFirst(t *testing.T) {
	r := NewSessionRegistry()
	c := newBareClient()

	if !r.Register("alice", c) {
		t.Error("Expected first registration to report first=true")
	}
	if !r.IsOnline("alice") {
		t.Error("Expected alice to be online after registration")
	}
}

func TestRegistry_SecondConnectionDoesNotClobber(t *testing.T) {
	r := NewSessionRegistry()
	c1 := newBareClient()
	c2 := newBareClient()

	r.Register("alice", c1)
	if r.Register("alice", c2) {
		t.Error("Expected second registration to report first=false")
	}
	if r.Connections("alice") != 2 {
		t.Errorf("Expected 2 connections, got %d", r.Connections("alice"))
	}

	// Dropping one connection keeps the identity online.
	_, last, ok := r.Unregister(c1)
	if !ok || last {
		t.Errorf("Expected ok=true last=false, got ok=%v last=%v", ok, last)
	}
	if !r.IsOnline("alice") {
		t.Error("Expected alice to remain online with one connection left")
	}

	// Dropping the second takes it offline.
	userID, last, ok := r.Unregister(c2)
	if !ok || !last || userID != "alice" {
		t.Errorf("Expected final unregister of alice to report last, got user=%s last=%v", userID, last)
	}
	if r.IsOnline("alice") {
		t.Error("Expected alice offline after last connection unregistered")
	}
}

func TestRegistry_UnregisterUnknownConnection(t *testing.T) {
	r := NewSessionRegistry()

	_, _, ok := r.Unregister(newBareClient())
	if ok {
		t.Error("Expected unregister of unknown connection to report ok=false")
	}
}

func TestRegistry_ConcurrentDisconnectsReportExactlyOneLast(t *testing.T) {
	r := NewSessionRegistry()

	const n = 32
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newBareClient()
		r.Register("alice", clients[i])
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	lastCount := 0

	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if _, last, ok := r.Unregister(c); ok && last {
				mu.Lock()
				lastCount++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	// The offline decision must be atomic: exactly one disconnect sees
	// "last", never zero, never two.
	if lastCount != 1 {
		t.Errorf("Expected exactly one last-unregister, got %d", lastCount)
	}
	if r.IsOnline("alice") {
		t.Error("Expected alice offline after all connections unregistered")
	}
}
