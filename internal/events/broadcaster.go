// Package events provides a change-event broadcaster so components react to
// session and tree changes immediately instead of polling.
package events

import (
	"sync"
	"time"
)

// Session lifecycle events emitted by the authorization engine
const (
	EventLogin  = "login"
	EventLogout = "logout"
)

// Tree mutation events emitted by the folder store
const (
	EventCreate = "create"
	EventUpload = "upload"
	EventDelete = "delete"
	EventRename = "rename"
)

// Event represents a session or folder-tree change
type Event struct {
	Type      string `json:"type"`
	ItemID    string `json:"itemId,omitempty"`
	Name      string `json:"name,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster manages subscribers and publishes events to all of them
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
}

// Count returns the current number of subscribers
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
