package feed

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process feed. It is used when no redis address is
// configured and in tests.
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event
}

// NewMemory creates an empty in-process feed.
func NewMemory() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]chan Event)}
}

func (f *MemoryFeed) Publish(_ context.Context, ev Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs[ev.Collection] {
		offer(ch, ev)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(_ context.Context, collection string) (*Listener, error) {
	ch := make(chan Event, listenerBuffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[int]chan Event)
	}
	f.subs[collection][id] = ch
	f.mu.Unlock()

	return newListener(ch, func() {
		f.mu.Lock()
		delete(f.subs[collection], id)
		f.mu.Unlock()
		close(ch)
	}), nil
}
