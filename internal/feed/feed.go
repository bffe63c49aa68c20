// Package feed carries change notifications from repository writes to
// subscribers. Events only say that a collection changed; subscribers re-read
// the store to build snapshots.
package feed

import (
	"context"
	"sync"
	"time"
)

// Op is the kind of write that produced an event.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is published after a committed write.
type Event struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	At         time.Time `json:"at"`
}

// Feed publishes and distributes change events per collection.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, collection string) (*Listener, error)
}

// Listener receives events for one collection until closed.
//
// Delivery is lossy: when the buffer is full new events are dropped, since a
// pending event already guarantees the subscriber will re-read the store.
type Listener struct {
	C <-chan Event

	once    sync.Once
	closeFn func()
}

func newListener(c <-chan Event, closeFn func()) *Listener {
	return &Listener{C: c, closeFn: closeFn}
}

// Close stops delivery. It is safe to call more than once.
func (l *Listener) Close() {
	l.once.Do(l.closeFn)
}

const listenerBuffer = 8

func offer(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}
