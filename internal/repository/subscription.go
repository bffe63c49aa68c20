package repository

import (
	"context"
	"sync"

	"societyhub/internal/feed"
	"societyhub/internal/logger"
)

// Subscription is a live query handle. Snapshots carries full result sets;
// a consumer that falls behind only ever receives the newest one. Both
// channels are closed once the subscription stops.
type Subscription[T any] struct {
	snapshots chan []*T
	errs      chan error
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

func startSubscription[T any](ctx context.Context, listener *feed.Listener, load func(context.Context) ([]*T, error), log *logger.Logger) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		snapshots: make(chan []*T, 1),
		errs:      make(chan error, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run(ctx, listener, load, log)
	return s
}

// Snapshots returns the snapshot stream.
func (s *Subscription[T]) Snapshots() <-chan []*T { return s.snapshots }

// Errors returns failed re-reads. The subscription keeps running after an
// error and retries on the next change.
func (s *Subscription[T]) Errors() <-chan error { return s.errs }

// Done is closed after the subscription has released its resources.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Close cancels the subscription and waits for it to stop. It is safe to call
// more than once and from any goroutine.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription[T]) run(ctx context.Context, listener *feed.Listener, load func(context.Context) ([]*T, error), log *logger.Logger) {
	defer close(s.done)
	defer close(s.snapshots)
	defer close(s.errs)
	defer listener.Close()

	refresh := func() {
		docs, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("subscription refresh failed", "error", err)
			SendLatest(s.errs, err)
			return
		}
		SendLatest(s.snapshots, docs)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-listener.C:
			if !ok {
				return
			}
			// one re-read covers every event already queued
			for pending := true; pending; {
				select {
				case _, ok := <-listener.C:
					if !ok {
						return
					}
				default:
					pending = false
				}
			}
			refresh()
		}
	}
}

// SendLatest sends v on a buffer-1 channel owned by a single producer,
// discarding an undelivered older value.
func SendLatest[V any](ch chan V, v V) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
