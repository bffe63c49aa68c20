package aggregate

import (
	"context"
	"sync"

	"societyhub/internal/logger"
	"societyhub/internal/repository"
)

// Source is a live partition: a stream of full snapshots plus a teardown hook.
// *repository.Subscription satisfies it.
type Source[T any] interface {
	Snapshots() <-chan []*T
	Errors() <-chan error
	Close()
}

// Partition names a source.
type Partition[T any] struct {
	Name   string
	Source Source[T]
}

// Publisher receives every re-derived statistic.
type Publisher[S any] interface {
	Publish(ctx context.Context, stats S) error
}

// Result is the merged view together with the statistics derived from it.
type Result[T, S any] struct {
	View  View[*T]
	Stats S
	// Ready is true once every partition has delivered a snapshot.
	Ready bool
}

type update[T any] struct {
	partition string
	docs      []*T
}

// Aggregator owns K partition subscriptions and applies their snapshots in a
// single loop. Statistics are recomputed from the whole view on every merge.
type Aggregator[T, S any] struct {
	key       func(*T) string
	derive    func(View[*T]) S
	publisher Publisher[S]
	log       *logger.Logger
	parts     []Partition[T]

	mu      sync.RWMutex
	current Result[T, S]

	lmu       sync.Mutex
	nextID    int
	listeners map[int]chan Result[T, S]

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New starts aggregating parts. publisher may be nil.
func New[T, S any](
	ctx context.Context,
	key func(*T) string,
	derive func(View[*T]) S,
	publisher Publisher[S],
	log *logger.Logger,
	parts ...Partition[T],
) *Aggregator[T, S] {
	ctx, cancel := context.WithCancel(ctx)
	a := &Aggregator[T, S]{
		key:       key,
		derive:    derive,
		publisher: publisher,
		log:       log.With("service", "Aggregator"),
		parts:     parts,
		current:   Result[T, S]{View: NewView[*T](), Stats: derive(NewView[*T]())},
		listeners: make(map[int]chan Result[T, S]),
		cancel:    cancel,
	}

	in := make(chan update[T])
	for _, p := range parts {
		a.wg.Add(1)
		go a.forward(ctx, p, in)
	}
	a.wg.Add(1)
	go a.loop(ctx, in)
	return a
}

func (a *Aggregator[T, S]) forward(ctx context.Context, p Partition[T], in chan<- update[T]) {
	defer a.wg.Done()
	snaps, errs := p.Source.Snapshots(), p.Source.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.log.Warn("partition refresh failed", "partition", p.Name, "error", err)
		case docs, ok := <-snaps:
			if !ok {
				return
			}
			select {
			case in <- update[T]{partition: p.Name, docs: docs}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *Aggregator[T, S]) loop(ctx context.Context, in <-chan update[T]) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-in:
			a.apply(ctx, u)
		}
	}
}

func (a *Aggregator[T, S]) apply(ctx context.Context, u update[T]) {
	snapshot := make(map[string]*T, len(u.docs))
	for _, doc := range u.docs {
		snapshot[a.key(doc)] = doc
	}

	a.mu.RLock()
	view := Merge(a.current.View, u.partition, snapshot)
	a.mu.RUnlock()

	ready := true
	for _, p := range a.parts {
		if !view.Has(p.Name) {
			ready = false
			break
		}
	}
	res := Result[T, S]{View: view, Stats: a.derive(view), Ready: ready}

	a.mu.Lock()
	a.current = res
	a.mu.Unlock()

	a.lmu.Lock()
	for _, ch := range a.listeners {
		repository.SendLatest(ch, res)
	}
	a.lmu.Unlock()

	if a.publisher != nil && ready {
		if err := a.publisher.Publish(ctx, res.Stats); err != nil {
			a.log.Warn("publish derived stats failed", "error", err)
		}
	}
}

// Current returns the latest merged result.
func (a *Aggregator[T, S]) Current() Result[T, S] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Listen returns a stream of results, newest only, and its release func.
func (a *Aggregator[T, S]) Listen() (<-chan Result[T, S], func()) {
	ch := make(chan Result[T, S], 1)
	a.lmu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = ch
	a.lmu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.lmu.Lock()
			if _, ok := a.listeners[id]; ok {
				delete(a.listeners, id)
				close(ch)
			}
			a.lmu.Unlock()
		})
	}
}

// Close tears down every partition subscription and stops the loop.
func (a *Aggregator[T, S]) Close() {
	a.once.Do(func() {
		a.cancel()
		for _, p := range a.parts {
			p.Source.Close()
		}
		a.wg.Wait()

		a.lmu.Lock()
		for id, ch := range a.listeners {
			delete(a.listeners, id)
			close(ch)
		}
		a.lmu.Unlock()
	})
}
