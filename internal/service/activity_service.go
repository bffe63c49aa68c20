package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"societyhub/internal/auth"
	"societyhub/internal/clock"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

// ActivityRecorder records lifecycle outcomes. Recording never fails the
// command that produced the outcome.
type ActivityRecorder interface {
	Record(ctx context.Context, kind model.Kind, resourceID uuid.UUID, action model.ActivityAction, actor, detail string)
}

const (
	activityBatchSize     = 10
	activityFlushInterval = time.Second
)

// ActivityLog writes entries through a background batching worker.
type ActivityLog struct {
	repo  repository.ActivityLogRepository
	clock clock.Clock
	log   *logger.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan model.ActivityEntry
	done   chan struct{}
}

// NewActivityLog creates the recorder and starts its worker.
func NewActivityLog(repo repository.ActivityLogRepository, clk clock.Clock, log *logger.Logger) *ActivityLog {
	a := &ActivityLog{
		repo:  repo,
		clock: clk,
		log:   log.With("service", "ActivityLog"),
		ch:    make(chan model.ActivityEntry, 100),
		done:  make(chan struct{}),
	}
	go a.worker()
	return a
}

// Record queues an entry; when the queue is full it is written synchronously.
func (a *ActivityLog) Record(ctx context.Context, kind model.Kind, resourceID uuid.UUID, action model.ActivityAction, actor, detail string) {
	entry := model.ActivityEntry{
		Kind:       kind,
		ResourceID: resourceID,
		Action:     action,
		Actor:      actor,
		Detail:     detail,
		CreatedAt:  a.clock.Now(),
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.write(ctx, []model.ActivityEntry{entry})
		return
	}
	select {
	case a.ch <- entry:
	default:
		a.write(ctx, []model.ActivityEntry{entry})
	}
}

// Close stops accepting queued entries and waits for the final flush.
func (a *ActivityLog) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *ActivityLog) worker() {
	defer close(a.done)
	ctx := context.Background()
	batch := make([]model.ActivityEntry, 0, activityBatchSize)
	ticker := time.NewTicker(activityFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-a.ch:
			if !ok {
				a.write(ctx, batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= activityBatchSize {
				a.write(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.write(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (a *ActivityLog) write(ctx context.Context, entries []model.ActivityEntry) {
	if len(entries) == 0 {
		return
	}
	if err := a.repo.CreateBatch(context.WithoutCancel(ctx), entries); err != nil {
		a.log.Warn("activity log write failed", "entries", len(entries), "error", err)
	}
}

// ActivityHistory reads the activity log of one resource.
type ActivityHistory interface {
	// History returns the entries of a resource, oldest first. Reviewers of
	// the kind may read it; gate logs need gate.read.
	History(ctx context.Context, viewer auth.Principal, kind model.Kind, id uuid.UUID) ([]model.ActivityEntry, error)
}

type activityHistory struct {
	repo  repository.ActivityLogRepository
	authz auth.Authorizer
}

// NewActivityHistory creates an ActivityHistory over repo.
func NewActivityHistory(repo repository.ActivityLogRepository, authz auth.Authorizer) ActivityHistory {
	return &activityHistory{repo: repo, authz: authz}
}

func (h *activityHistory) History(ctx context.Context, viewer auth.Principal, kind model.Kind, id uuid.UUID) ([]model.ActivityEntry, error) {
	act := auth.ActionFor(kind, auth.VerbReview)
	if kind == model.KindGateLog {
		act = auth.ActionGateRead
	}
	if !h.authz.IsAuthorized(ctx, viewer, act) {
		return nil, &errors.UnauthorizedError{Principal: viewer.ID, Action: string(act)}
	}
	return h.repo.ListForResource(ctx, kind, id)
}
