package service

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"societyhub/internal/auth"
	"societyhub/internal/clock"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

// maxDailyWindow bounds DailyCounts.
const maxDailyWindow = 90

// EntryRequest describes a vehicle arriving at the gate.
type EntryRequest struct {
	VehicleNo    string             `json:"vehicleNo" validate:"required,max=32"`
	VehicleClass model.VehicleClass `json:"vehicleClass" validate:"required,oneof=Resident Visitor Service"`
	House        string             `json:"associatedHouse" validate:"max=64"`
}

// GateSnapshot is the live gate view pushed by Watch.
type GateSnapshot struct {
	Active        []*model.GateLog            `json:"active"`
	InsideByHouse map[string][]*model.GateLog `json:"insideByHouse"`
	Today         GateStats                   `json:"today"`
}

// GateLogTracker records vehicle entries and exits and derives gate statistics.
type GateLogTracker interface {
	RecordEntry(ctx context.Context, operator auth.Principal, req EntryRequest) (*model.GateLog, error)
	RecordExit(ctx context.Context, id uuid.UUID, operator auth.Principal) (*model.GateLog, error)
	// The read operations require the gate.read action.
	ActiveVehicles(ctx context.Context, viewer auth.Principal) ([]*model.GateLog, error)
	ByHouse(ctx context.Context, viewer auth.Principal) (map[string][]*model.GateLog, error)
	TodayStats(ctx context.Context, viewer auth.Principal) (GateStats, error)
	DailyCounts(ctx context.Context, viewer auth.Principal, days int) ([]DailyCount, error)
	Watch(ctx context.Context, viewer auth.Principal) (*GateWatch, error)
}

type gateLogTracker struct {
	repo     repository.Repository[model.GateLog]
	authz    auth.Authorizer
	clock    clock.Clock
	loc      *time.Location
	activity ActivityRecorder
	validate *validator.Validate
	log      *logger.Logger
}

// NewGateLogTracker creates a tracker whose calendar days are taken in loc.
func NewGateLogTracker(
	repo repository.Repository[model.GateLog],
	authz auth.Authorizer,
	clk clock.Clock,
	loc *time.Location,
	activity ActivityRecorder,
	log *logger.Logger,
) GateLogTracker {
	return &gateLogTracker{
		repo:     repo,
		authz:    authz,
		clock:    clk,
		loc:      loc,
		activity: activity,
		validate: NewValidator(),
		log:      log.With("service", "GateLogTracker"),
	}
}

// RecordEntry always opens a new log. Callers guarantee the vehicle has no
// other active log.
func (t *gateLogTracker) RecordEntry(ctx context.Context, operator auth.Principal, req EntryRequest) (*model.GateLog, error) {
	if !t.authz.IsAuthorized(ctx, operator, auth.ActionGateEntry) {
		return nil, &errors.UnauthorizedError{Principal: operator.ID, Action: string(auth.ActionGateEntry)}
	}
	verr := &errors.ValidationError{}
	collectFieldErrors(t.validate.Struct(req), verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	entry := &model.GateLog{
		VehicleNo:    strings.ToUpper(strings.TrimSpace(req.VehicleNo)),
		VehicleClass: req.VehicleClass,
		EntryTime:    t.clock.Now().UTC(),
		LoggedBy:     operator.ID,
	}
	if h := strings.TrimSpace(req.House); h != "" {
		entry.AssociatedHouse = &h
	}
	id, err := t.repo.Create(ctx, entry)
	if err != nil {
		return nil, err
	}
	t.activity.Record(ctx, model.KindGateLog, id, model.ActivityEntered, operator.ID, entry.VehicleNo)
	return entry, nil
}

// RecordExit closes a log once. The write only applies while exit_time is
// still empty, so of two concurrent exits exactly one succeeds.
func (t *gateLogTracker) RecordExit(ctx context.Context, id uuid.UUID, operator auth.Principal) (*model.GateLog, error) {
	if !t.authz.IsAuthorized(ctx, operator, auth.ActionGateExit) {
		return nil, &errors.UnauthorizedError{Principal: operator.ID, Action: string(auth.ActionGateExit)}
	}

	current, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.ExitTime != nil {
		return nil, &errors.AlreadyExitedError{LogID: id.String(), VehicleNo: current.VehicleNo, ExitTime: *current.ExitTime}
	}

	exit := t.clock.Now().UTC()
	if exit.Before(current.EntryTime) {
		exit = current.EntryTime
	}
	updated, err := t.repo.UpdateWhen(ctx, id, map[string]any{"exit_time": nil}, repository.Patch{
		"exit_time":      exit,
		"exit_logged_by": operator.ID,
	})
	var conflict *errors.ConflictError
	if stderrors.As(err, &conflict) {
		latest, gerr := t.repo.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if latest.ExitTime == nil {
			return nil, err
		}
		return nil, &errors.AlreadyExitedError{LogID: id.String(), VehicleNo: latest.VehicleNo, ExitTime: *latest.ExitTime}
	}
	if err != nil {
		return nil, err
	}
	t.activity.Record(ctx, model.KindGateLog, id, model.ActivityExited, operator.ID, current.VehicleNo)
	return updated, nil
}

func (t *gateLogTracker) canRead(ctx context.Context, viewer auth.Principal) error {
	if !t.authz.IsAuthorized(ctx, viewer, auth.ActionGateRead) {
		return &errors.UnauthorizedError{Principal: viewer.ID, Action: string(auth.ActionGateRead)}
	}
	return nil
}

func (t *gateLogTracker) ActiveVehicles(ctx context.Context, viewer auth.Principal) ([]*model.GateLog, error) {
	if err := t.canRead(ctx, viewer); err != nil {
		return nil, err
	}
	return t.repo.List(ctx, repository.Query{
		Filter: map[string]any{"exit_time": nil},
		Order:  "entry_time ASC",
	})
}

func (t *gateLogTracker) ByHouse(ctx context.Context, viewer auth.Principal) (map[string][]*model.GateLog, error) {
	if err := t.canRead(ctx, viewer); err != nil {
		return nil, err
	}
	logs, err := t.repo.List(ctx, repository.Query{
		Where: []repository.Cond{repository.Where("associated_house IS NOT NULL AND associated_house <> ''")},
		Order: "entry_time DESC",
	})
	if err != nil {
		return nil, err
	}
	return GroupByHouse(logs), nil
}

// todayQuery selects every log that can affect today's counters: anything
// still inside plus anything that entered or exited since start.
func todayQuery(start time.Time) repository.Query {
	s := start.UTC()
	return repository.Query{
		Where: []repository.Cond{repository.Where("exit_time IS NULL OR entry_time >= ? OR exit_time >= ?", s, s)},
		Order: "entry_time ASC",
	}
}

// TodayStats derives the counters from one read, so Inside always equals the
// number of active logs in that read.
func (t *gateLogTracker) TodayStats(ctx context.Context, viewer auth.Principal) (GateStats, error) {
	if err := t.canRead(ctx, viewer); err != nil {
		return GateStats{}, err
	}
	start, end := DayBounds(t.clock.Now(), t.loc)
	logs, err := t.repo.List(ctx, todayQuery(start))
	if err != nil {
		return GateStats{}, err
	}
	return ComputeDayStats(logs, start, end), nil
}

func (t *gateLogTracker) DailyCounts(ctx context.Context, viewer auth.Principal, days int) ([]DailyCount, error) {
	if err := t.canRead(ctx, viewer); err != nil {
		return nil, err
	}
	if days < 1 || days > maxDailyWindow {
		return nil, errors.NewValidationError(errors.FieldError{Field: "days", Message: "must be between 1 and 90"})
	}
	todayStart, _ := DayBounds(t.clock.Now(), t.loc)
	start := todayStart.AddDate(0, 0, -(days - 1))
	s := start.UTC()
	logs, err := t.repo.List(ctx, repository.Query{
		Where: []repository.Cond{repository.Where("entry_time >= ? OR exit_time >= ?", s, s)},
	})
	if err != nil {
		return nil, err
	}
	return ComputeDailyCounts(logs, start, days, t.loc), nil
}

func (t *gateLogTracker) snapshot(logs []*model.GateLog) GateSnapshot {
	start, end := DayBounds(t.clock.Now(), t.loc)
	active := ActiveOnly(logs)
	sortByEntry(active)
	return GateSnapshot{
		Active:        active,
		InsideByHouse: GroupByHouse(active),
		Today:         ComputeDayStats(logs, start, end),
	}
}

// Watch streams a fresh GateSnapshot after every gate log change.
func (t *gateLogTracker) Watch(ctx context.Context, viewer auth.Principal) (*GateWatch, error) {
	if err := t.canRead(ctx, viewer); err != nil {
		return nil, err
	}
	start, _ := DayBounds(t.clock.Now(), t.loc)
	sub, err := t.repo.Subscribe(ctx, todayQuery(start))
	if err != nil {
		return nil, err
	}
	w := &GateWatch{sub: sub, out: make(chan GateSnapshot, 1), done: make(chan struct{})}
	go func() {
		defer close(w.done)
		defer close(w.out)
		for logs := range sub.Snapshots() {
			repository.SendLatest(w.out, t.snapshot(logs))
		}
	}()
	return w, nil
}

// GateWatch is the handle returned by Watch.
type GateWatch struct {
	sub  *repository.Subscription[model.GateLog]
	out  chan GateSnapshot
	done chan struct{}
	once sync.Once
}

// C delivers snapshots; it is closed when the watch ends.
func (w *GateWatch) C() <-chan GateSnapshot { return w.out }

// Close ends the watch and waits for it to release its subscription.
func (w *GateWatch) Close() {
	w.once.Do(w.sub.Close)
	<-w.done
}
