package service

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
)

func karachi(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)
	return loc
}

func newTracker(t *testing.T, local time.Time) (*fixture, GateLogTracker) {
	t.Helper()
	fx := newFixture(t, local)
	return fx, NewGateLogTracker(fx.gateLogs, fx.authz, fx.clock, local.Location(), fx.activity, logger.NewNop())
}

func visitor(vehicle, house string) EntryRequest {
	return EntryRequest{VehicleNo: vehicle, VehicleClass: model.VehicleVisitor, House: house}
}

func TestDayBounds(t *testing.T) {
	loc := karachi(t)

	tests := []struct {
		name      string
		at        time.Time
		wantStart time.Time
	}{
		{
			name:      "late UTC evening is the next local day",
			at:        time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC),
			wantStart: time.Date(2024, 5, 2, 0, 0, 0, 0, loc),
		},
		{
			name:      "local midnight belongs to its own day",
			at:        time.Date(2024, 5, 2, 0, 0, 0, 0, loc),
			wantStart: time.Date(2024, 5, 2, 0, 0, 0, 0, loc),
		},
		{
			name:      "one second before midnight",
			at:        time.Date(2024, 5, 1, 23, 59, 59, 0, loc),
			wantStart: time.Date(2024, 5, 1, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := DayBounds(tt.at, loc)
			assert.True(t, start.Equal(tt.wantStart), "start %s", start)
			assert.Equal(t, 24*time.Hour, end.Sub(start))
		})
	}
}

func TestGateLogTracker_EntryThenExitSameDay(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	fx, tracker := newTracker(t, time.Date(2024, 5, 1, 9, 0, 0, 0, loc))

	entry, err := tracker.RecordEntry(ctx, guard, visitor("abc-123", "A-12"))
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", entry.VehicleNo)
	assert.Nil(t, entry.ExitTime)

	active, err := tracker.ActiveVehicles(ctx, guard)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, entry.ID, active[0].ID)

	fx.clock.Set(time.Date(2024, 5, 1, 17, 0, 0, 0, loc))
	exited, err := tracker.RecordExit(ctx, entry.ID, guard)
	require.NoError(t, err)
	require.NotNil(t, exited.ExitTime)
	assert.True(t, exited.ExitTime.Equal(time.Date(2024, 5, 1, 17, 0, 0, 0, loc)))
	assert.Equal(t, guard.ID, *exited.ExitLoggedBy)

	active, err = tracker.ActiveVehicles(ctx, guard)
	require.NoError(t, err)
	assert.Empty(t, active)

	stats, err := tracker.TodayStats(ctx, guard)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", stats.Day)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Exits)
	assert.Equal(t, 0, stats.Inside)

	assert.Equal(t, []model.ActivityAction{model.ActivityEntered, model.ActivityExited}, fx.activity.actions())
}

func TestGateLogTracker_SecondExitIsRejected(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	fx, tracker := newTracker(t, time.Date(2024, 5, 1, 9, 0, 0, 0, loc))

	entry, err := tracker.RecordEntry(ctx, guard, visitor("LEA-42", "B-7"))
	require.NoError(t, err)
	fx.clock.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, loc))
	_, err = tracker.RecordExit(ctx, entry.ID, guard)
	require.NoError(t, err)

	fx.clock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, loc))
	_, err = tracker.RecordExit(ctx, entry.ID, guard)
	var exited *errors.AlreadyExitedError
	require.ErrorAs(t, err, &exited)
	assert.Equal(t, "LEA-42", exited.VehicleNo)

	stored, err := fx.gateLogs.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.ExitTime.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, loc)))
}

func TestGateLogTracker_RacingExitsCloseOnce(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	fx, tracker := newTracker(t, time.Date(2024, 5, 1, 9, 0, 0, 0, loc))

	entry, err := tracker.RecordEntry(ctx, guard, visitor("RACE-1", "A-12"))
	require.NoError(t, err)
	fx.clock.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, loc))

	racing := &interleaved[model.GateLog]{Repository: fx.gateLogs, between: func() {
		_, err := tracker.RecordExit(ctx, entry.ID, guard)
		require.NoError(t, err)
	}}
	second := NewGateLogTracker(racing, fx.authz, fx.clock, loc, fx.activity, logger.NewNop())

	_, err = second.RecordExit(ctx, entry.ID, admin)
	var exited *errors.AlreadyExitedError
	require.ErrorAs(t, err, &exited)
	assert.True(t, exited.ExitTime.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, loc)))

	stored, err := fx.gateLogs.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, guard.ID, *stored.ExitLoggedBy)
}

func TestGateLogTracker_StatsAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	fx, tracker := newTracker(t, time.Date(2024, 4, 30, 22, 0, 0, 0, loc))

	overnight, err := tracker.RecordEntry(ctx, guard, visitor("NIGHT-1", "A-12"))
	require.NoError(t, err)
	stillInside, err := tracker.RecordEntry(ctx, guard, EntryRequest{VehicleNo: "SRV-9", VehicleClass: model.VehicleService})
	require.NoError(t, err)

	fx.clock.Set(time.Date(2024, 5, 1, 8, 0, 0, 0, loc))
	_, err = tracker.RecordExit(ctx, overnight.ID, guard)
	require.NoError(t, err)
	fx.clock.Set(time.Date(2024, 5, 1, 9, 30, 0, 0, loc))
	_, err = tracker.RecordEntry(ctx, guard, visitor("DAY-2", "C-3"))
	require.NoError(t, err)

	stats, err := tracker.TodayStats(ctx, guard)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries, "yesterday's arrivals are not today's entries")
	assert.Equal(t, 1, stats.Exits)

	active, err := tracker.ActiveVehicles(ctx, guard)
	require.NoError(t, err)
	assert.Equal(t, len(active), stats.Inside)
	assert.Equal(t, stillInside.ID, active[0].ID)

	byHouse, err := tracker.ByHouse(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, byHouse, 2)
	assert.Len(t, byHouse["A-12"], 1)
	assert.NotContains(t, byHouse, "")

	daily, err := tracker.DailyCounts(ctx, admin, 3)
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{
		{Day: "2024-04-29"},
		{Day: "2024-04-30", Entries: 2},
		{Day: "2024-05-01", Entries: 1, Exits: 1},
	}, daily)
}

func TestGateLogTracker_Refusals(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	_, tracker := newTracker(t, time.Date(2024, 5, 1, 9, 0, 0, 0, loc))

	_, err := tracker.RecordEntry(ctx, resident, visitor("ABC-123", "A-12"))
	var unauthorized *errors.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)

	_, err = tracker.RecordEntry(ctx, guard, EntryRequest{VehicleNo: "", VehicleClass: "Truck"})
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	_, err = tracker.RecordEntry(ctx, guard, visitor("ABC-123", ""))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "associatedHouse", verr.Fields[0].Field)

	for _, days := range []int{0, 91} {
		_, err = tracker.DailyCounts(ctx, guard, days)
		require.ErrorAs(t, err, &verr, "days=%d", days)
	}
}

func TestGateLogTracker_ReadsFollowPolicy(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	fx := newFixture(t, time.Date(2024, 5, 1, 9, 0, 0, 0, loc))
	// guards keep the gate but lose the read views
	authz := auth.NewRoleAuthorizer(auth.ParsePolicy(map[string]string{"guard": "gate.entry|gate.exit"}))
	tracker := NewGateLogTracker(fx.gateLogs, authz, fx.clock, loc, fx.activity, logger.NewNop())

	_, err := tracker.RecordEntry(ctx, guard, visitor("ABC-123", "A-12"))
	require.NoError(t, err)

	reads := map[string]func(auth.Principal) error{
		"active":   func(p auth.Principal) error { _, err := tracker.ActiveVehicles(ctx, p); return err },
		"by house": func(p auth.Principal) error { _, err := tracker.ByHouse(ctx, p); return err },
		"today":    func(p auth.Principal) error { _, err := tracker.TodayStats(ctx, p); return err },
		"daily":    func(p auth.Principal) error { _, err := tracker.DailyCounts(ctx, p, 7); return err },
		"watch": func(p auth.Principal) error {
			w, err := tracker.Watch(ctx, p)
			if w != nil {
				w.Close()
			}
			return err
		},
	}
	for name, read := range reads {
		t.Run(name, func(t *testing.T) {
			var unauthorized *errors.UnauthorizedError
			require.ErrorAs(t, read(guard), &unauthorized)
			assert.Equal(t, string(auth.ActionGateRead), unauthorized.Action)
			require.ErrorAs(t, read(resident), &unauthorized)
			assert.NoError(t, read(admin))
		})
	}
}

func TestGateLogTracker_Watch(t *testing.T) {
	ctx := context.Background()
	loc := karachi(t)
	_, tracker := newTracker(t, time.Date(2024, 5, 1, 9, 0, 0, 0, loc))

	w, err := tracker.Watch(ctx, guard)
	require.NoError(t, err)
	defer w.Close()

	next := func() GateSnapshot {
		t.Helper()
		select {
		case s, ok := <-w.C():
			require.True(t, ok, "watch closed")
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot delivered")
			return GateSnapshot{}
		}
	}

	assert.Empty(t, next().Active)

	_, err = tracker.RecordEntry(ctx, guard, visitor("ABC-123", "A-12"))
	require.NoError(t, err)

	var snap GateSnapshot
	for i := 0; i < 5 && len(snap.Active) == 0; i++ {
		snap = next()
	}
	require.Len(t, snap.Active, 1)
	assert.Equal(t, 1, snap.Today.Entries)
	assert.Equal(t, len(snap.Active), snap.Today.Inside)
	assert.Len(t, snap.InsideByHouse["A-12"], 1)

	w.Close()
	for range w.C() {
	}
}
