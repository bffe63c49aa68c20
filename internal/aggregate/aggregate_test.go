package aggregate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"societyhub/internal/logger"
	"societyhub/internal/model"
)

func TestMergeReplacesOnlyThePublishingPartition(t *testing.T) {
	v := NewView[string]()
	v = Merge(v, "residents", map[string]string{"u1": "Ali", "u2": "Sara"})
	v = Merge(v, "guards", map[string]string{"u1": "Karim"})

	next := Merge(v, "residents", map[string]string{"u2": "Sara B."})

	_, ok := next.Get("residents", "u1")
	assert.False(t, ok, "row deleted from residents must disappear")
	name, _ := next.Get("residents", "u2")
	assert.Equal(t, "Sara B.", name)
	guard, ok := next.Get("guards", "u1")
	assert.True(t, ok, "same key in another partition is untouched")
	assert.Equal(t, "Karim", guard)
	assert.Equal(t, 2, next.Len())

	// the input view is unchanged
	assert.Equal(t, 3, v.Len())
	old, _ := v.Get("residents", "u1")
	assert.Equal(t, "Ali", old)
}

func TestMergeEmptySnapshotClearsPartition(t *testing.T) {
	v := Merge(NewView[int](), "admins", map[string]int{"a": 1})
	v = Merge(v, "admins", nil)

	assert.True(t, v.Has("admins"))
	assert.Equal(t, 0, v.PartitionLen("admins"))
	assert.Empty(t, v.Rows())
}

func TestMergeDoesNotAliasSnapshot(t *testing.T) {
	snap := map[string]int{"a": 1}
	v := Merge(NewView[int](), "p", snap)
	snap["b"] = 2

	assert.Equal(t, 1, v.Len())
}

func TestRowsAreOrdered(t *testing.T) {
	v := Merge(NewView[int](), "b", map[string]int{"y": 2, "x": 1})
	v = Merge(v, "a", map[string]int{"z": 3})

	rows := v.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, Row[int]{Partition: "a", Key: "z", Value: 3}, rows[0])
	assert.Equal(t, "x", rows[1].Key)
	assert.Equal(t, "y", rows[2].Key)
}

func profile(name, house string, role model.Role) *model.UserProfile {
	return &model.UserProfile{ID: uuid.New(), Name: name, HouseNo: house, Role: role}
}

func TestDeriveUserStats(t *testing.T) {
	v := Merge(NewView[*model.UserProfile](), "resident", map[string]*model.UserProfile{
		"1": profile("Ali", "A-1", model.RoleResident),
		"2": profile("Sara", "A-1", model.RoleResident),
		"3": profile("Omar", "B-7", model.RoleResident),
	})
	v = Merge(v, "guard", map[string]*model.UserProfile{"1": profile("Karim", "", model.RoleGuard)})

	stats := DeriveUserStats(v)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int{"resident": 3, "guard": 1}, stats.ByRole)
	assert.Equal(t, map[string]int{"A-1": 2, "B-7": 1}, stats.ByHouse)
}

type fakeSource struct {
	snaps  chan []*model.UserProfile
	errs   chan error
	once   sync.Once
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{snaps: make(chan []*model.UserProfile), errs: make(chan error)}
}

func (f *fakeSource) Snapshots() <-chan []*model.UserProfile { return f.snaps }
func (f *fakeSource) Errors() <-chan error                 { return f.errs }
func (f *fakeSource) Close() {
	f.once.Do(func() {
		f.closed = true
		close(f.snaps)
		close(f.errs)
	})
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, stats UserDirectoryStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func await(t *testing.T, ch <-chan Result[model.UserProfile, UserDirectoryStats], cond func(Result[model.UserProfile, UserDirectoryStats]) bool) Result[model.UserProfile, UserDirectoryStats] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case res, ok := <-ch:
			require.True(t, ok)
			if cond(res) {
				return res
			}
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

func TestAggregatorMergesPartitions(t *testing.T) {
	residents, guards := newFakeSource(), newFakeSource()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	agg := New(context.Background(), profileKey, DeriveUserStats, Publisher[UserDirectoryStats](pub), logger.NewNop(),
		Partition[model.UserProfile]{Name: "resident", Source: residents},
		Partition[model.UserProfile]{Name: "guard", Source: guards},
	)
	updates, release := agg.Listen()
	defer release()

	ali := profile("Ali", "A-1", model.RoleResident)
	residents.snaps <- []*model.UserProfile{ali, profile("Sara", "A-2", model.RoleResident)}
	res := await(t, updates, func(r Result[model.UserProfile, UserDirectoryStats]) bool { return r.Stats.Total == 2 })
	assert.False(t, res.Ready)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	guards.snaps <- []*model.UserProfile{profile("Karim", "", model.RoleGuard)}
	res = await(t, updates, func(r Result[model.UserProfile, UserDirectoryStats]) bool { return r.Ready })
	assert.Equal(t, 3, res.Stats.Total)

	// Sara left: the residents partition republishes without her
	residents.snaps <- []*model.UserProfile{ali}
	res = await(t, updates, func(r Result[model.UserProfile, UserDirectoryStats]) bool { return r.Stats.Total == 2 })
	assert.Equal(t, map[string]int{"resident": 1, "guard": 1}, res.Stats.ByRole)
	assert.Equal(t, map[string]int{"A-1": 1}, res.Stats.ByHouse)
	assert.Equal(t, 2, agg.Current().View.Len())

	agg.Close()
	assert.True(t, residents.closed)
	assert.True(t, guards.closed)
	_, ok := <-updates
	assert.False(t, ok)
	pub.AssertCalled(t, "Publish", mock.Anything, mock.Anything)
}
