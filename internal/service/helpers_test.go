package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"societyhub/internal/auth"
	"societyhub/internal/clock"
	"societyhub/internal/db"
	"societyhub/internal/feed"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

var (
	resident = auth.Principal{ID: "res-1", Role: model.RoleResident, Name: "Ayesha", House: "A-12"}
	neighbor = auth.Principal{ID: "res-2", Role: model.RoleResident, Name: "Bilal", House: "B-7"}
	admin    = auth.Principal{ID: "adm-1", Role: model.RoleAdmin, Name: "Office"}
	guard    = auth.Principal{ID: "grd-1", Role: model.RoleGuard, Name: "Gate 1"}
)

// MockUploader is a mock implementation of storage.Uploader and storage.Remover.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, data []byte, path string) (string, error) {
	args := m.Called(ctx, data, path)
	return args.String(0), args.Error(1)
}

func (m *MockUploader) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// MockAuthorizer is a mock implementation of auth.Authorizer.
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) IsAuthorized(ctx context.Context, p auth.Principal, action auth.Action) bool {
	args := m.Called(ctx, p, action)
	return args.Bool(0)
}

// MockActivityLogRepository is a mock implementation of ActivityLogRepository.
type MockActivityLogRepository struct {
	mock.Mock
}

func (m *MockActivityLogRepository) CreateBatch(ctx context.Context, entries []model.ActivityEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockActivityLogRepository) ListForResource(ctx context.Context, kind model.Kind, resourceID uuid.UUID) ([]model.ActivityEntry, error) {
	args := m.Called(ctx, kind, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ActivityEntry), args.Error(1)
}

// recordedActivity keeps every Record call in memory.
type recordedActivity struct {
	mu      sync.Mutex
	entries []model.ActivityEntry
}

func (r *recordedActivity) Record(_ context.Context, kind model.Kind, id uuid.UUID, action model.ActivityAction, actor, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, model.ActivityEntry{Kind: kind, ResourceID: id, Action: action, Actor: actor, Detail: detail})
}

func (r *recordedActivity) actions() []model.ActivityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ActivityAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// failingDelete overrides Delete of an otherwise real repository.
type failingDelete[T any] struct {
	repository.Repository[T]
	err error
}

func (f failingDelete[T]) Delete(context.Context, uuid.UUID) error { return f.err }

// interleaved runs between once, right after the first Get returns, to let
// another writer act between a service's read and its write.
type interleaved[T any] struct {
	repository.Repository[T]
	between func()
	once    sync.Once
}

func (r *interleaved[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	doc, err := r.Repository.Get(ctx, id)
	r.once.Do(r.between)
	return doc, err
}

type fixture struct {
	db         *gorm.DB
	feed       *feed.MemoryFeed
	clock      *clock.Fake
	listings   repository.Repository[model.Listing]
	complaints repository.Repository[model.Complaint]
	bills      repository.Repository[model.Bill]
	gateLogs   repository.Repository[model.GateLog]
	residents  repository.Repository[model.UserProfile]
	authz      *auth.RoleAuthorizer
	activity   *recordedActivity
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), db.Config())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	f := feed.NewMemory()
	clk := clock.NewFake(now)
	log := logger.NewNop()
	return &fixture{
		db:         gormDB,
		feed:       f,
		clock:      clk,
		listings:   repository.New[model.Listing](gormDB, f, clk, log),
		complaints: repository.New[model.Complaint](gormDB, f, clk, log),
		bills:      repository.New[model.Bill](gormDB, f, clk, log),
		gateLogs: repository.New[model.GateLog](gormDB, f, clk, log,
			repository.WithImmutable("entry_time", "vehicle_no", "logged_by")),
		residents: repository.New[model.UserProfile](gormDB, f, clk, log,
			repository.WithTable(model.RoleResident.Collection())),
		authz:    auth.NewRoleAuthorizer(auth.DefaultPolicy()),
		activity: &recordedActivity{},
	}
}
