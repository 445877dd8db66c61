package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/experta/session-engine/reconcile"
	"github.com/experta/session-engine/sessions"
	"github.com/experta/session-engine/sessions/repofakes"
	"github.com/experta/session-engine/txn"
	"github.com/experta/session-engine/txn/txnfake"
	"github.com/experta/session-engine/users"
	"github.com/experta/session-engine/users/repofake"
)

type reconcilerFixture struct {
	sessionRepo *repofakes.FakeSessionRepo
	userRepo    *repofake.FakeUserRepo
	reconciler  *reconcile.Reconciler
}

func setupReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		sessionRepo: repofakes.NewFakeSessionRepo(),
		userRepo:    repofake.NewFakeUserRepo(),
	}
	provider := txnfake.NewProvider(f.sessionRepo, f.userRepo)

	reconciler, err := reconcile.New(reconcile.Repos{
		Sessions: f.sessionRepo,
		Users:    f.userRepo,
	}, txn.NewCoordinator(provider), zerolog.Nop())
	require.NoError(t, err)
	f.reconciler = reconciler
	return f
}

// seedUser stores an identity whose index lists every named device, with
// session rows backing only the live ones.
func (f *reconcilerFixture) seedUser(t *testing.T, userID string, liveDevices, staleDevices []string) {
	t.Helper()
	ctx := context.Background()

	index := map[string]string{}
	for _, device := range append(append([]string{}, liveDevices...), staleDevices...) {
		index[device] = "TestAgent/1.0"
	}
	f.userRepo.Upsert(&users.Identity{ID: userID, DeviceIndex: index})

	loginAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	for _, device := range liveDevices {
		require.NoError(t, f.sessionRepo.Create(ctx, &sessions.SessionRecord{
			ID:        userID + "-" + device,
			UserID:    userID,
			Device:    device,
			Platform:  sessions.PlatformApp,
			LoginAt:   loginAt,
			CreatedAt: loginAt,
		}))
	}
}

func TestReconcileRemovesStaleEntries(t *testing.T) {
	f := setupReconcilerFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1", []string{"device-a"}, []string{"device-b", "device-c"})

	result, err := f.reconciler.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.RemovedCount)
	require.Equal(t, []string{"device-b", "device-c"}, result.InvalidDevices)

	identity, err := f.userRepo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"device-a": "TestAgent/1.0"}, identity.DeviceIndex)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := setupReconcilerFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1", []string{"device-a"}, []string{"device-b"})

	first, err := f.reconciler.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, first.RemovedCount)

	second, err := f.reconciler.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 0, second.RemovedCount)
	require.Empty(t, second.InvalidDevices)
}

func TestReconcileNeverDeletesSessionRecords(t *testing.T) {
	f := setupReconcilerFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1", []string{"device-a", "device-b"}, []string{"device-c"})

	_, err := f.reconciler.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, f.sessionRepo.Count())
}

func TestReconcileTreatsLoggedOutAsStale(t *testing.T) {
	f := setupReconcilerFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1", []string{"device-a", "device-b"}, nil)

	// device-b still has a row, but it is logged out.
	rec, err := f.sessionRepo.GetByUserDevice(ctx, "user-1", "device-b")
	require.NoError(t, err)
	logoutAt := rec.LoginAt.Add(time.Hour)
	rec.LogoutAt = &logoutAt
	require.NoError(t, f.sessionRepo.Update(ctx, rec))

	result, err := f.reconciler.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"device-b"}, result.InvalidDevices)
}

func TestReconcileEmptyIndex(t *testing.T) {
	f := setupReconcilerFixture(t)

	f.userRepo.Upsert(&users.Identity{ID: "user-1", DeviceIndex: map[string]string{}})

	result, err := f.reconciler.Reconcile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 0, result.RemovedCount)
}

func TestSweepAllReconcilesEveryUser(t *testing.T) {
	f := setupReconcilerFixture(t)

	f.seedUser(t, "user-1", []string{"device-a"}, []string{"device-b"})
	f.seedUser(t, "user-2", nil, []string{"device-x", "device-y"})
	f.seedUser(t, "user-3", []string{"device-z"}, nil)

	removed, err := f.reconciler.SweepAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, removed)
}
