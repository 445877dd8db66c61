package txn_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/sessions"
	"github.com/experta/session-engine/sessions/repofakes"
	"github.com/experta/session-engine/txn"
	"github.com/experta/session-engine/txn/txnfake"
)

func newRecord(device string) *sessions.SessionRecord {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &sessions.SessionRecord{
		ID:        "session-" + device,
		UserID:    "user-1",
		Device:    device,
		Platform:  sessions.PlatformApp,
		LoginAt:   now,
		CreatedAt: now,
	}
}

func TestRunCommitsWrites(t *testing.T) {
	store := repofakes.NewFakeSessionRepo()
	provider := txnfake.NewProvider(store)
	coordinator := txn.NewCoordinator(provider)

	err := coordinator.Run(context.Background(), func(ctx context.Context) error {
		return store.Create(ctx, newRecord("device-a"))
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.Count())
	require.Equal(t, 1, provider.CommitCount)
}

func TestRunAbortsOnError(t *testing.T) {
	store := repofakes.NewFakeSessionRepo()
	provider := txnfake.NewProvider(store)
	coordinator := txn.NewCoordinator(provider)

	boom := errors.New("boom")
	err := coordinator.Run(context.Background(), func(ctx context.Context) error {
		if err := store.Create(ctx, newRecord("device-a")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, store.Count())
	require.Equal(t, 1, provider.AbortCount)
}

func TestRunCommitFailureIsRetryable(t *testing.T) {
	store := repofakes.NewFakeSessionRepo()
	provider := txnfake.NewProvider(store)
	coordinator := txn.NewCoordinator(provider)

	provider.FailCommits = 1
	err := coordinator.Run(context.Background(), func(ctx context.Context) error {
		return store.Create(ctx, newRecord("device-a"))
	})
	require.ErrorIs(t, err, apperrors.ErrSessionWriteFailed)
	require.True(t, apperrors.Retryable(err))
	require.Equal(t, 0, store.Count())
}

func TestRunReleasesProviderAfterFailure(t *testing.T) {
	store := repofakes.NewFakeSessionRepo()
	provider := txnfake.NewProvider(store)
	coordinator := txn.NewCoordinator(provider)

	provider.FailCommits = 1
	_ = coordinator.Run(context.Background(), func(ctx context.Context) error {
		return store.Create(ctx, newRecord("device-a"))
	})

	// The provider must be usable again for the next transaction.
	err := coordinator.Run(context.Background(), func(ctx context.Context) error {
		return store.Create(ctx, newRecord("device-b"))
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.Count())
	require.Equal(t, 2, provider.BeginCount)
}
