package reconcile

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/sessions"
	"github.com/experta/session-engine/txn"
	"github.com/experta/session-engine/users"
)

// Repos holds the repository dependencies for the Reconciler.
type Repos struct {
	Sessions sessions.Repo
	Users    users.Repo
}

// Reconciler repairs drift between the canonical session store and the
// denormalized device index. The session store is the source of truth for
// liveness: reconciliation only ever prunes the index side, never session
// records.
type Reconciler struct {
	repos       Repos
	coordinator *txn.Coordinator
	logger      zerolog.Logger
}

// Result reports one repair pass over a user's device index.
type Result struct {
	RemovedCount   int
	InvalidDevices []string
}

// New creates a Reconciler with the required dependencies.
func New(repos Repos, coordinator *txn.Coordinator, logger zerolog.Logger) (*Reconciler, error) {
	if repos.Sessions == nil {
		return nil, errors.New("[reconcile.New] Sessions repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[reconcile.New] Users repo is required")
	}
	if coordinator == nil {
		return nil, errors.New("[reconcile.New] coordinator is required")
	}
	return &Reconciler{
		repos:       repos,
		coordinator: coordinator,
		logger:      logger,
	}, nil
}

// Reconcile removes every device-index entry that has no matching live
// session record, inside one transaction. Idempotent: a second run on a
// consistent user removes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (*Result, error) {
	result := &Result{}
	err := r.coordinator.Run(ctx, func(ctx context.Context) error {
		identity, err := r.repos.Users.GetByID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "[Reconciler.Reconcile] users.GetByID")
		}
		if len(identity.DeviceIndex) == 0 {
			return nil
		}

		records, err := r.repos.Sessions.ListByUser(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "[Reconciler.Reconcile] sessions.ListByUser")
		}
		liveDevices := make(map[string]struct{}, len(records))
		for _, rec := range records {
			if rec.Live() {
				liveDevices[rec.Device] = struct{}{}
			}
		}

		index := identity.CloneDeviceIndex()
		for device := range index {
			if _, live := liveDevices[device]; !live {
				result.InvalidDevices = append(result.InvalidDevices, device)
				delete(index, device)
			}
		}
		if len(result.InvalidDevices) == 0 {
			return nil
		}
		sort.Strings(result.InvalidDevices)
		result.RemovedCount = len(result.InvalidDevices)

		if err := r.repos.Users.UpdateDeviceIndex(ctx, userID, index); err != nil {
			return errors.Wrap(err, "[Reconciler.Reconcile] users.UpdateDeviceIndex")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.RemovedCount > 0 {
		r.logger.Info().
			Str("user", userID).
			Int("removed", result.RemovedCount).
			Strs("devices", result.InvalidDevices).
			Msg("pruned stale device index entries")
	}
	return result, nil
}

// SweepAll reconciles every known user. Per-user failures are logged and do
// not stop the sweep; the count of pruned index entries is returned.
func (r *Reconciler) SweepAll(ctx context.Context) (int, error) {
	totalRemoved := 0
	err := r.repos.Users.IterateIDs(ctx, func(id string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result, err := r.Reconcile(ctx, id)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrIdentityNotFound) {
				return nil
			}
			r.logger.Error().Err(err).Str("user", id).Msg("reconcile sweep failed for user")
			return nil
		}
		totalRemoved += result.RemovedCount
		return nil
	})
	if err != nil {
		return totalRemoved, errors.Wrap(err, "[Reconciler.SweepAll]")
	}
	return totalRemoved, nil
}
