package repofake

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.Repo for tests. It implements the
// txnfake Snapshotter contract so transactional rollback behaves like a
// real store.
type FakeUserRepo struct {
	identities map[string]*users.Identity
	lock       sync.RWMutex

	// UpdateDeviceIndexErr, when set, is returned by UpdateDeviceIndex.
	// Used to exercise mid-transaction failure paths.
	UpdateDeviceIndexErr error
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		identities: make(map[string]*users.Identity),
	}
}

// Upsert stores an identity. Test seeding helper.
func (r *FakeUserRepo) Upsert(identity *users.Identity) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.identities[identity.ID] = copyIdentity(identity)
}

func (r *FakeUserRepo) GetByID(_ context.Context, id string) (*users.Identity, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	identity, ok := r.identities[id]
	if !ok {
		return nil, apperrors.ErrIdentityNotFound
	}
	return copyIdentity(identity), nil
}

func (r *FakeUserRepo) UpdateDeviceIndex(_ context.Context, id string, index map[string]string) error {
	if r.UpdateDeviceIndexErr != nil {
		return r.UpdateDeviceIndexErr
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	identity, ok := r.identities[id]
	if !ok {
		return apperrors.ErrIdentityNotFound
	}
	next := make(map[string]string, len(index))
	for device, agent := range index {
		next[device] = agent
	}
	identity.DeviceIndex = next
	return nil
}

func (r *FakeUserRepo) IterateIDs(_ context.Context, fn func(id string) error) error {
	r.lock.RLock()
	ids := make([]string, 0, len(r.identities))
	for id := range r.identities {
		ids = append(ids, id)
	}
	r.lock.RUnlock()
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot implements the txnfake Snapshotter contract.
func (r *FakeUserRepo) Snapshot() any {
	r.lock.RLock()
	defer r.lock.RUnlock()
	snapshot := make(map[string]*users.Identity, len(r.identities))
	for id, identity := range r.identities {
		snapshot[id] = copyIdentity(identity)
	}
	return snapshot
}

// Restore implements the txnfake Snapshotter contract.
func (r *FakeUserRepo) Restore(snapshot any) {
	r.lock.Lock()
	defer r.lock.Unlock()
	restored := snapshot.(map[string]*users.Identity)
	r.identities = make(map[string]*users.Identity, len(restored))
	for id, identity := range restored {
		r.identities[id] = copyIdentity(identity)
	}
}

func copyIdentity(identity *users.Identity) *users.Identity {
	cp := *identity
	cp.DeviceIndex = make(map[string]string, len(identity.DeviceIndex))
	for device, agent := range identity.DeviceIndex {
		cp.DeviceIndex[device] = agent
	}
	return &cp
}
