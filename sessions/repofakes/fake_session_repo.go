package repofakes

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory sessions.Repo for tests. It implements
// the txnfake Snapshotter contract so transactional rollback behaves like a
// real store.
type FakeSessionRepo struct {
	records map[string]*sessions.SessionRecord // keyed by userID+"/"+device
	lock    sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		records: make(map[string]*sessions.SessionRecord),
	}
}

func key(userID, device string) string {
	return userID + "/" + device
}

func (r *FakeSessionRepo) GetByID(_ context.Context, id string) (*sessions.SessionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return copyRecord(rec), nil
		}
	}
	return nil, apperrors.ErrSessionNotFound
}

func (r *FakeSessionRepo) GetByUserDevice(_ context.Context, userID, device string) (*sessions.SessionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rec, ok := r.records[key(userID, device)]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return copyRecord(rec), nil
}

func (r *FakeSessionRepo) GetByRefreshToken(_ context.Context, userID, refreshToken string) (*sessions.SessionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, rec := range r.records {
		if rec.UserID == userID && rec.RefreshToken == refreshToken {
			return copyRecord(rec), nil
		}
	}
	return nil, apperrors.ErrSessionNotFound
}

func (r *FakeSessionRepo) GetByAccessToken(_ context.Context, accessToken string) (*sessions.SessionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, rec := range r.records {
		if rec.AccessToken == accessToken && rec.Live() {
			return copyRecord(rec), nil
		}
	}
	return nil, apperrors.ErrSessionNotFound
}

func (r *FakeSessionRepo) ListByUser(_ context.Context, userID string) ([]*sessions.SessionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var out []*sessions.SessionRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out, nil
}

func (r *FakeSessionRepo) Create(_ context.Context, record *sessions.SessionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	k := key(record.UserID, record.Device)
	if _, exists := r.records[k]; exists {
		return apperrors.ErrSessionWriteFailed // unique (user, device) constraint
	}
	r.records[k] = copyRecord(record)
	return nil
}

func (r *FakeSessionRepo) Update(_ context.Context, record *sessions.SessionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	k := key(record.UserID, record.Device)
	if _, exists := r.records[k]; !exists {
		return apperrors.ErrSessionNotFound
	}
	r.records[k] = copyRecord(record)
	return nil
}

func (r *FakeSessionRepo) UpdateAccessToken(_ context.Context, userID, device, accessToken string) (*sessions.SessionRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rec, ok := r.records[key(userID, device)]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	rec.AccessToken = accessToken
	return copyRecord(rec), nil
}

func (r *FakeSessionRepo) Delete(_ context.Context, userID, device string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	k := key(userID, device)
	if _, ok := r.records[k]; !ok {
		return false, nil
	}
	delete(r.records, k)
	return true, nil
}

func (r *FakeSessionRepo) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	count := 0
	for k, rec := range r.records {
		if rec.UserID == userID {
			delete(r.records, k)
			count++
		}
	}
	return count, nil
}

// Count returns the number of stored records. Test helper.
func (r *FakeSessionRepo) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.records)
}

// Snapshot implements the txnfake Snapshotter contract.
func (r *FakeSessionRepo) Snapshot() any {
	r.lock.RLock()
	defer r.lock.RUnlock()
	snapshot := make(map[string]*sessions.SessionRecord, len(r.records))
	for k, rec := range r.records {
		snapshot[k] = copyRecord(rec)
	}
	return snapshot
}

// Restore implements the txnfake Snapshotter contract.
func (r *FakeSessionRepo) Restore(snapshot any) {
	r.lock.Lock()
	defer r.lock.Unlock()
	restored := snapshot.(map[string]*sessions.SessionRecord)
	r.records = make(map[string]*sessions.SessionRecord, len(restored))
	for k, rec := range restored {
		r.records[k] = copyRecord(rec)
	}
}

func copyRecord(rec *sessions.SessionRecord) *sessions.SessionRecord {
	cp := *rec
	if rec.LogoutAt != nil {
		logoutAt := *rec.LogoutAt
		cp.LogoutAt = &logoutAt
	}
	return &cp
}
