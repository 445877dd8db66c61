package txnfake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/experta/session-engine/txn"
)

// Snapshotter is implemented by fake stores that can capture and restore
// their full state, giving the fake provider real rollback semantics.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

var _ txn.Provider = (*Provider)(nil)

// Provider is an in-memory txn.Provider for tests. Begin snapshots every
// registered store; Abort restores the snapshots. Transactions are
// serialized by a mutex, which stands in for the store's write-conflict
// detection.
type Provider struct {
	stores []Snapshotter
	lock   sync.Mutex

	// FailCommits makes the next N commits fail, restoring the snapshots as
	// a real aborted transaction would.
	FailCommits int

	BeginCount  int
	CommitCount int
	AbortCount  int
}

func NewProvider(stores ...Snapshotter) *Provider {
	return &Provider{stores: stores}
}

func (p *Provider) Begin(ctx context.Context) (txn.Txn, error) {
	p.lock.Lock()
	p.BeginCount++
	snapshots := make([]any, len(p.stores))
	for i, store := range p.stores {
		snapshots[i] = store.Snapshot()
	}
	return &fakeTxn{provider: p, ctx: ctx, snapshots: snapshots}, nil
}

func (p *Provider) restore(snapshots []any) {
	for i, store := range p.stores {
		store.Restore(snapshots[i])
	}
}

type fakeTxn struct {
	provider  *Provider
	ctx       context.Context
	snapshots []any
	finished  bool
	ended     bool
}

func (t *fakeTxn) Context() context.Context {
	return t.ctx
}

func (t *fakeTxn) Commit() error {
	if t.finished {
		return errors.New("transaction already finished")
	}
	t.finished = true
	if t.provider.FailCommits > 0 {
		t.provider.FailCommits--
		t.provider.restore(t.snapshots)
		return errors.New("commit failed")
	}
	t.provider.CommitCount++
	return nil
}

func (t *fakeTxn) Abort() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.provider.AbortCount++
	t.provider.restore(t.snapshots)
	return nil
}

func (t *fakeTxn) End() {
	if t.ended {
		return
	}
	t.ended = true
	if !t.finished {
		// Ending an unfinished transaction discards its writes.
		t.finished = true
		t.provider.restore(t.snapshots)
	}
	t.provider.lock.Unlock()
}
