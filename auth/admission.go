package auth

import (
	"time"

	"github.com/experta/session-engine/sessions"
)

// admissionPlan is the mutation set produced by one admission decision. The
// plan is provisional until the transaction that produced it commits; on a
// write conflict the whole admission re-runs from a fresh snapshot.
type admissionPlan struct {
	// evictDevice is the session forcibly terminated to make room, empty
	// when no eviction is needed.
	evictDevice string
	// revokeDevice is the session the caller explicitly asked to drop.
	revokeDevice string
	// existingDevice reports whether the requesting device already holds a
	// session row.
	existingDevice bool
}

// selectEvictionCandidate applies the two-stage eviction policy over the
// user's live sessions: prefer the oldest session idle longer than the
// inactivity threshold; when none qualifies, fall back to the globally
// oldest. Returns nil when there is nothing to evict.
func selectEvictionCandidate(live []*sessions.SessionRecord, now time.Time, inactivity time.Duration) *sessions.SessionRecord {
	cutoff := now.Add(-inactivity)

	var candidate *sessions.SessionRecord
	for _, rec := range live {
		if !rec.LoginAt.Before(cutoff) {
			continue
		}
		if candidate == nil || loginBefore(rec, candidate) {
			candidate = rec
		}
	}
	if candidate != nil {
		return candidate
	}

	for _, rec := range live {
		if candidate == nil || loginBefore(rec, candidate) {
			candidate = rec
		}
	}
	return candidate
}

// loginBefore orders sessions by loginAt ascending, breaking equal
// timestamps by device id so eviction stays deterministic on
// low-resolution clocks.
func loginBefore(a, b *sessions.SessionRecord) bool {
	if a.LoginAt.Equal(b.LoginAt) {
		return a.Device < b.Device
	}
	return a.LoginAt.Before(b.LoginAt)
}

// prospectiveCount computes the number of live sessions the user would hold
// after this request, before any forced eviction.
func prospectiveCount(indexSize int, plan admissionPlan) int {
	count := indexSize
	if plan.revokeDevice != "" {
		count--
	}
	if !plan.existingDevice {
		count++
	}
	return count
}
