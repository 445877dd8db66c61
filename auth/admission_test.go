package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/experta/session-engine/sessions"
)

func sessionAt(device string, loginAt time.Time) *sessions.SessionRecord {
	return &sessions.SessionRecord{
		UserID:  "user-1",
		Device:  device,
		LoginAt: loginAt,
	}
}

func TestSelectEvictionCandidatePrefersInactive(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	live := []*sessions.SessionRecord{
		sessionAt("device-1h", now.Add(-time.Hour)),
		sessionAt("device-30h", now.Add(-30*time.Hour)),
		sessionAt("device-26h", now.Add(-26*time.Hour)),
		sessionAt("device-5h", now.Add(-5*time.Hour)),
	}

	candidate := selectEvictionCandidate(live, now, 24*time.Hour)
	require.NotNil(t, candidate)
	require.Equal(t, "device-30h", candidate.Device)
}

func TestSelectEvictionCandidateFallsBackToOldest(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	live := []*sessions.SessionRecord{
		sessionAt("device-10m", now.Add(-10*time.Minute)),
		sessionAt("device-2h", now.Add(-2*time.Hour)),
		sessionAt("device-1h", now.Add(-time.Hour)),
	}

	candidate := selectEvictionCandidate(live, now, 24*time.Hour)
	require.NotNil(t, candidate)
	require.Equal(t, "device-2h", candidate.Device)
}

func TestSelectEvictionCandidateTieBreaksOnDeviceID(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	loginAt := now.Add(-time.Hour)
	live := []*sessions.SessionRecord{
		sessionAt("device-c", loginAt),
		sessionAt("device-a", loginAt),
		sessionAt("device-b", loginAt),
	}

	candidate := selectEvictionCandidate(live, now, 24*time.Hour)
	require.NotNil(t, candidate)
	require.Equal(t, "device-a", candidate.Device)
}

func TestSelectEvictionCandidateEmpty(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	require.Nil(t, selectEvictionCandidate(nil, now, 24*time.Hour))
}

func TestProspectiveCount(t *testing.T) {
	require.Equal(t, 6, prospectiveCount(5, admissionPlan{}))
	require.Equal(t, 5, prospectiveCount(5, admissionPlan{existingDevice: true}))
	require.Equal(t, 5, prospectiveCount(5, admissionPlan{revokeDevice: "device-x"}))
	require.Equal(t, 4, prospectiveCount(5, admissionPlan{revokeDevice: "device-x", existingDevice: true}))
}
