package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/experta/session-engine/sessions"
)

func TestPlatformValid(t *testing.T) {
	require.True(t, sessions.PlatformApp.Valid())
	require.True(t, sessions.PlatformWeb.Valid())
	require.True(t, sessions.PlatformPanel.Valid())
	require.False(t, sessions.Platform("DESKTOP").Valid())
	require.False(t, sessions.Platform("").Valid())
}

func TestSessionRecordLive(t *testing.T) {
	record := &sessions.SessionRecord{}
	require.True(t, record.Live())

	logoutAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	record.LogoutAt = &logoutAt
	require.False(t, record.Live())
}
