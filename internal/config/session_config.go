package config

import "time"

type SessionConfig interface {
	// GetDeviceLimit returns the maximum number of live device sessions a
	// single user may hold.
	GetDeviceLimit() int
	// GetEvictionInactivityThreshold returns how long a session must be idle
	// before it becomes the preferred eviction candidate.
	GetEvictionInactivityThreshold() time.Duration
	// GetReconcileSweepInterval returns how often the maintenance sweep
	// revalidates every user's device index.
	GetReconcileSweepInterval() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetDeviceLimit() int {
	return GetIntEnv("DEVICE_SESSION_LIMIT", 5)
}

func (Session) GetEvictionInactivityThreshold() time.Duration {
	return GetDurationEnv("EVICTION_INACTIVITY_THRESHOLD", 24*time.Hour)
}

func (Session) GetReconcileSweepInterval() time.Duration {
	return GetDurationEnv("RECONCILE_SWEEP_INTERVAL", time.Hour)
}
