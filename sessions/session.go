package sessions

import (
	"time"
)

// Platform identifies the class of client a session was opened from.
type Platform string

const (
	PlatformApp   Platform = "APP"
	PlatformWeb   Platform = "WEB"
	PlatformPanel Platform = "PANEL"
)

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformApp, PlatformWeb, PlatformPanel:
		return true
	}
	return false
}

// DefaultProvider labels sessions opened through native authentication
// rather than a social provider.
const DefaultProvider = "PLATFORM"

// SessionRecord is the canonical row for one logged-in device. There is at
// most one record per (UserID, Device) pair; the user's device index mirrors
// the set of live records and the two are only ever mutated together inside
// a single transaction.
type SessionRecord struct {
	ID           string
	UserID       string
	Device       string
	DeviceAgent  string
	FCMToken     string
	IP           string
	Platform     Platform
	Provider     string // social provider label, DefaultProvider for native logins
	AccessToken  string
	RefreshToken string
	LoginAt      time.Time
	LogoutAt     *time.Time
	CreatedAt    time.Time
}

// Live reports whether the session is still active.
func (s *SessionRecord) Live() bool {
	return s.LogoutAt == nil
}

// ActiveSession is the caller-facing projection of a live device session.
type ActiveSession struct {
	Device      string    `json:"device"`
	DeviceAgent string    `json:"deviceAgent"`
	Platform    Platform  `json:"platform"`
	LoginAt     time.Time `json:"loginAt"`
}
