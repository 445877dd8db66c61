package auth

import (
	"github.com/pkg/errors"

	"github.com/experta/session-engine/sessions"
)

// LoginParams describes one login or re-login request. The request is
// assumed to be already authenticated; the engine only decides whether the
// device session may be admitted and mints its credentials.
type LoginParams struct {
	Identity    string            // The user identity logging in
	Device      string            // Opaque client identifier for this device
	DeviceAgent string            // Human-readable device description
	FCMToken    string            // Optional push token for this device
	IP          string            // Client IP for the session record
	Platform    sessions.Platform // APP, WEB or PANEL
	Provider    string            // Social provider label, defaults to sessions.DefaultProvider

	// RevokeDevice, when set, drops the named device session as part of this
	// request instead of relying on automatic eviction.
	RevokeDevice string
}

func (p *LoginParams) validate() error {
	if p.Identity == "" {
		return errors.New("identity is required")
	}
	if p.Device == "" {
		return errors.New("device is required")
	}
	if p.DeviceAgent == "" {
		return errors.New("device agent is required")
	}
	if p.IP == "" {
		return errors.New("ip is required")
	}
	if !p.Platform.Valid() {
		return errors.Errorf("unsupported platform %q", p.Platform)
	}
	return nil
}

// AuthPayload is the response of a successful login or renewal.
type AuthPayload struct {
	Identity     string
	AccessToken  string
	RefreshToken string
	SessionID    string
	Device       string
}

// RevokeResult reports a bulk logout.
type RevokeResult struct {
	TerminatedCount int
}
