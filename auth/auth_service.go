package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/experta/session-engine/internal/config"
	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/reconcile"
	"github.com/experta/session-engine/sessions"
	"github.com/experta/session-engine/token"
	"github.com/experta/session-engine/txn"
	"github.com/experta/session-engine/users"
)

// Repos holds all repository dependencies for the SessionService.
type Repos struct {
	Sessions sessions.Repo // Canonical per-(user, device) session records
	Users    users.Repo    // Profile store owning the identity and its device index
}

// SessionService admits, renews and revokes per-device sessions. All
// mutations touching both the session store and the device index run through
// the transaction coordinator so the two can never diverge on a committed
// state. The service holds no in-process locks; concurrent requests for the
// same user are serialized by the store's transaction isolation.
type SessionService struct {
	repos               Repos
	issuer              *token.Issuer
	coordinator         *txn.Coordinator
	reconciler          *reconcile.Reconciler
	deviceLimit         int
	inactivityThreshold time.Duration
	logger              zerolog.Logger
	nowTime             func() time.Time // nowTime function (injectable for testing)
}

// SessionServiceOption defines a function type to modify the SessionService instance.
type SessionServiceOption func(*SessionService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		s.nowTime = nowFunc
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) SessionServiceOption {
	return func(s *SessionService) {
		s.logger = logger
	}
}

// NewSessionService initializes a new SessionService with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewSessionService(
	repos Repos,
	issuer *token.Issuer,
	coordinator *txn.Coordinator,
	cfg config.SessionConfig,
	options ...SessionServiceOption,
) (*SessionService, error) {
	if repos.Sessions == nil {
		return nil, errors.New("[NewSessionService] Sessions repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewSessionService] Users repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewSessionService] issuer is required")
	}
	if coordinator == nil {
		return nil, errors.New("[NewSessionService] coordinator is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewSessionService] session config is required")
	}

	service := &SessionService{
		repos:               repos,
		issuer:              issuer,
		coordinator:         coordinator,
		deviceLimit:         cfg.GetDeviceLimit(),
		inactivityThreshold: cfg.GetEvictionInactivityThreshold(),
		logger:              zerolog.Nop(),
		nowTime:             time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	reconciler, err := reconcile.New(reconcile.Repos{
		Sessions: repos.Sessions,
		Users:    repos.Users,
	}, coordinator, service.logger)
	if err != nil {
		return nil, err
	}
	service.reconciler = reconciler

	return service, nil
}

// Login admits a device session for an already-authenticated request. The
// decision and both store mutations happen inside one transaction; on a
// transient write failure the whole admission is retried once from a fresh
// snapshot before surfacing.
func (s *SessionService) Login(ctx context.Context, params LoginParams) (*AuthPayload, error) {
	if err := params.validate(); err != nil {
		return nil, errors.Wrap(err, "[SessionService.Login] invalid parameters")
	}

	payload, err := s.admitDevice(ctx, params)
	if err != nil && apperrors.Retryable(err) {
		payload, err = s.admitDevice(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user", params.Identity).
		Str("device", params.Device).
		Str("platform", string(params.Platform)).
		Msg("device session admitted")
	return payload, nil
}

// admitDevice runs one admission attempt. The returned payload is only
// meaningful when the transaction committed.
func (s *SessionService) admitDevice(ctx context.Context, params LoginParams) (*AuthPayload, error) {
	var payload *AuthPayload
	err := s.coordinator.Run(ctx, func(ctx context.Context) error {
		identity, err := s.repos.Users.GetByID(ctx, params.Identity)
		if err != nil {
			return errors.Wrap(err, "[SessionService.Login] users.GetByID")
		}

		plan := admissionPlan{
			revokeDevice:   params.RevokeDevice,
			existingDevice: identity.HasDevice(params.Device),
		}
		if plan.revokeDevice != "" && !identity.HasDevice(plan.revokeDevice) {
			return errors.Wrapf(apperrors.ErrDeviceNotFound, "revoke target %q", plan.revokeDevice)
		}

		index := identity.CloneDeviceIndex()
		count := prospectiveCount(len(index), plan)

		if plan.revokeDevice == "" && count > s.deviceLimit {
			live, err := s.liveSessions(ctx, params.Identity)
			if err != nil {
				return errors.Wrap(err, "[SessionService.Login] sessions.ListByUser")
			}
			candidate := selectEvictionCandidate(live, s.nowTime(), s.inactivityThreshold)
			if candidate == nil {
				if s.deviceLimit <= 0 {
					return errors.Wrapf(apperrors.ErrDeviceLimitUnsatisfiable, "device limit %d", s.deviceLimit)
				}
				return errors.Wrap(apperrors.ErrSessionReconciliationRequired, "device limit exceeded with no evictable session")
			}
			plan.evictDevice = candidate.Device
			if _, err := s.repos.Sessions.Delete(ctx, params.Identity, candidate.Device); err != nil {
				return errors.Wrap(err, "[SessionService.Login] evict sessions.Delete")
			}
			delete(index, candidate.Device)
			count--
			if count > s.deviceLimit {
				return errors.Wrapf(apperrors.ErrDeviceLimitUnsatisfiable, "device limit %d", s.deviceLimit)
			}
		}

		if plan.revokeDevice != "" {
			if _, err := s.repos.Sessions.Delete(ctx, params.Identity, plan.revokeDevice); err != nil {
				return errors.Wrap(err, "[SessionService.Login] revoke sessions.Delete")
			}
			delete(index, plan.revokeDevice)
		}

		record, err := s.upsertDeviceSession(ctx, identity, params)
		if err != nil {
			return err
		}

		index[params.Device] = params.DeviceAgent
		if err := s.repos.Users.UpdateDeviceIndex(ctx, params.Identity, index); err != nil {
			return errors.Wrap(err, "[SessionService.Login] users.UpdateDeviceIndex")
		}

		if plan.evictDevice != "" {
			s.logger.Info().
				Str("user", params.Identity).
				Str("evicted", plan.evictDevice).
				Msg("evicted oldest device session")
		}

		payload = &AuthPayload{
			Identity:     identity.ID,
			AccessToken:  record.AccessToken,
			RefreshToken: record.RefreshToken,
			SessionID:    record.ID,
			Device:       record.Device,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// upsertDeviceSession mints a fresh credential pair and creates or replaces
// the requesting device's session row. A device the index knows about but
// the store lost gets a new row rather than a failure.
func (s *SessionService) upsertDeviceSession(ctx context.Context, identity *users.Identity, params LoginParams) (*sessions.SessionRecord, error) {
	pair, err := s.issuer.Issue(identity.ID, params.Device, params.Platform, identity.ForSystem)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.Login] issuer.Issue")
	}

	provider := params.Provider
	if provider == "" {
		provider = sessions.DefaultProvider
	}
	now := s.nowTime()

	existing, err := s.repos.Sessions.GetByUserDevice(ctx, identity.ID, params.Device)
	switch {
	case err == nil:
		existing.DeviceAgent = params.DeviceAgent
		existing.FCMToken = params.FCMToken
		existing.IP = params.IP
		existing.Platform = params.Platform
		existing.Provider = provider
		existing.AccessToken = pair.AccessToken
		existing.RefreshToken = pair.RefreshToken
		existing.LoginAt = now
		existing.LogoutAt = nil
		if err := s.repos.Sessions.Update(ctx, existing); err != nil {
			return nil, errors.Wrap(err, "[SessionService.Login] sessions.Update")
		}
		return existing, nil
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		record := &sessions.SessionRecord{
			ID:           uuid.New().String(),
			UserID:       identity.ID,
			Device:       params.Device,
			DeviceAgent:  params.DeviceAgent,
			FCMToken:     params.FCMToken,
			IP:           params.IP,
			Platform:     params.Platform,
			Provider:     provider,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			LoginAt:      now,
			CreatedAt:    now,
		}
		if err := s.repos.Sessions.Create(ctx, record); err != nil {
			return nil, errors.Wrap(err, "[SessionService.Login] sessions.Create")
		}
		return record, nil
	default:
		return nil, errors.Wrap(err, "[SessionService.Login] sessions.GetByUserDevice")
	}
}

// Renew validates a refresh token and mints a new access token for its
// session. The refresh token stays unchanged and the device count is not
// recomputed: renewal never goes through admission.
func (s *SessionService) Renew(ctx context.Context, refreshToken, identity string) (*AuthPayload, error) {
	claims, err := s.issuer.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.Renew] validate refresh token")
	}
	if identity != "" && claims.Identity != identity {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "refresh token identity mismatch")
	}

	record, err := s.repos.Sessions.GetByRefreshToken(ctx, claims.Identity, refreshToken)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, errors.Wrap(apperrors.ErrRevokedRefreshToken, "no session holds this refresh token")
		}
		return nil, errors.Wrap(err, "[SessionService.Renew] sessions.GetByRefreshToken")
	}

	accessToken, err := s.issuer.IssueAccess(claims.Identity, record.Device, record.Platform, claims.ForSystem)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.Renew] issuer.IssueAccess")
	}
	updated, err := s.repos.Sessions.UpdateAccessToken(ctx, record.UserID, record.Device, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.Renew] sessions.UpdateAccessToken")
	}

	return &AuthPayload{
		Identity:     claims.Identity,
		AccessToken:  updated.AccessToken,
		RefreshToken: record.RefreshToken,
		SessionID:    updated.ID,
		Device:       record.Device,
	}, nil
}

// RevokeDevice atomically deletes the named device's session row and its
// index entry. Index entries left without a live session row by earlier
// drift are swept in the same transaction.
func (s *SessionService) RevokeDevice(ctx context.Context, identity, device string) error {
	var revokedTokens []string
	err := s.coordinator.Run(ctx, func(ctx context.Context) error {
		revokedTokens = revokedTokens[:0]
		user, err := s.repos.Users.GetByID(ctx, identity)
		if err != nil {
			return errors.Wrap(err, "[SessionService.RevokeDevice] users.GetByID")
		}

		record, err := s.repos.Sessions.GetByUserDevice(ctx, identity, device)
		if err == nil {
			revokedTokens = append(revokedTokens, record.AccessToken)
		} else if !apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return errors.Wrap(err, "[SessionService.RevokeDevice] sessions.GetByUserDevice")
		}

		deleted, err := s.repos.Sessions.Delete(ctx, identity, device)
		if err != nil {
			return errors.Wrap(err, "[SessionService.RevokeDevice] sessions.Delete")
		}
		if !deleted && !user.HasDevice(device) {
			return errors.Wrapf(apperrors.ErrDeviceNotFound, "device %q", device)
		}

		index := user.CloneDeviceIndex()
		delete(index, device)

		if err := s.sweepOrphanEntries(ctx, identity, index); err != nil {
			return err
		}
		if err := s.repos.Users.UpdateDeviceIndex(ctx, identity, index); err != nil {
			return errors.Wrap(err, "[SessionService.RevokeDevice] users.UpdateDeviceIndex")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.revokeAccessTokens(ctx, revokedTokens)
	s.logger.Info().Str("user", identity).Str("device", device).Msg("device session revoked")
	return nil
}

// RevokeAllDevices atomically deletes every session row for the user and
// clears the device index. Returns the number of terminated sessions.
func (s *SessionService) RevokeAllDevices(ctx context.Context, identity string) (*RevokeResult, error) {
	result := &RevokeResult{}
	var revokedTokens []string
	err := s.coordinator.Run(ctx, func(ctx context.Context) error {
		revokedTokens = revokedTokens[:0]
		if _, err := s.repos.Users.GetByID(ctx, identity); err != nil {
			return errors.Wrap(err, "[SessionService.RevokeAllDevices] users.GetByID")
		}

		records, err := s.repos.Sessions.ListByUser(ctx, identity)
		if err != nil {
			return errors.Wrap(err, "[SessionService.RevokeAllDevices] sessions.ListByUser")
		}
		for _, record := range records {
			if record.Live() {
				revokedTokens = append(revokedTokens, record.AccessToken)
			}
		}

		count, err := s.repos.Sessions.DeleteAllForUser(ctx, identity)
		if err != nil {
			return errors.Wrap(err, "[SessionService.RevokeAllDevices] sessions.DeleteAllForUser")
		}
		result.TerminatedCount = count

		if err := s.repos.Users.UpdateDeviceIndex(ctx, identity, map[string]string{}); err != nil {
			return errors.Wrap(err, "[SessionService.RevokeAllDevices] users.UpdateDeviceIndex")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.revokeAccessTokens(ctx, revokedTokens)
	s.logger.Info().Str("user", identity).Int("terminated", result.TerminatedCount).Msg("all device sessions revoked")
	return result, nil
}

// ListActiveSessions returns the caller-facing projection of the user's
// live device sessions.
func (s *SessionService) ListActiveSessions(ctx context.Context, identity string) ([]sessions.ActiveSession, error) {
	records, err := s.repos.Sessions.ListByUser(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.ListActiveSessions] sessions.ListByUser")
	}
	active := make([]sessions.ActiveSession, 0, len(records))
	for _, record := range records {
		if !record.Live() {
			continue
		}
		active = append(active, sessions.ActiveSession{
			Device:      record.Device,
			DeviceAgent: record.DeviceAgent,
			Platform:    record.Platform,
			LoginAt:     record.LoginAt,
		})
	}
	return active, nil
}

// ValidateAccess verifies an access token and confirms the bound device
// session still exists. A valid token whose session was revoked or evicted
// fails with ErrSessionNotFound.
func (s *SessionService) ValidateAccess(ctx context.Context, rawToken string) (*token.Claims, error) {
	claims, err := s.issuer.ValidateAccess(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.ValidateAccess]")
	}
	record, err := s.repos.Sessions.GetByUserDevice(ctx, claims.Identity, claims.Device)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, errors.Wrapf(apperrors.ErrSessionNotFound, "device %q", claims.Device)
		}
		return nil, errors.Wrap(err, "[SessionService.ValidateAccess] sessions.GetByUserDevice")
	}
	if !record.Live() {
		return nil, errors.Wrapf(apperrors.ErrSessionNotFound, "device %q logged out", claims.Device)
	}
	return claims, nil
}

// Reconcile repairs drift between the session store and the device index
// for one user.
func (s *SessionService) Reconcile(ctx context.Context, identity string) (*reconcile.Result, error) {
	return s.reconciler.Reconcile(ctx, identity)
}

// Reconciler exposes the reconciler for maintenance sweeps.
func (s *SessionService) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// CleanupRevokedTokens removes expired entries from the revoked-token cache.
func (s *SessionService) CleanupRevokedTokens(ctx context.Context) {
	s.issuer.CleanupRevokedTokens(ctx)
}

// sweepOrphanEntries drops index entries that have no live session row.
// Runs inside the caller's transaction.
func (s *SessionService) sweepOrphanEntries(ctx context.Context, identity string, index map[string]string) error {
	live, err := s.liveSessions(ctx, identity)
	if err != nil {
		return errors.Wrap(err, "[SessionService] orphan sweep sessions.ListByUser")
	}
	liveSet := make(map[string]struct{}, len(live))
	for _, record := range live {
		liveSet[record.Device] = struct{}{}
	}
	for device := range index {
		if _, ok := liveSet[device]; !ok {
			delete(index, device)
		}
	}
	return nil
}

func (s *SessionService) liveSessions(ctx context.Context, identity string) ([]*sessions.SessionRecord, error) {
	records, err := s.repos.Sessions.ListByUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	live := records[:0]
	for _, record := range records {
		if record.Live() {
			live = append(live, record)
		}
	}
	return live, nil
}

// revokeAccessTokens records revoked access tokens after a successful
// commit. Best effort: the canonical revocation already happened in the
// store, the cache only short-circuits validation.
func (s *SessionService) revokeAccessTokens(ctx context.Context, tokens []string) {
	for _, raw := range tokens {
		if err := s.issuer.RevokeAccessToken(ctx, raw); err != nil {
			s.logger.Error().Err(err).Msg("failed to cache revoked access token")
		}
	}
}
