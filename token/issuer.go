package token

import (
	"context"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/experta/session-engine/internal/config"
	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/sessions"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Pair holds a freshly minted access/refresh credential pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints and validates access/refresh token pairs bound to
// (identity, device, platform). It is stateless apart from the optional
// revoked-token cache; every Issue call generates fresh token identities.
type Issuer struct {
	issuer        string
	accessSigner  Signer
	refreshSigner Signer
	accessTTL     time.Duration
	refreshTTL    time.Duration
	revokedCache  RevokedTokenCache
	nowTime       func() time.Time
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// WithRevokedTokenCache sets the cache consulted on access-token validation.
func WithRevokedTokenCache(cache RevokedTokenCache) IssuerOption {
	return func(i *Issuer) {
		i.revokedCache = cache
	}
}

// NewIssuer creates an Issuer from the token configuration. The access and
// refresh secrets must differ so one token class can never pass as the other.
func NewIssuer(cfg config.TokenConfig, options ...IssuerOption) (*Issuer, error) {
	accessSecret := cfg.GetAccessTokenSecret()
	refreshSecret := cfg.GetRefreshTokenSecret()
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("[NewIssuer] access and refresh token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("[NewIssuer] access and refresh token secrets must differ")
	}

	issuer := &Issuer{
		issuer:        cfg.GetTokenIssuer(),
		accessSigner:  NewHMACSigner(accessSecret),
		refreshSigner: NewHMACSigner(refreshSecret),
		accessTTL:     cfg.GetAccessTokenTTL(),
		refreshTTL:    cfg.GetRefreshTokenTTL(),
		nowTime:       func() time.Time { return NowTimeFunc() },
	}

	for _, opt := range options {
		opt(issuer)
	}

	return issuer, nil
}

// Issue mints a new access/refresh pair for the session binding. Each token
// carries its own freshly generated token identity.
func (i *Issuer) Issue(identity, device string, platform sessions.Platform, forSystem bool) (*Pair, error) {
	accessToken, err := i.sign(i.accessSigner, i.accessTTL, identity, device, platform, forSystem)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] access token")
	}
	refreshToken, err := i.sign(i.refreshSigner, i.refreshTTL, identity, device, platform, forSystem)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] refresh token")
	}
	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// IssueAccess mints a new access token only. Used by the renew flow, which
// leaves the refresh token untouched.
func (i *Issuer) IssueAccess(identity, device string, platform sessions.Platform, forSystem bool) (string, error) {
	accessToken, err := i.sign(i.accessSigner, i.accessTTL, identity, device, platform, forSystem)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.IssueAccess]")
	}
	return accessToken, nil
}

// ValidateAccess parses and verifies an access token, rejecting revoked
// token identities when a revocation cache is configured.
func (i *Issuer) ValidateAccess(ctx context.Context, rawToken string) (*Claims, error) {
	claims, err := i.validate(i.accessSigner, rawToken)
	if err != nil {
		return nil, err
	}
	if i.revokedCache != nil && i.revokedCache.IsRevoked(ctx, claims.ID) {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "token revoked")
	}
	return claims, nil
}

// ValidateRefresh parses and verifies a refresh token.
func (i *Issuer) ValidateRefresh(_ context.Context, rawToken string) (*Claims, error) {
	return i.validate(i.refreshSigner, rawToken)
}

// RevokeAccessToken records the token's identity in the revocation cache so
// validation rejects it for the remainder of its lifetime. Tokens that are
// already expired or unparsable need no cache entry.
func (i *Issuer) RevokeAccessToken(ctx context.Context, rawToken string) error {
	if i.revokedCache == nil {
		return nil
	}
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(i.nowTime()) {
		return nil
	}
	if err := i.revokedCache.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return errors.Wrap(err, "[Issuer.RevokeAccessToken] revoked cache add")
	}
	return nil
}

// CleanupRevokedTokens removes expired entries from the revocation cache.
func (i *Issuer) CleanupRevokedTokens(ctx context.Context) {
	if i.revokedCache != nil {
		i.revokedCache.Cleanup(ctx)
	}
}

func (i *Issuer) sign(signer Signer, ttl time.Duration, identity, device string, platform sessions.Platform, forSystem bool) (string, error) {
	now := i.nowTime()
	claims := &Claims{
		Identity:  identity,
		Device:    device,
		Platform:  platform,
		ForSystem: forSystem,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.issuer,
			ID:        uuid.New().String(), // fresh token identity per signing
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return signer.Sign(claims)
}

func (i *Issuer) validate(signer Signer, rawToken string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(rawToken, claims, signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithTimeFunc(func() time.Time { return i.nowTime() }),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errors.Wrap(apperrors.ErrExpiredToken, err.Error())
		}
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.Identity == "" || claims.Device == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "missing session binding claims")
	}
	return claims, nil
}
