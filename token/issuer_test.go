package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/experta/session-engine/internal/errors"
	"github.com/experta/session-engine/sessions"
	"github.com/experta/session-engine/token"
)

const (
	accessSecret  = "access-secret-1234"
	refreshSecret = "refresh-secret-5678"
	testIssuer    = "com.testissuer"
	testIdentity  = "user-1"
	testDevice    = "device-a"
)

type tokenConfig struct {
	accessSecret  string
	refreshSecret string
}

func (c tokenConfig) GetTokenIssuer() string            { return testIssuer }
func (c tokenConfig) GetAccessTokenSecret() string      { return c.accessSecret }
func (c tokenConfig) GetRefreshTokenSecret() string     { return c.refreshSecret }
func (tokenConfig) GetAccessTokenTTL() time.Duration  { return 15 * time.Minute }
func (tokenConfig) GetRefreshTokenTTL() time.Duration { return 30 * 24 * time.Hour }

func newTestIssuer(t *testing.T, options ...token.IssuerOption) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer(tokenConfig{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
	}, options...)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := token.NewIssuer(tokenConfig{accessSecret: "", refreshSecret: refreshSecret})
	require.Error(t, err)

	_, err = token.NewIssuer(tokenConfig{accessSecret: "same", refreshSecret: "same"})
	require.Error(t, err)
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformWeb, true)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := issuer.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testIdentity, claims.Identity)
	require.Equal(t, testDevice, claims.Device)
	require.Equal(t, sessions.PlatformWeb, claims.Platform)
	require.True(t, claims.ForSystem)
	require.Equal(t, testIssuer, claims.Issuer)
	require.NotEmpty(t, claims.TokenID())

	refreshClaims, err := issuer.ValidateRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, testIdentity, refreshClaims.Identity)
}

func TestEachTokenCarriesFreshTokenID(t *testing.T) {
	issuer := newTestIssuer(t)
	ctx := context.Background()

	first, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)
	second, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, raw := range []string{first.AccessToken, second.AccessToken} {
		claims, err := issuer.ValidateAccess(ctx, raw)
		require.NoError(t, err)
		seen[claims.TokenID()] = struct{}{}
	}
	for _, raw := range []string{first.RefreshToken, second.RefreshToken} {
		claims, err := issuer.ValidateRefresh(ctx, raw)
		require.NoError(t, err)
		seen[claims.TokenID()] = struct{}{}
	}
	require.Len(t, seen, 4)
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)

	_, err = issuer.ValidateRefresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, err = issuer.ValidateAccess(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestExpiredAccessToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, token.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	pair, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = issuer.ValidateAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrExpiredToken)

	// The refresh token's longer lifetime keeps it valid.
	_, err = issuer.ValidateRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = issuer.ValidateAccess(ctx, tampered)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := token.NewIssuer(tokenConfig{
		accessSecret:  "other-access-secret",
		refreshSecret: "other-refresh-secret",
	})
	require.NoError(t, err)
	ctx := context.Background()

	pair, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)

	_, err = other.ValidateAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRevokedAccessToken(t *testing.T) {
	issuer := newTestIssuer(t, token.WithRevokedTokenCache(token.NewInMemoryRevokedTokenCache()))
	ctx := context.Background()

	pair, err := issuer.Issue(testIdentity, testDevice, sessions.PlatformApp, false)
	require.NoError(t, err)

	_, err = issuer.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, issuer.RevokeAccessToken(ctx, pair.AccessToken))
	_, err = issuer.ValidateAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRevokeIgnoresUnparsableToken(t *testing.T) {
	issuer := newTestIssuer(t, token.WithRevokedTokenCache(token.NewInMemoryRevokedTokenCache()))
	require.NoError(t, issuer.RevokeAccessToken(context.Background(), "not-a-token"))
}
