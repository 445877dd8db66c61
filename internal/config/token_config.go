package config

import "time"

type TokenConfig interface {
	GetTokenIssuer() string
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetTokenIssuer() string {
	return GetEnv("JWT_ISSUER", "experta")
}

func (Token) GetAccessTokenSecret() string {
	return GetEnv("JWT_ACCESS_SECRET", "")
}

func (Token) GetRefreshTokenSecret() string {
	return GetEnv("JWT_REFRESH_SECRET", "")
}

func (Token) GetAccessTokenTTL() time.Duration {
	return GetDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Token) GetRefreshTokenTTL() time.Duration {
	return GetDurationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour)
}
