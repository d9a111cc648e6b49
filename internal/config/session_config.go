package config

import "time"

type SessionConfig interface {
	GetTokenFallbackTTL() time.Duration
	GetRefreshMaxAttempts() int
	GetRefreshBackoff() time.Duration
	GetCacheSweepInterval() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetTokenFallbackTTL is used when a portal token carries no exp claim.
func (Session) GetTokenFallbackTTL() time.Duration {
	return time.Duration(GetEnvInt("TOKEN_FALLBACK_TTL_MINUTES", 30, 1)) * time.Minute
}

func (Session) GetRefreshMaxAttempts() int {
	return GetEnvInt("REFRESH_MAX_ATTEMPTS", 3, 1)
}

func (Session) GetRefreshBackoff() time.Duration {
	return time.Duration(GetEnvInt("REFRESH_BACKOFF_MS", 500, 0)) * time.Millisecond
}

func (Session) GetCacheSweepInterval() time.Duration {
	return time.Duration(GetEnvInt("CACHE_SWEEP_MINUTES", 10, 1)) * time.Minute
}
