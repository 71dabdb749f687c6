package config

import "time"

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionTTL() time.Duration
	GetSessionBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionSecret signs the session-ID cookie. The DEV default must be
// overridden in production.
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "dev-session-secret")
}

func (Session) GetSessionTTL() time.Duration {
	if raw := GetEnv("SESSION_TTL", ""); raw != "" {
		if ttl, err := time.ParseDuration(raw); err == nil {
			return ttl
		}
	}
	return 24 * time.Hour
}

// GetSessionBackend selects the session store: "memory" or "redis".
func (Session) GetSessionBackend() string {
	return GetEnv("SESSION_BACKEND", "memory")
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}
