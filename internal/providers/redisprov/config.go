package redisprov

import "time"

// Config holds settings shared by the Redis-backed providers
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// SessionTTL is how long a session record survives without a
	// heartbeat before the directory reaps it
	SessionTTL time.Duration

	// AllocationTTL bounds how long an unclaimed relay allocation is
	// resolvable through its join code
	AllocationTTL time.Duration

	// RelayHost and RelayPort are handed out in allocation credentials
	RelayHost string
	RelayPort uint16
}

// DefaultConfig returns sensible defaults for the Redis providers
func DefaultConfig() Config {
	return Config{
		URL:           "redis://localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		SessionTTL:    60 * time.Second,
		AllocationTTL: 10 * time.Minute,
		RelayHost:     "127.0.0.1",
		RelayPort:     7777,
	}
}
