// internal/pkg/session/types.go
package session

import "time"

// Session is the authenticated ERP credential held in memory by the Manager.
// It is never persisted.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is the lifecycle position of the managed session.
type State string

const (
	StateAbsent         State = "absent"
	StateAuthenticating State = "authenticating"
	StateValid          State = "valid"
	StateExpiringSoon   State = "expiring_soon"
	StateExpired        State = "expired"
)

// Status is a token-free snapshot for diagnostics.
type Status struct {
	State         State      `json:"state"`
	UserID        int64      `json:"user_id,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Logins        int64      `json:"logins"`
	Invalidations int64      `json:"invalidations"`
}

// Credentials identify the ERP principal.
type Credentials struct {
	Database string
	Login    string
	Password string
}

// Config tunes lifetime, refresh and retry behaviour.
type Config struct {
	Credentials   Credentials
	Lifetime      time.Duration
	RefreshWindow time.Duration
	CallTimeout   time.Duration
	MaxRetries    int
}

func (c Config) withDefaults() Config {
	if c.Lifetime <= 0 {
		c.Lifetime = 24 * time.Hour
	}
	if c.RefreshWindow < 0 {
		c.RefreshWindow = 0
	}
	if c.RefreshWindow == 0 {
		c.RefreshWindow = 30 * time.Minute
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}
