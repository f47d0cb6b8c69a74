package models

import "time"

// AttemptState tracks failed logins for one identity. LockedUntil is the
// zero time when no lockout is in force. FailCount resets to zero whenever
// a lockout is imposed or a login succeeds.
type AttemptState struct {
	FailCount   int       `json:"fail_count"`
	LockedUntil time.Time `json:"locked_until"`
}

// AttemptRecord is one audit-trail entry for a login attempt.
type AttemptRecord struct {
	Email       string    `json:"email"`
	Outcome     string    `json:"outcome"`
	RemoteIP    string    `json:"remote_ip,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
