package service

import (
	"context"
	"errors"
	"time"

	"github.com/gatewise/gatewise/internal/identity"
	"github.com/gatewise/gatewise/internal/models"
	"github.com/gatewise/gatewise/internal/repository"
	"github.com/sirupsen/logrus"
)

// CredentialChecker is the slice of the identity provider the login gate
// needs: resolving an email and checking a password for a session.
type CredentialChecker interface {
	Lookup(ctx context.Context, email string) (string, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
}

type LoginStatus int

const (
	LoginSuccess LoginStatus = iota
	LoginFailed
	LoginLocked
	LoginUnknownIdentity
	LoginTransientError
)

func (s LoginStatus) String() string {
	switch s {
	case LoginSuccess:
		return "success"
	case LoginFailed:
		return "failed"
	case LoginLocked:
		return "locked"
	case LoginUnknownIdentity:
		return "unknown_identity"
	default:
		return "transient_error"
	}
}

// LoginOutcome is the gate's classification of one attempt. Session is
// set only on LoginSuccess; AttemptsRemaining only on LoginFailed;
// RetryAfter only on LoginLocked. Imposed marks the attempt that
// triggered the lockout, as opposed to one rejected by an existing one.
type LoginOutcome struct {
	Status            LoginStatus
	Session           *models.Session
	AttemptsRemaining int
	RetryAfter        time.Duration
	Imposed           bool
}

// LoginGate guards password verification with a per-identity failed
// attempt counter and timed lockout. The attempt store is never invoked
// while the outbound credential check is in flight, so no identity lock
// is held across a network call.
type LoginGate struct {
	identity CredentialChecker
	attempts repository.AttemptStore
	lockout  time.Duration
	logger   *logrus.Logger
}

func NewLoginGate(checker CredentialChecker, attempts repository.AttemptStore, lockout time.Duration, logger *logrus.Logger) *LoginGate {
	return &LoginGate{
		identity: checker,
		attempts: attempts,
		lockout:  lockout,
		logger:   logger,
	}
}

// AttemptLogin evaluates one login attempt for email. An active lockout
// short-circuits before any provider call. Only an authoritative
// wrong-password reject counts toward the lockout; provider outages are
// surfaced as a transient outcome and leave the counter untouched.
func (g *LoginGate) AttemptLogin(ctx context.Context, email, password string) LoginOutcome {
	locked, remaining, err := g.attempts.Status(ctx, email)
	if err != nil {
		g.logger.WithError(err).Error("Attempt store unavailable")
		return LoginOutcome{Status: LoginTransientError}
	}
	if locked {
		return LoginOutcome{Status: LoginLocked, RetryAfter: remaining}
	}

	id, err := g.identity.Lookup(ctx, email)
	if err != nil {
		g.logger.WithError(err).Error("Identity lookup failed")
		return LoginOutcome{Status: LoginTransientError}
	}
	if id == "" {
		return LoginOutcome{Status: LoginUnknownIdentity}
	}

	session, err := g.identity.SignIn(ctx, email, password)
	if err == nil {
		if serr := g.attempts.RecordSuccess(ctx, email); serr != nil {
			g.logger.WithError(serr).Warn("Failed to reset attempt counter after successful login")
		}
		return LoginOutcome{Status: LoginSuccess, Session: session}
	}

	if !errors.Is(err, identity.ErrInvalidCredentials) {
		g.logger.WithError(err).Error("Credential check failed for a non-credential reason")
		return LoginOutcome{Status: LoginTransientError}
	}

	nowLocked, attemptsRemaining, err := g.attempts.RecordFailure(ctx, email)
	if err != nil {
		g.logger.WithError(err).Error("Failed to record login failure")
		return LoginOutcome{Status: LoginTransientError}
	}
	if nowLocked {
		return LoginOutcome{Status: LoginLocked, RetryAfter: g.lockout, Imposed: true}
	}
	return LoginOutcome{Status: LoginFailed, AttemptsRemaining: attemptsRemaining}
}
