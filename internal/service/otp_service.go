package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ChallengeProvider is the slice of the OTP delivery provider the
// orchestrator needs. The provider owns code generation, expiry, and
// at-most-one-outstanding-challenge-per-destination semantics.
type ChallengeProvider interface {
	Send(ctx context.Context, destination string) error
	Check(ctx context.Context, destination, code string) (string, error)
}

type VerifyResult int

const (
	VerifyApproved VerifyResult = iota
	VerifyDenied
)

const providerStatusApproved = "approved"

// OTPService wraps the provider's send and check primitives with input
// normalization, destination masking and uniform result shaping. It holds
// no state between send and verify.
type OTPService struct {
	provider ChallengeProvider
	logger   *logrus.Logger
}

func NewOTPService(provider ChallengeProvider, logger *logrus.Logger) *OTPService {
	return &OTPService{
		provider: provider,
		logger:   logger,
	}
}

// SendChallenge asks the provider to deliver a code to destination and
// returns the masked destination for display.
func (s *OTPService) SendChallenge(ctx context.Context, destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("destination is required")
	}

	if err := s.provider.Send(ctx, destination); err != nil {
		s.logger.WithError(err).Error("Failed to send OTP challenge")
		return "", fmt.Errorf("failed to send challenge: %w", err)
	}

	s.logger.WithField("destination", MaskDestination(destination)).Info("OTP challenge sent")
	return MaskDestination(destination), nil
}

// VerifyChallenge submits a code for the destination's outstanding
// challenge. Provider status "approved" maps to VerifyApproved, any other
// explicit status to VerifyDenied; transport failures come back as an
// error and must not be treated as a denial.
func (s *OTPService) VerifyChallenge(ctx context.Context, destination, code string) (VerifyResult, error) {
	destination = strings.TrimSpace(destination)
	code = strings.TrimSpace(code)
	if destination == "" || code == "" {
		return VerifyDenied, nil
	}

	status, err := s.provider.Check(ctx, destination, code)
	if err != nil {
		s.logger.WithError(err).Error("OTP verification check failed")
		return VerifyDenied, fmt.Errorf("failed to verify challenge: %w", err)
	}

	if status == providerStatusApproved {
		return VerifyApproved, nil
	}
	return VerifyDenied, nil
}

// MaskDestination hides all but the last 4 characters of a destination,
// preserving its length. Strings of 4 or fewer characters are returned
// unchanged. The result is for display only, never for matching.
func MaskDestination(destination string) string {
	if len(destination) <= 4 {
		return destination
	}
	return strings.Repeat("*", len(destination)-4) + destination[len(destination)-4:]
}
