package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ResetService sequences identity lookup, OTP step-up and credential
// rotation. Reset is OTP-gated, not password-attempt-gated; the login
// gate's lockout does not apply here.
type ResetService struct {
	identity           IdentityAdmin
	otp                *OTPService
	participants       ParticipantStore
	defaultDestination string
	logger             *logrus.Logger
}

func NewResetService(
	identityAdmin IdentityAdmin,
	otp *OTPService,
	participants ParticipantStore,
	defaultDestination string,
	logger *logrus.Logger,
) *ResetService {
	return &ResetService{
		identity:           identityAdmin,
		otp:                otp,
		participants:       participants,
		defaultDestination: defaultDestination,
		logger:             logger,
	}
}

// Begin dispatches a reset challenge for an existing identity. An email
// that does not resolve yields ErrUnknownIdentity so the caller can
// route to onboarding instead.
func (s *ResetService) Begin(ctx context.Context, email string) (*PendingChallenge, error) {
	id, err := s.identity.Lookup(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	if id == "" {
		return nil, ErrUnknownIdentity
	}

	destination, err := s.destinationFor(ctx, id)
	if err != nil {
		return nil, err
	}

	masked, err := s.otp.SendChallenge(ctx, destination)
	if err != nil {
		return nil, err
	}

	return &PendingChallenge{
		Email:             email,
		Destination:       destination,
		MaskedDestination: masked,
	}, nil
}

// Complete verifies the challenge and rotates the password through the
// external provider.
func (s *ResetService) Complete(ctx context.Context, email, code, newPassword string) error {
	id, err := s.identity.Lookup(ctx, email)
	if err != nil {
		return fmt.Errorf("identity lookup failed: %w", err)
	}
	if id == "" {
		return ErrUnknownIdentity
	}

	destination, err := s.destinationFor(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.otp.VerifyChallenge(ctx, destination, code)
	if err != nil {
		return err
	}
	if result != VerifyApproved {
		return ErrOTPDenied
	}

	if err := s.identity.UpdatePassword(ctx, id, newPassword); err != nil {
		return fmt.Errorf("failed to rotate password: %w", err)
	}

	s.logger.WithField("user_id", id).Info("Password rotated")
	return nil
}

// destinationFor prefers the phone on the participant record linked to
// the identity, falling back to the configured verification number.
func (s *ResetService) destinationFor(ctx context.Context, authUserID string) (string, error) {
	participant, err := s.participants.FindByAuthUser(ctx, authUserID)
	if err != nil {
		return "", fmt.Errorf("participant lookup failed: %w", err)
	}
	if participant != nil && participant.Phone != "" {
		return participant.Phone, nil
	}
	if s.defaultDestination == "" {
		return "", fmt.Errorf("no OTP destination available for identity")
	}
	return s.defaultDestination, nil
}
