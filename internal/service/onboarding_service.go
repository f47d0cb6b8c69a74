package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatewise/gatewise/internal/models"
	"github.com/gatewise/gatewise/internal/repository"
	"github.com/sirupsen/logrus"
)

// IdentityAdmin is the slice of the identity provider the workflows
// need: lookup, sign-in, and the admin operations for provisioning,
// rotation and compensation.
type IdentityAdmin interface {
	Lookup(ctx context.Context, email string) (string, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	CreateUser(ctx context.Context, email, password string) (string, error)
	UpdatePassword(ctx context.Context, userID, newPassword string) error
	DeleteUser(ctx context.Context, userID string) error
}

// PendingChallenge is returned when a step-up OTP has been dispatched.
// The client echoes Email, Token and Destination back on the next step;
// MaskedDestination is for display only.
type PendingChallenge struct {
	Email             string
	Token             string
	Destination       string
	MaskedDestination string
}

// OnboardingService sequences invite resolution, OTP step-up, credential
// creation, identity linkage and session issuance for new members.
type OnboardingService struct {
	identity           IdentityAdmin
	otp                *OTPService
	invites            *InviteService
	participants       ParticipantStore
	defaultDestination string
	logger             *logrus.Logger
}

func NewOnboardingService(
	identityAdmin IdentityAdmin,
	otp *OTPService,
	invites *InviteService,
	participants ParticipantStore,
	defaultDestination string,
	logger *logrus.Logger,
) *OnboardingService {
	return &OnboardingService{
		identity:           identityAdmin,
		otp:                otp,
		invites:            invites,
		participants:       participants,
		defaultDestination: defaultDestination,
		logger:             logger,
	}
}

// Begin validates the invite link, authorizes the token and dispatches
// the step-up challenge. The destination is the participant's own phone
// when the record has one, falling back to the configured verification
// number.
func (s *OnboardingService) Begin(ctx context.Context, email, link string) (*PendingChallenge, error) {
	id, err := s.identity.Lookup(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	if id != "" {
		return nil, ErrAlreadyExists
	}

	token, err := s.invites.ResolveToken(link)
	if err != nil {
		return nil, err
	}

	participant, err := s.invites.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	if participant.Claimed() {
		return nil, repository.ErrAlreadyLinked
	}

	destination := s.destinationFor(participant)
	masked, err := s.otp.SendChallenge(ctx, destination)
	if err != nil {
		return nil, err
	}

	return &PendingChallenge{
		Email:             email,
		Token:             token,
		Destination:       destination,
		MaskedDestination: masked,
	}, nil
}

// Complete verifies the step-up challenge, then provisions the account:
// create identity, link the participant record, sign in for a session.
// The no-existing-identity check is repeated here to close the race
// between token resolution and use. If linking fails after the identity
// was created, the identity is deleted so no orphan remains.
func (s *OnboardingService) Complete(ctx context.Context, email, token, code, password string) (*models.Session, error) {
	participant, err := s.invites.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	if participant.Claimed() {
		return nil, repository.ErrAlreadyLinked
	}

	result, err := s.otp.VerifyChallenge(ctx, s.destinationFor(participant), code)
	if err != nil {
		return nil, err
	}
	if result != VerifyApproved {
		return nil, ErrOTPDenied
	}

	id, err := s.identity.Lookup(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	if id != "" {
		return nil, ErrAlreadyExists
	}

	userID, err := s.identity.CreateUser(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	if err := s.participants.LinkIdentity(ctx, token, userID); err != nil {
		// Compensate so the failed link does not leave an identity
		// nobody can claim.
		if delErr := s.identity.DeleteUser(ctx, userID); delErr != nil {
			s.logger.WithError(delErr).WithField("user_id", userID).
				Error("Failed to delete identity after link failure; manual cleanup required")
		}
		if errors.Is(err, repository.ErrAlreadyLinked) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to link participant: %w", err)
	}

	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		// The account exists and is linked at this point; the client can
		// recover by logging in normally.
		return nil, fmt.Errorf("account created but sign-in failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": session.UserID,
		"token":   token,
	}).Info("Participant onboarded")

	return session, nil
}

func (s *OnboardingService) destinationFor(participant *models.Participant) string {
	if participant.Phone != "" {
		return participant.Phone
	}
	return s.defaultDestination
}
