package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gatewise/gatewise/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ParticipantStore is the slice of the relational participant table the
// core needs: token lookup, identity lookup and the one-shot link.
type ParticipantStore interface {
	FindByToken(ctx context.Context, token string) (*models.Participant, error)
	FindByAuthUser(ctx context.Context, authUserID string) (*models.Participant, error)
	LinkIdentity(ctx context.Context, token, authUserID string) error
}

// InviteService extracts invite tokens from onboarding links and checks
// them against the unclaimed-participant lookup.
type InviteService struct {
	participants ParticipantStore
	logger       *logrus.Logger
}

func NewInviteService(participants ParticipantStore, logger *logrus.Logger) *InviteService {
	return &InviteService{
		participants: participants,
		logger:       logger,
	}
}

// ResolveToken extracts the token query parameter from an onboarding
// link. Malformed URLs, a missing parameter, and a token that is not a
// participant row ID all yield ErrInvalidToken; callers need not tell
// them apart.
func (s *InviteService) ResolveToken(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("malformed onboarding link: %w", ErrInvalidToken)
	}

	token := parsed.Query().Get("token")
	if token == "" {
		return "", fmt.Errorf("no token in onboarding link: %w", ErrInvalidToken)
	}

	if _, err := uuid.Parse(token); err != nil {
		return "", fmt.Errorf("token is not a participant id: %w", ErrInvalidToken)
	}
	return token, nil
}

// Authorize looks up the participant record for the token. A hit is
// authorization to proceed; whether the record is already claimed is the
// workflow's concern, which re-checks immediately before provisioning.
func (s *InviteService) Authorize(ctx context.Context, token string) (*models.Participant, error) {
	participant, err := s.participants.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("participant lookup failed: %w", err)
	}
	if participant == nil {
		return nil, ErrInvalidToken
	}
	return participant, nil
}
