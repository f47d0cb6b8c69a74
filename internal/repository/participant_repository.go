package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatewise/gatewise/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyLinked is returned when a link is attempted on a participant
// record that has already been claimed by an identity.
var ErrAlreadyLinked = errors.New("participant already linked to an identity")

type ParticipantRepository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewParticipantRepository(pool *pgxpool.Pool, logger *logrus.Logger) *ParticipantRepository {
	return &ParticipantRepository{
		pool:   pool,
		logger: logger,
	}
}

// FindByToken returns the participant whose row ID matches the invite
// token, or nil if no such row exists. It returns an error only for
// database failures, not for missing rows.
func (r *ParticipantRepository) FindByToken(ctx context.Context, token string) (*models.Participant, error) {
	const query = `
		SELECT id, auth_user_id, phone, email, created_at
		FROM participants
		WHERE id = $1`

	return r.scanOne(ctx, query, token)
}

// FindByAuthUser returns the participant linked to the given identity,
// or nil if none is linked.
func (r *ParticipantRepository) FindByAuthUser(ctx context.Context, authUserID string) (*models.Participant, error) {
	const query = `
		SELECT id, auth_user_id, phone, email, created_at
		FROM participants
		WHERE auth_user_id = $1`

	return r.scanOne(ctx, query, authUserID)
}

// LinkIdentity claims the participant record for the given identity. The
// update only matches unclaimed rows, so a token that was already used
// yields ErrAlreadyLinked rather than silently re-linking.
func (r *ParticipantRepository) LinkIdentity(ctx context.Context, token, authUserID string) error {
	const query = `
		UPDATE participants
		SET auth_user_id = $2
		WHERE id = $1 AND auth_user_id IS NULL`

	tag, err := r.pool.Exec(ctx, query, token, authUserID)
	if err != nil {
		r.logger.WithError(err).Error("Failed to link participant to identity")
		return fmt.Errorf("failed to link participant: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAlreadyLinked
	}
	return nil
}

func (r *ParticipantRepository) scanOne(ctx context.Context, query string, arg string) (*models.Participant, error) {
	var p models.Participant
	var authUserID, phone, email *string

	err := r.pool.QueryRow(ctx, query, arg).Scan(&p.Token, &authUserID, &phone, &email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithError(err).Error("Failed to query participant")
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}

	if authUserID != nil {
		p.AuthUserID = *authUserID
	}
	if phone != nil {
		p.Phone = *phone
	}
	if email != nil {
		p.Email = *email
	}
	return &p, nil
}
