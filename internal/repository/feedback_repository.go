package repository

import (
	"context"
	"fmt"

	"github.com/gatewise/gatewise/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type FeedbackRepository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewFeedbackRepository(pool *pgxpool.Pool, logger *logrus.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		pool:   pool,
		logger: logger,
	}
}

// Insert stores a feedback form row and fills in the generated ID and
// creation timestamp.
func (r *FeedbackRepository) Insert(ctx context.Context, fb *models.Feedback) error {
	const query = `
		INSERT INTO forms (auth_user_id, name, email, category, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		fb.AuthUserID, fb.Name, fb.Email, fb.Category, fb.Content,
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		r.logger.WithError(err).Error("Failed to insert feedback form")
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}
