package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gatewise/gatewise/internal/models"
	"github.com/sirupsen/logrus"
)

// attemptRetention is how long audit entries stay queryable before the
// table's TTL reaps them.
const attemptRetention = 30 * 24 * time.Hour

// AttemptLogRepository keeps a best-effort audit trail of login attempts
// in DynamoDB. Writes here never influence a login outcome.
type AttemptLogRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewAttemptLogRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *AttemptLogRepository {
	return &AttemptLogRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Record stores one attempt entry with a TTL.
func (r *AttemptLogRepository) Record(ctx context.Context, rec models.AttemptRecord) error {
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.AttemptedAt.Add(attemptRetention)
	}

	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: fmt.Sprintf("LOGIN_ATTEMPT#%s", rec.Email)},
		"SK":          &types.AttributeValueMemberS{Value: rec.AttemptedAt.Format(time.RFC3339Nano)},
		"Email":       &types.AttributeValueMemberS{Value: rec.Email},
		"Outcome":     &types.AttributeValueMemberS{Value: rec.Outcome},
		"RemoteIP":    &types.AttributeValueMemberS{Value: rec.RemoteIP},
		"AttemptedAt": &types.AttributeValueMemberS{Value: rec.AttemptedAt.Format(time.RFC3339Nano)},
		"TTL":         &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.ExpiresAt.Unix())},
	}

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store login attempt record")
		return fmt.Errorf("failed to store attempt record: %w", err)
	}
	return nil
}

// ListRecent returns up to limit attempt entries for the email, newest
// first.
func (r *AttemptLogRepository) ListRecent(ctx context.Context, email string, limit int32) ([]models.AttemptRecord, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("LOGIN_ATTEMPT#%s", email)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to query login attempt records")
		return nil, fmt.Errorf("failed to query attempt records: %w", err)
	}

	var records []models.AttemptRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt records: %w", err)
	}
	return records, nil
}
