package models

import "time"

// Feedback is a submitted feedback form, stored against the submitter's
// identity in the forms table.
type Feedback struct {
	ID         int64     `json:"id,omitempty"`
	AuthUserID string    `json:"auth_user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
