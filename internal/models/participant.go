package models

import "time"

// Participant is a row in the relational participant table. The row ID
// doubles as the invite token embedded in onboarding links; AuthUserID is
// empty until the participant claims an identity.
type Participant struct {
	Token      string    `json:"token"`
	AuthUserID string    `json:"auth_user_id,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Claimed reports whether the participant record is already linked to
// an identity. A claimed record's token is permanently inert.
func (p *Participant) Claimed() bool {
	return p.AuthUserID != ""
}
