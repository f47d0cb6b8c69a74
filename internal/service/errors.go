package service

import "errors"

var (
	// ErrUnknownIdentity means the email does not resolve to any identity;
	// callers route the user to onboarding.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrAlreadyExists means an identity already exists for the email.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrInvalidToken covers malformed onboarding links, missing token
	// parameters and tokens that match no participant record.
	ErrInvalidToken = errors.New("invalid invite token")

	// ErrOTPDenied is the provider's explicit rejection of a submitted code.
	ErrOTPDenied = errors.New("otp denied")
)
