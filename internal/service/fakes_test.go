package service

import (
	"context"
	"io"

	"github.com/gatewise/gatewise/internal/identity"
	"github.com/gatewise/gatewise/internal/models"
	"github.com/gatewise/gatewise/internal/repository"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeIdentity implements IdentityAdmin (and CredentialChecker) against
// an in-memory user table.
type fakeIdentity struct {
	ids       map[string]string // email -> identity id
	passwords map[string]string // email -> password
	lookupErr error
	signInErr error
	createErr error

	created []string
	deleted []string
	rotated map[string]string // identity id -> new password
	nextID  string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		ids:       make(map[string]string),
		passwords: make(map[string]string),
		rotated:   make(map[string]string),
		nextID:    "id-new",
	}
}

func (f *fakeIdentity) Lookup(ctx context.Context, email string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.ids[email], nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	if f.passwords[email] != password {
		return nil, identity.ErrInvalidCredentials
	}
	return &models.Session{
		UserID:       f.ids[email],
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}, nil
}

func (f *fakeIdentity) CreateUser(ctx context.Context, email, password string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.ids[email] = f.nextID
	f.passwords[email] = password
	f.created = append(f.created, email)
	return f.nextID, nil
}

func (f *fakeIdentity) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	f.rotated[userID] = newPassword
	return nil
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	for email, id := range f.ids {
		if id == userID {
			delete(f.ids, email)
			delete(f.passwords, email)
		}
	}
	return nil
}

// fakeProvider implements ChallengeProvider.
type fakeProvider struct {
	sendErr     error
	checkStatus string
	checkErr    error

	sentTo  []string
	checked []string
}

func (f *fakeProvider) Send(ctx context.Context, destination string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTo = append(f.sentTo, destination)
	return nil
}

func (f *fakeProvider) Check(ctx context.Context, destination, code string) (string, error) {
	f.checked = append(f.checked, destination+":"+code)
	if f.checkErr != nil {
		return "", f.checkErr
	}
	return f.checkStatus, nil
}

// fakeParticipants implements ParticipantStore.
type fakeParticipants struct {
	byToken map[string]*models.Participant
	linkErr error
	findErr error
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{byToken: make(map[string]*models.Participant)}
}

func (f *fakeParticipants) FindByToken(ctx context.Context, token string) (*models.Participant, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byToken[token], nil
}

func (f *fakeParticipants) FindByAuthUser(ctx context.Context, authUserID string) (*models.Participant, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, p := range f.byToken {
		if p.AuthUserID == authUserID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeParticipants) LinkIdentity(ctx context.Context, token, authUserID string) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	p, ok := f.byToken[token]
	if !ok || p.AuthUserID != "" {
		return repository.ErrAlreadyLinked
	}
	p.AuthUserID = authUserID
	return nil
}
