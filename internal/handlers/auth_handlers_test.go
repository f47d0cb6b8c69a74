package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gatewise/gatewise/internal/identity"
	"github.com/gatewise/gatewise/internal/models"
	"github.com/gatewise/gatewise/internal/repository"
	"github.com/gatewise/gatewise/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	testToken = "0b9fd391-7861-4a38-a024-59b276b406a5"
	testLink  = "https://portal.example.com/onboard?token=" + testToken
	testPhone = "+15559876543"
)

type identityStub struct {
	ids       map[string]string
	passwords map[string]string
}

func (s *identityStub) Lookup(ctx context.Context, email string) (string, error) {
	return s.ids[email], nil
}

func (s *identityStub) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if s.passwords[email] != password {
		return nil, identity.ErrInvalidCredentials
	}
	return &models.Session{
		UserID:       s.ids[email],
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}, nil
}

func (s *identityStub) CreateUser(ctx context.Context, email, password string) (string, error) {
	s.ids[email] = "id-new"
	s.passwords[email] = password
	return "id-new", nil
}

func (s *identityStub) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	for email, id := range s.ids {
		if id == userID {
			s.passwords[email] = newPassword
		}
	}
	return nil
}

func (s *identityStub) DeleteUser(ctx context.Context, userID string) error {
	for email, id := range s.ids {
		if id == userID {
			delete(s.ids, email)
			delete(s.passwords, email)
		}
	}
	return nil
}

type providerStub struct {
	status  string
	sendErr error
}

func (s *providerStub) Send(ctx context.Context, destination string) error {
	return s.sendErr
}

func (s *providerStub) Check(ctx context.Context, destination, code string) (string, error) {
	return s.status, nil
}

type participantsStub struct {
	byToken map[string]*models.Participant
}

func (s *participantsStub) FindByToken(ctx context.Context, token string) (*models.Participant, error) {
	return s.byToken[token], nil
}

func (s *participantsStub) FindByAuthUser(ctx context.Context, authUserID string) (*models.Participant, error) {
	for _, p := range s.byToken {
		if p.AuthUserID == authUserID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *participantsStub) LinkIdentity(ctx context.Context, token, authUserID string) error {
	p, ok := s.byToken[token]
	if !ok || p.AuthUserID != "" {
		return repository.ErrAlreadyLinked
	}
	p.AuthUserID = authUserID
	return nil
}

func newTestRouter(t *testing.T, ident *identityStub, provider *providerStub) *mux.Router {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	participants := &participantsStub{byToken: map[string]*models.Participant{
		testToken: {Token: testToken, Phone: testPhone},
	}}

	otpService := service.NewOTPService(provider, logger)
	invites := service.NewInviteService(participants, logger)
	attempts := repository.NewMemoryAttemptStore(3, 5*time.Minute)
	gate := service.NewLoginGate(ident, attempts, 5*time.Minute, logger)
	onboarding := service.NewOnboardingService(ident, otpService, invites, participants, "+15550000000", logger)
	reset := service.NewResetService(ident, otpService, participants, "+15550000000", logger)

	h := NewAuthHandlers(gate, onboarding, reset, otpService, nil, logger)

	router := mux.NewRouter()
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/create_account", h.CreateAccount).Methods("POST")
	router.HandleFunc("/verify_otp", h.VerifyOTP).Methods("POST")
	router.HandleFunc("/create_password", h.CreatePassword).Methods("POST")
	router.HandleFunc("/forgot_password", h.ForgotPassword).Methods("POST")
	router.HandleFunc("/renew_password", h.RenewPassword).Methods("POST")
	return router
}

func postJSON(t *testing.T, router *mux.Router, path string, body map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, decoded
}

func registeredIdentity() *identityStub {
	return &identityStub{
		ids:       map[string]string{"user@x.com": "id-1"},
		passwords: map[string]string{"user@x.com": "correct"},
	}
}

func TestLoginSuccessful(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/login", map[string]string{
		"email": "user@x.com", "password": "correct",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "successful" {
		t.Errorf("status tag = %v", body["status"])
	}
	if body["access_token"] == "" || body["user_id"] != "id-1" {
		t.Errorf("session fields missing: %v", body)
	}
}

func TestLoginWrongPasswordCountsDown(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/login", map[string]string{
		"email": "user@x.com", "password": "nope",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if body["status"] != "unsuccessful" {
		t.Errorf("status tag = %v", body["status"])
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "2 attempt(s) left") {
		t.Errorf("message = %q, want remaining attempt count", msg)
	}
}

func TestLoginLockoutAfterThreeFailures(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	creds := map[string]string{"email": "user@x.com", "password": "nope"}
	postJSON(t, router, "/login", creds)
	postJSON(t, router, "/login", creds)

	rec, body := postJSON(t, router, "/login", creds)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third failure: status = %d, want 429", rec.Code)
	}
	if body["status"] != "locked" {
		t.Errorf("status tag = %v", body["status"])
	}

	// While locked, even the right password is rejected with the
	// remaining lockout time (~300 seconds).
	rec, body = postJSON(t, router, "/login", map[string]string{
		"email": "user@x.com", "password": "correct",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked login: status = %d, want 429", rec.Code)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "try again in") {
		t.Errorf("message = %q, want remaining seconds", msg)
	}
}

func TestLoginUnknownEmailRoutesToOnboarding(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/login", map[string]string{
		"email": "stranger@x.com", "password": "whatever",
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["status"] != "new_member" {
		t.Errorf("status tag = %v", body["status"])
	}
}

func TestCreateAccountPending(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/create_account", map[string]string{
		"email": "new@x.com", "link": testLink,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", rec.Code, body)
	}
	if body["status"] != "pending" {
		t.Errorf("status tag = %v", body["status"])
	}
	if body["token"] != testToken || body["email"] != "new@x.com" {
		t.Errorf("echo fields = %v", body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "6543") || strings.Contains(msg, testPhone) {
		t.Errorf("message = %q, want masked destination", msg)
	}
}

func TestCreateAccountMissingToken(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/create_account", map[string]string{
		"email": "new@x.com", "link": "https://portal.example.com/onboard",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["status"] != "failed" {
		t.Errorf("status tag = %v", body["status"])
	}
}

func TestCreateAccountExistingEmail(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/create_account", map[string]string{
		"email": "user@x.com", "link": testLink,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "already exists") {
		t.Errorf("message = %q", msg)
	}
}

func TestVerifyOTPApproved(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/verify_otp", map[string]string{
		"phone_number": testPhone, "otp": "123456",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if body["status"] != "success" {
		t.Errorf("status tag = %v", body["status"])
	}
}

func TestVerifyOTPDenied(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "pending"})

	rec, body := postJSON(t, router, "/verify_otp", map[string]string{
		"phone_number": testPhone, "otp": "000000",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["status"] != "failed" {
		t.Errorf("status tag = %v", body["status"])
	}
}

func TestCreatePasswordProvisionsAndSignsIn(t *testing.T) {
	ident := registeredIdentity()
	router := newTestRouter(t, ident, &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/create_password", map[string]string{
		"email": "new@x.com", "password": "s3cret", "token": testToken, "otp": "123456",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", rec.Code, body)
	}
	if body["status"] != "success" {
		t.Errorf("status tag = %v", body["status"])
	}
	if body["access_token"] == "" {
		t.Error("response should carry session tokens")
	}
	if ident.ids["new@x.com"] == "" {
		t.Error("identity was not created")
	}
}

func TestCreatePasswordDeniedOTP(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "pending"})

	rec, _ := postJSON(t, router, "/create_password", map[string]string{
		"email": "new@x.com", "password": "s3cret", "token": testToken, "otp": "000000",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/forgot_password", map[string]string{
		"email": "stranger@x.com",
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["status"] != "new_member" {
		t.Errorf("status tag = %v", body["status"])
	}
}

func TestForgotPasswordPending(t *testing.T) {
	router := newTestRouter(t, registeredIdentity(), &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/forgot_password", map[string]string{
		"email": "user@x.com",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "pending" {
		t.Errorf("status tag = %v", body["status"])
	}
}

func TestRenewPassword(t *testing.T) {
	ident := registeredIdentity()
	router := newTestRouter(t, ident, &providerStub{status: "approved"})

	rec, body := postJSON(t, router, "/renew_password", map[string]string{
		"email": "user@x.com", "password": "brand-new", "otp": "123456",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", rec.Code, body)
	}
	if body["status"] != "success" {
		t.Errorf("status tag = %v", body["status"])
	}
	if ident.passwords["user@x.com"] != "brand-new" {
		t.Error("password was not rotated")
	}
}

func TestRenewPasswordDeniedOTP(t *testing.T) {
	ident := registeredIdentity()
	router := newTestRouter(t, ident, &providerStub{status: "pending"})

	rec, _ := postJSON(t, router, "/renew_password", map[string]string{
		"email": "user@x.com", "password": "brand-new", "otp": "000000",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ident.passwords["user@x.com"] != "correct" {
		t.Error("password must not rotate on a denied challenge")
	}
}
