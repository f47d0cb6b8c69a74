package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gatewise/gatewise/internal/middleware"
	"github.com/gatewise/gatewise/internal/models"
	"github.com/gatewise/gatewise/internal/repository"
	"github.com/gatewise/gatewise/internal/service"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	gate       *service.LoginGate
	onboarding *service.OnboardingService
	reset      *service.ResetService
	otp        *service.OTPService
	attemptLog *repository.AttemptLogRepository
	logger     *logrus.Logger
}

// NewAuthHandlers wires the auth endpoints. attemptLog may be nil, in
// which case no audit trail is written.
func NewAuthHandlers(
	gate *service.LoginGate,
	onboarding *service.OnboardingService,
	reset *service.ResetService,
	otp *service.OTPService,
	attemptLog *repository.AttemptLogRepository,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		gate:       gate,
		onboarding: onboarding,
		reset:      reset,
		otp:        otp,
		attemptLog: attemptLog,
		logger:     logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SessionResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

type PendingResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Email       string `json:"email"`
	Token       string `json:"token,omitempty"`
	PhoneNumber string `json:"phone_number"`
}

type CreateAccountRequest struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

type CreatePasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"token"`
	OTP      string `json:"otp"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type RenewPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Email and password are required")
		return
	}

	outcome := h.gate.AttemptLogin(r.Context(), email, req.Password)
	h.recordAttempt(r, email, outcome.Status.String())

	switch outcome.Status {
	case service.LoginLocked:
		remaining := int(outcome.RetryAfter.Seconds())
		message := fmt.Sprintf("Account is locked. Please try again in %d seconds.", remaining)
		if outcome.Imposed {
			message = "Too many failed login attempts. Account locked for 5 minutes."
		}
		h.respondWithStatus(w, http.StatusTooManyRequests, "locked", message)

	case service.LoginUnknownIdentity:
		h.respondWithStatus(w, http.StatusNotFound, "new_member",
			"Email not found. Proceed to new member verification.")

	case service.LoginSuccess:
		h.respondWithJSON(w, http.StatusOK, h.sessionResponse("successful", "Login successful", outcome.Session))

	case service.LoginFailed:
		h.respondWithStatus(w, http.StatusUnauthorized, "unsuccessful",
			fmt.Sprintf("Wrong password. %d attempt(s) left.", outcome.AttemptsRemaining))

	default:
		h.respondWithStatus(w, http.StatusInternalServerError, "failed",
			"Login could not be processed. Please try again later.")
	}
}

func (h *AuthHandlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Email is required")
		return
	}

	pending, err := h.onboarding.Begin(r.Context(), email, req.Link)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyExists):
			h.respondWithStatus(w, http.StatusBadRequest, "failed", "Account already exists")
		case errors.Is(err, service.ErrInvalidToken):
			h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid token")
		case errors.Is(err, repository.ErrAlreadyLinked):
			h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invitation has already been used")
		default:
			h.logger.WithError(err).Error("Failed to begin onboarding")
			h.respondWithStatus(w, http.StatusInternalServerError, "failed", "Error sending OTP")
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, PendingResponse{
		Status:      "pending",
		Message:     fmt.Sprintf("OTP sent to %s", pending.MaskedDestination),
		Email:       pending.Email,
		Token:       pending.Token,
		PhoneNumber: pending.Destination,
	})
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid request body")
		return
	}

	result, err := h.otp.VerifyChallenge(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		h.respondWithStatus(w, http.StatusInternalServerError, "failed",
			"OTP verification could not be processed. Please try again later.")
		return
	}

	if result != service.VerifyApproved {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid OTP")
		return
	}

	h.respondWithStatus(w, http.StatusCreated, "success", "Proceed to create password")
}

func (h *AuthHandlers) CreatePassword(w http.ResponseWriter, r *http.Request) {
	var req CreatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" || req.Token == "" {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Email, password and token are required")
		return
	}

	session, err := h.onboarding.Complete(r.Context(), email, req.Token, req.OTP, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOTPDenied):
			h.respondWithStatus(w, http.StatusUnauthorized, "failed", "Invalid OTP")
		case errors.Is(err, service.ErrInvalidToken):
			h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid token")
		case errors.Is(err, repository.ErrAlreadyLinked):
			h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invitation has already been used")
		case errors.Is(err, service.ErrAlreadyExists):
			h.respondWithStatus(w, http.StatusBadRequest, "failed", "Account already exists")
		default:
			h.logger.WithError(err).Error("Failed to complete onboarding")
			h.respondWithStatus(w, http.StatusInternalServerError, "failed",
				"Account could not be created. Please try again later.")
		}
		return
	}

	h.respondWithJSON(w, http.StatusCreated,
		h.sessionResponse("success", "Account created successfully. Logging in...", session))
}

func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Email is required")
		return
	}

	pending, err := h.reset.Begin(r.Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrUnknownIdentity) {
			h.respondWithStatus(w, http.StatusNotFound, "new_member",
				"Email not found. Proceed to new member verification.")
			return
		}
		h.logger.WithError(err).Error("Failed to begin password reset")
		h.respondWithStatus(w, http.StatusInternalServerError, "failed", "Error sending OTP")
		return
	}

	h.respondWithJSON(w, http.StatusOK, PendingResponse{
		Status:      "pending",
		Message:     fmt.Sprintf("OTP sent to %s", pending.MaskedDestination),
		Email:       pending.Email,
		PhoneNumber: pending.Destination,
	})
}

func (h *AuthHandlers) RenewPassword(w http.ResponseWriter, r *http.Request) {
	var req RenewPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		h.respondWithStatus(w, http.StatusBadRequest, "failed", "Email and password are required")
		return
	}

	err := h.reset.Complete(r.Context(), email, req.OTP, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownIdentity):
			h.respondWithStatus(w, http.StatusNotFound, "new_member",
				"Email not found. Proceed to new member verification.")
		case errors.Is(err, service.ErrOTPDenied):
			h.respondWithStatus(w, http.StatusUnauthorized, "failed", "Invalid OTP")
		default:
			h.logger.WithError(err).Error("Failed to renew password")
			h.respondWithStatus(w, http.StatusInternalServerError, "failed",
				"Password could not be updated. Please try again later.")
		}
		return
	}

	h.respondWithStatus(w, http.StatusOK, "success", "Password updated successfully")
}

// LoginHistory returns the caller's recent login attempts from the audit
// trail. Requires auth middleware.
func (h *AuthHandlers) LoginHistory(w http.ResponseWriter, r *http.Request) {
	email, _ := r.Context().Value("email").(string)
	if email == "" {
		h.respondWithStatus(w, http.StatusUnauthorized, "failed", "Invalid token")
		return
	}

	if h.attemptLog == nil {
		h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"attempts": []models.AttemptRecord{}})
		return
	}

	records, err := h.attemptLog.ListRecent(r.Context(), email, 50)
	if err != nil {
		h.respondWithStatus(w, http.StatusInternalServerError, "failed", "Failed to load login history")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"attempts": records})
}

func (h *AuthHandlers) sessionResponse(status, message string, session *models.Session) SessionResponse {
	return SessionResponse{
		Status:       status,
		Message:      message,
		UserID:       session.UserID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
		ExpiresIn:    session.ExpiresIn,
		TokenType:    session.TokenType,
	}
}

func (h *AuthHandlers) recordAttempt(r *http.Request, email, outcome string) {
	if h.attemptLog == nil {
		return
	}
	rec := models.AttemptRecord{
		Email:       email,
		Outcome:     outcome,
		RemoteIP:    middleware.RealIP(r),
		AttemptedAt: time.Now().UTC(),
	}
	if err := h.attemptLog.Record(r.Context(), rec); err != nil {
		h.logger.WithError(err).Warn("Failed to record login attempt")
	}
}

func (h *AuthHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *AuthHandlers) respondWithStatus(w http.ResponseWriter, status int, tag, message string) {
	h.respondWithJSON(w, status, StatusResponse{
		Status:  tag,
		Message: message,
	})
}
