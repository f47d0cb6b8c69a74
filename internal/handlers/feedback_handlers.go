package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gatewise/gatewise/internal/models"
	"github.com/sirupsen/logrus"
)

// IdentityLookup resolves an email to an identity ID, or "" when unknown.
type IdentityLookup interface {
	Lookup(ctx context.Context, email string) (string, error)
}

// FeedbackStore persists submitted feedback forms.
type FeedbackStore interface {
	Insert(ctx context.Context, fb *models.Feedback) error
}

type FeedbackHandlers struct {
	identity IdentityLookup
	store    FeedbackStore
	logger   *logrus.Logger
}

func NewFeedbackHandlers(identityLookup IdentityLookup, store FeedbackStore, logger *logrus.Logger) *FeedbackHandlers {
	return &FeedbackHandlers{
		identity: identityLookup,
		store:    store,
		logger:   logger,
	}
}

type FeedbackRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (h *FeedbackHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" || req.Category == "" || req.Message == "" {
		h.respondWithError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	authUserID, err := h.identity.Lookup(r.Context(), email)
	if err != nil {
		h.logger.WithError(err).Error("Identity lookup failed for feedback form")
		h.respondWithError(w, http.StatusInternalServerError, "Feedback could not be submitted")
		return
	}
	if authUserID == "" {
		h.respondWithError(w, http.StatusNotFound, "Email not found in database")
		return
	}

	fb := &models.Feedback{
		AuthUserID: authUserID,
		Name:       req.Name,
		Email:      email,
		Category:   req.Category,
		Content:    req.Message,
	}
	if err := h.store.Insert(r.Context(), fb); err != nil {
		h.logger.WithError(err).Error("Failed to store feedback form")
		h.respondWithError(w, http.StatusInternalServerError, "Feedback could not be submitted")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    fb,
	})
}

func (h *FeedbackHandlers) respondWithError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
