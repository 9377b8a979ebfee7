package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/models"
)

type profileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.Profile, error)
	SubmitQuiz(ctx context.Context, userID uuid.UUID, req models.SubmitQuizRequest) (*models.SubmitQuizResponse, error)
	ListQuizResponses(ctx context.Context, userID uuid.UUID) ([]*models.QuizResponse, error)
	LatestQuizResponse(ctx context.Context, userID uuid.UUID) (*models.QuizResponse, error)
	RecordBlinkCount(ctx context.Context, userID uuid.UUID, req models.BlinkCountRequest) (*models.BlinkCountResult, error)
	RecordSummary(ctx context.Context, userID uuid.UUID, req models.SummaryRequest) (*models.SummaryResult, error)
	ListSessionHistory(ctx context.Context, userID uuid.UUID) ([]*models.SessionSummary, error)
}

// UserHandler serves the profile, the onboarding quiz and the client-side
// measurements that feed the profile.
type UserHandler struct {
	profile profileService
}

func NewUserHandler(profile profileService) *UserHandler {
	return &UserHandler{profile: profile}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	p, err := h.profile.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	p, err := h.profile.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *UserHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	resp, err := h.profile.SubmitQuiz(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *UserHandler) ListQuiz(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	responses, err := h.profile.ListQuizResponses(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"responses": responses})
}

// ListSessions returns the stored visit history, newest first.
func (h *UserHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	rows, err := h.profile.ListSessionHistory(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": rows})
}

func (h *UserHandler) LatestQuiz(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	resp, err := h.profile.LatestQuizResponse(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) RecordBlinkCount(w http.ResponseWriter, r *http.Request) {
	var req models.BlinkCountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.profile.RecordBlinkCount(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) RecordSummary(w http.ResponseWriter, r *http.Request) {
	var req models.SummaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.profile.RecordSummary(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
