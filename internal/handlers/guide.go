package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/models"
)

type guideService interface {
	Latest(ctx context.Context, userID uuid.UUID) (*models.GuideResult, error)
	Exercise(ctx context.Context, req models.ExerciseRequest) *models.ExerciseResult
}

type GuideHandler struct {
	guides guideService
}

func NewGuideHandler(guides guideService) *GuideHandler {
	return &GuideHandler{guides: guides}
}

func (h *GuideHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	result, err := h.guides.Latest(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *GuideHandler) Exercise(w http.ResponseWriter, r *http.Request) {
	var req models.ExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentBreakCount < 0 || req.WorkDuration < 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"current_break_count": "Counts and durations must not be negative",
		}, r))
		return
	}

	writeJSON(w, http.StatusOK, h.guides.Exercise(r.Context(), req))
}
