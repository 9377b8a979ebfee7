package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/models"
	"blinkfit-backend/internal/session"
)

type trackingService interface {
	Start(ctx context.Context, userID uuid.UUID, req models.StartSessionRequest) (session.State, error)
	SubmitFrames(ctx context.Context, userID uuid.UUID, frames []models.FrameInput) (*models.FramesResult, error)
	Pause(ctx context.Context, userID uuid.UUID) (session.State, error)
	Resume(ctx context.Context, userID uuid.UUID) (session.State, error)
	Current(ctx context.Context, userID uuid.UUID) (session.State, error)
	End(ctx context.Context, userID uuid.UUID) (session.Summary, error)
}

// SessionHandler drives live visits. Events for the visit go out over the
// WebSocket; these endpoints return the state after each command.
type SessionHandler struct {
	tracking trackingService
}

func NewSessionHandler(tracking trackingService) *SessionHandler {
	return &SessionHandler{tracking: tracking}
}

func (h *SessionHandler) Routines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"routines": session.Presets()})
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	state, err := h.tracking.Start(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *SessionHandler) Frames(w http.ResponseWriter, r *http.Request) {
	var req models.FramesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.tracking.SubmitFrames(r.Context(), userID, req.Frames)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.tracking.Pause)
}

func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.tracking.Resume)
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.tracking.Current)
}

func (h *SessionHandler) command(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (session.State, error)) {
	userID := middleware.GetUserID(r.Context())
	state, err := fn(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sum, err := h.tracking.End(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":           sum,
		"blinks_per_minute": sum.BlinksPerMinute(),
	})
}
