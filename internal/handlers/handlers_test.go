package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/models"
	"blinkfit-backend/internal/services"
	"blinkfit-backend/internal/session"
)

// ─── Stubs ───

type stubAuth struct {
	err      error
	lastUser string
}

func (s *stubAuth) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	s.lastUser = req.Username
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: uuid.New(), Username: req.Username}, nil
}

func (s *stubAuth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.LoginResponse{AuthTokens: models.AuthTokens{AccessToken: "a", RefreshToken: "r"}, Username: req.Username, IsSurvey: true}, nil
}

func (s *stubAuth) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.AuthTokens{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (s *stubAuth) Logout(ctx context.Context, refreshToken string) error { return nil }

type stubProfile struct {
	err    error
	userID uuid.UUID
}

func (s *stubProfile) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Profile{UserID: userID, Username: "ana", AverageBlink: 15}, nil
}

func (s *stubProfile) UpdateProfile(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Profile{UserID: userID, ScreenTimeGoal: *req.ScreenTimeGoalHours}, nil
}

func (s *stubProfile) SubmitQuiz(ctx context.Context, userID uuid.UUID, req models.SubmitQuizRequest) (*models.SubmitQuizResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.SubmitQuizResponse{
		Response: &models.QuizResponse{UserID: userID, Responses: req.Quiz},
		Guide:    &models.GuideResult{Source: models.SourceFallbackDisabled},
	}, nil
}

func (s *stubProfile) ListQuizResponses(ctx context.Context, userID uuid.UUID) ([]*models.QuizResponse, error) {
	return []*models.QuizResponse{}, s.err
}

func (s *stubProfile) ListSessionHistory(ctx context.Context, userID uuid.UUID) ([]*models.SessionSummary, error) {
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	return []*models.SessionSummary{{UserID: userID, Routine: "classic", TotalScreenTimeSeconds: 1500}}, nil
}

func (s *stubProfile) LatestQuizResponse(ctx context.Context, userID uuid.UUID) (*models.QuizResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.QuizResponse{UserID: userID}, nil
}

func (s *stubProfile) RecordBlinkCount(ctx context.Context, userID uuid.UUID, req models.BlinkCountRequest) (*models.BlinkCountResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.BlinkCountResult{NewBlinkCount: *req.BlinkCount, UpdatedAverage: 17.5}, nil
}

func (s *stubProfile) RecordSummary(ctx context.Context, userID uuid.UUID, req models.SummaryRequest) (*models.SummaryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.SummaryResult{SessionEfficiency: 20}, nil
}

type stubGuides struct {
	err error
}

func (s *stubGuides) Latest(ctx context.Context, userID uuid.UUID) (*models.GuideResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.GuideResult{Source: models.SourceGemini}, nil
}

func (s *stubGuides) Exercise(ctx context.Context, req models.ExerciseRequest) *models.ExerciseResult {
	return &models.ExerciseResult{BreakCount: req.CurrentBreakCount, Source: models.SourceFallback}
}

type stubTracking struct {
	err error
	sum session.Summary
}

func (s *stubTracking) Start(ctx context.Context, userID uuid.UUID, req models.StartSessionRequest) (session.State, error) {
	return session.State{Routine: req.Routine, Phase: session.PhaseFocus}, s.err
}

func (s *stubTracking) SubmitFrames(ctx context.Context, userID uuid.UUID, frames []models.FrameInput) (*models.FramesResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.FramesResult{Accepted: len(frames)}, nil
}

func (s *stubTracking) Pause(ctx context.Context, userID uuid.UUID) (session.State, error) {
	return session.State{Paused: true}, s.err
}

func (s *stubTracking) Resume(ctx context.Context, userID uuid.UUID) (session.State, error) {
	return session.State{}, s.err
}

func (s *stubTracking) Current(ctx context.Context, userID uuid.UUID) (session.State, error) {
	return session.State{BlinkCount: 4}, s.err
}

func (s *stubTracking) End(ctx context.Context, userID uuid.UUID) (session.Summary, error) {
	return s.sum, s.err
}

// ─── Helpers ───

func newRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	if userID != uuid.Nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	}
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

// ─── Shared helper tests ───

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"username":"ana","password":"password1"}`, true},
		{"unknown field", `{"username":"ana","email":"a@b.c"}`, false},
		{"trailing object", `{"username":"ana"}{"username":"bob"}`, false},
		{"not json", `username=ana`, false},
		{"empty", ``, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			var dst models.LoginRequest
			ok := decodeJSON(rr, newRequest(http.MethodPost, "/", tc.body, uuid.Nil), &dst)
			if ok != tc.ok {
				t.Fatalf("decodeJSON = %v, want %v", ok, tc.ok)
			}
			if !ok && rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{Fields: map[string]string{"a": "b"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{&services.ConflictError{Message: "x"}, http.StatusConflict, "CONFLICT"},
		{&services.NotFoundError{Message: "x"}, http.StatusNotFound, "NOT_FOUND"},
		{&services.UnauthorizedError{Message: "x"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{&services.RateLimitError{Message: "x"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handleServiceError(rr, newRequest(http.MethodGet, "/", "", uuid.Nil), tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.code || apiErr.RequestID != "req-123" {
				t.Fatalf("unexpected error body: %+v", apiErr)
			}
			if strings.Contains(apiErr.Message, "db down") {
				t.Fatal("internal error details must not leak")
			}
		})
	}
}

// ─── Auth Handler Tests ───

func TestAuthHandler_Register(t *testing.T) {
	auth := &stubAuth{}
	h := NewAuthHandler(auth)

	rr := httptest.NewRecorder()
	h.Register(rr, newRequest(http.MethodPost, "/api/v1/auth/register", `{"username":"ana","password":"password1"}`, uuid.Nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if auth.lastUser != "ana" {
		t.Fatalf("unexpected username %q", auth.lastUser)
	}
}

func TestAuthHandler_LoginRateLimited(t *testing.T) {
	h := NewAuthHandler(&stubAuth{err: &services.RateLimitError{Message: "slow down"}})

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"ana","password":"x"}`, uuid.Nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
}

func TestAuthHandler_LoginReturnsSurveyFlag(t *testing.T) {
	h := NewAuthHandler(&stubAuth{})

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"ana","password":"password1"}`, uuid.Nil))

	var body map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&body)
	if body["is_survey"] != true || body["access_token"] != "a" {
		t.Fatalf("unexpected login body: %v", body)
	}
}

// ─── User Handler Tests ───

func TestUserHandler_GetMe(t *testing.T) {
	profile := &stubProfile{}
	h := NewUserHandler(profile)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	h.GetMe(rr, newRequest(http.MethodGet, "/api/v1/user/me", "", userID))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if profile.userID != userID {
		t.Fatalf("handler should use the authenticated user id")
	}
}

func TestUserHandler_UpdateMeValidation(t *testing.T) {
	h := NewUserHandler(&stubProfile{err: &services.ValidationError{Fields: map[string]string{"screen_time_goal_hours": "bad"}}})

	rr := httptest.NewRecorder()
	h.UpdateMe(rr, newRequest(http.MethodPut, "/api/v1/user/me", `{"screen_time_goal_hours":0}`, uuid.New()))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if apiErr := decodeError(t, rr); apiErr.Fields["screen_time_goal_hours"] == "" {
		t.Fatalf("expected field error, got %+v", apiErr)
	}
}

func TestUserHandler_SubmitQuiz(t *testing.T) {
	h := NewUserHandler(&stubProfile{})
	body := `{"quiz":[{"question_id":1,"answer":"laptop","level":1}],"subjective":{"break_preference":"walking"}}`

	rr := httptest.NewRecorder()
	h.SubmitQuiz(rr, newRequest(http.MethodPost, "/api/v1/quiz", body, uuid.New()))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var resp models.SubmitQuizResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Guide == nil || resp.Guide.Source != models.SourceFallbackDisabled {
		t.Fatalf("guide source should be reported, got %+v", resp.Guide)
	}
}

func TestUserHandler_LatestQuizNotFound(t *testing.T) {
	h := NewUserHandler(&stubProfile{err: &services.NotFoundError{Message: "No quiz responses yet"}})

	rr := httptest.NewRecorder()
	h.LatestQuiz(rr, newRequest(http.MethodGet, "/api/v1/quiz/latest", "", uuid.New()))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestUserHandler_BlinkCountAndSummary(t *testing.T) {
	h := NewUserHandler(&stubProfile{})
	userID := uuid.New()

	rr := httptest.NewRecorder()
	h.RecordBlinkCount(rr, newRequest(http.MethodPost, "/api/v1/blink-count", `{"blink_count":20,"session_duration":60}`, userID))
	if rr.Code != http.StatusOK {
		t.Fatalf("blink-count: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.RecordSummary(rr, newRequest(http.MethodPost, "/api/v1/summary", `{"total_screen_time":1500,"total_break_time":300}`, userID))
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rr.Code)
	}
	var result models.SummaryResult
	json.NewDecoder(rr.Body).Decode(&result)
	if result.SessionEfficiency != 20 {
		t.Fatalf("unexpected summary result: %+v", result)
	}
}

func TestUserHandler_ListSessions(t *testing.T) {
	profile := &stubProfile{}
	h := NewUserHandler(profile)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	h.ListSessions(rr, newRequest(http.MethodGet, "/api/v1/sessions/history", "", userID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if profile.userID != userID {
		t.Fatalf("history requested for %s, want %s", profile.userID, userID)
	}
	var body struct {
		Sessions []models.SessionSummary `json:"sessions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].TotalScreenTimeSeconds != 1500 {
		t.Fatalf("unexpected sessions: %+v", body.Sessions)
	}

	rr = httptest.NewRecorder()
	NewUserHandler(&stubProfile{err: errors.New("db down")}).ListSessions(rr, newRequest(http.MethodGet, "/api/v1/sessions/history", "", userID))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

// ─── Guide Handler Tests ───

func TestGuideHandler_Get(t *testing.T) {
	rr := httptest.NewRecorder()
	NewGuideHandler(&stubGuides{}).Get(rr, newRequest(http.MethodGet, "/api/v1/guide", "", uuid.New()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewGuideHandler(&stubGuides{err: &services.NotFoundError{Message: "Complete the quiz"}}).Get(rr, newRequest(http.MethodGet, "/api/v1/guide", "", uuid.New()))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestGuideHandler_Exercise(t *testing.T) {
	h := NewGuideHandler(&stubGuides{})

	rr := httptest.NewRecorder()
	h.Exercise(rr, newRequest(http.MethodPost, "/api/v1/guide/exercise", `{"user_preferences":["tea"],"current_break_count":2,"work_duration":25}`, uuid.New()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var result models.ExerciseResult
	json.NewDecoder(rr.Body).Decode(&result)
	if result.BreakCount != 2 || result.Source != models.SourceFallback {
		t.Fatalf("unexpected result: %+v", result)
	}

	rr = httptest.NewRecorder()
	h.Exercise(rr, newRequest(http.MethodPost, "/api/v1/guide/exercise", `{"current_break_count":-1}`, uuid.New()))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative count, got %d", rr.Code)
	}
}

// ─── Session Handler Tests ───

func TestSessionHandler_Routines(t *testing.T) {
	rr := httptest.NewRecorder()
	NewSessionHandler(&stubTracking{}).Routines(rr, newRequest(http.MethodGet, "/api/v1/routines", "", uuid.Nil))

	var body struct {
		Routines []session.Routine `json:"routines"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Routines) != len(session.Presets()) {
		t.Fatalf("expected %d routines, got %d", len(session.Presets()), len(body.Routines))
	}
}

func TestSessionHandler_StartConflict(t *testing.T) {
	h := NewSessionHandler(&stubTracking{err: &services.ConflictError{Message: "A session is already running"}})

	rr := httptest.NewRecorder()
	h.Start(rr, newRequest(http.MethodPost, "/api/v1/sessions", `{"routine":"classic"}`, uuid.New()))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestSessionHandler_FramesAndCommands(t *testing.T) {
	h := NewSessionHandler(&stubTracking{})
	userID := uuid.New()

	var frames bytes.Buffer
	json.NewEncoder(&frames).Encode(models.FramesRequest{Frames: []models.FrameInput{{}, {}}})

	rr := httptest.NewRecorder()
	h.Frames(rr, newRequest(http.MethodPost, "/api/v1/sessions/frames", frames.String(), userID))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("frames: expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Pause(rr, newRequest(http.MethodPost, "/api/v1/sessions/pause", "", userID))
	var state session.State
	json.NewDecoder(rr.Body).Decode(&state)
	if rr.Code != http.StatusOK || !state.Paused {
		t.Fatalf("pause: %d %+v", rr.Code, state)
	}

	rr = httptest.NewRecorder()
	h.Current(rr, newRequest(http.MethodGet, "/api/v1/sessions/current", "", userID))
	json.NewDecoder(rr.Body).Decode(&state)
	if state.BlinkCount != 4 {
		t.Fatalf("current: %+v", state)
	}
}

func TestSessionHandler_End(t *testing.T) {
	h := NewSessionHandler(&stubTracking{sum: session.Summary{Routine: "classic", TotalScreenTimeSeconds: 120, BlinkCount: 30}})

	rr := httptest.NewRecorder()
	h.End(rr, newRequest(http.MethodPost, "/api/v1/sessions/end", "", uuid.New()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Summary         session.Summary `json:"summary"`
		BlinksPerMinute float64         `json:"blinks_per_minute"`
	}
	json.NewDecoder(rr.Body).Decode(&body)
	if body.BlinksPerMinute != 15 || body.Summary.BlinkCount != 30 {
		t.Fatalf("unexpected end body: %+v", body)
	}
}

func TestSessionHandler_EndWithoutSession(t *testing.T) {
	h := NewSessionHandler(&stubTracking{err: &services.NotFoundError{Message: "No session is running"}})

	rr := httptest.NewRecorder()
	h.End(rr, newRequest(http.MethodPost, "/api/v1/sessions/end", "", uuid.New()))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
