package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"

	"blinkfit-backend/internal/models"
	"blinkfit-backend/internal/session"
)

const (
	maxQuizAnswers   = 10
	maxHobbies       = 10
	maxHobbyLength   = 50
	maxScreenGoal    = 24.0
	maxFocusMinutes  = 480
	quizHistoryLimit = 20

	// One visit cannot outlast a day.
	maxVisitSeconds     = 86400.0
	sessionHistoryLimit = 20
)

type ProfileService struct {
	users    UserStore
	quizzes  QuizStore
	sessions SessionStore
	guides   *GuideService
}

func NewProfileService(users UserStore, quizzes QuizStore, sessions SessionStore, guides *GuideService) *ProfileService {
	return &ProfileService{
		users:    users,
		quizzes:  quizzes,
		sessions: sessions,
		guides:   guides,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return s.buildProfile(ctx, user), nil
}

func (s *ProfileService) buildProfile(ctx context.Context, user *models.User) *models.Profile {
	p := &models.Profile{
		UserID:             user.ID,
		Username:           user.Username,
		AverageBlink:       user.LatestBlinkCount,
		BreakSuccessRate:   user.LatestBreakSuccessRate,
		RecentScreenTimes:  nonNil(user.RecentScreenTimes),
		RecentBreakTimes:   nonNil(user.RecentBreakTimes),
		ScreenTimeGoal:     user.ScreenTimeGoalHours,
		FocusSessionLength: user.FocusSessionLengthMinutes,
		Hobbies:            user.Hobbies,
		Preferences:        user.Preferences(),
	}
	if p.AverageBlink == 0 {
		p.AverageBlink = models.DefaultBlinkRate
	}
	if p.ScreenTimeGoal == 0 {
		p.ScreenTimeGoal = models.DefaultScreenTimeGoal
	}
	if p.FocusSessionLength == 0 {
		p.FocusSessionLength = models.DefaultFocusSessionLength
	}
	if p.Hobbies == nil {
		p.Hobbies = []string{}
	}
	p.AverageUsageTime = round(mean(p.RecentScreenTimes), 1)
	p.WeeklyTrend = s.guides.WeeklyTrend(ctx, p.RecentScreenTimes)
	return p
}

func nonNil(xs []float64) []float64 {
	if xs == nil {
		return []float64{}
	}
	return xs
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.Profile, error) {
	fieldErrors := make(map[string]string)
	if req.ScreenTimeGoalHours != nil && (*req.ScreenTimeGoalHours <= 0 || *req.ScreenTimeGoalHours > maxScreenGoal) {
		fieldErrors["screen_time_goal_hours"] = "Must be greater than 0 and at most 24"
	}
	if req.FocusSessionLengthMinutes != nil && (*req.FocusSessionLengthMinutes < 1 || *req.FocusSessionLengthMinutes > maxFocusMinutes) {
		fieldErrors["focus_session_length_minutes"] = "Must be between 1 and 480"
	}
	if req.Hobbies != nil {
		if len(*req.Hobbies) > maxHobbies {
			fieldErrors["hobbies"] = fmt.Sprintf("At most %d hobbies", maxHobbies)
		}
		for _, h := range *req.Hobbies {
			if strings.TrimSpace(h) == "" || len(h) > maxHobbyLength {
				fieldErrors["hobbies"] = fmt.Sprintf("Each hobby must be 1-%d characters", maxHobbyLength)
				break
			}
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}

	if req.ScreenTimeGoalHours != nil {
		user.ScreenTimeGoalHours = *req.ScreenTimeGoalHours
	}
	if req.FocusSessionLengthMinutes != nil {
		user.FocusSessionLengthMinutes = *req.FocusSessionLengthMinutes
	}
	if req.BreakVibe != nil {
		user.BreakVibe = strings.TrimSpace(*req.BreakVibe)
	}
	if req.FavoriteSnack != nil {
		user.FavoriteSnack = strings.TrimSpace(*req.FavoriteSnack)
	}
	if req.Hobbies != nil {
		hobbies := make([]string, 0, len(*req.Hobbies))
		for _, h := range *req.Hobbies {
			hobbies = append(hobbies, strings.TrimSpace(h))
		}
		user.Hobbies = hobbies
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, notFound(err, "User not found")
	}
	return s.buildProfile(ctx, user), nil
}

func validateQuiz(req *models.SubmitQuizRequest) error {
	fieldErrors := make(map[string]string)
	if len(req.Quiz) == 0 || len(req.Quiz) > maxQuizAnswers {
		fieldErrors["quiz"] = fmt.Sprintf("Provide between 1 and %d answers", maxQuizAnswers)
	}
	for i := range req.Quiz {
		q := &req.Quiz[i]
		if q.QuestionID == 0 {
			q.QuestionID = i + 1
		}
		if strings.TrimSpace(q.Answer) == "" {
			fieldErrors[fmt.Sprintf("quiz[%d].answer", i)] = "Answer is required"
		}
		if q.Level < 0 || q.Level > 2 {
			fieldErrors[fmt.Sprintf("quiz[%d].level", i)] = "Level must be 0, 1 or 2"
		}
	}
	if sub := req.Subjective; sub != nil {
		if sub.FocusSessionLength != nil && (*sub.FocusSessionLength <= 0 || *sub.FocusSessionLength*60 > maxFocusMinutes) {
			fieldErrors["subjective.focus_session_length"] = "Must be greater than 0 and at most 8 hours"
		}
		if sub.ScreenTimeGoal != nil && (*sub.ScreenTimeGoal <= 0 || *sub.ScreenTimeGoal > maxScreenGoal) {
			fieldErrors["subjective.screen_time_goal"] = "Must be greater than 0 and at most 24"
		}
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

// SubmitQuiz stores the answers, folds the subjective part into the profile
// and returns a fresh guide.
func (s *ProfileService) SubmitQuiz(ctx context.Context, userID uuid.UUID, req models.SubmitQuizRequest) (*models.SubmitQuizResponse, error) {
	if err := validateQuiz(&req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}

	resp := &models.QuizResponse{
		UserID:    userID,
		SessionID: uuid.New(),
		Responses: req.Quiz,
	}
	if req.Subjective != nil {
		resp.Subjective = *req.Subjective
	}
	if err := s.quizzes.Create(ctx, resp); err != nil {
		return nil, fmt.Errorf("save quiz response: %w", err)
	}

	if req.Subjective != nil && applySubjective(user, req.Subjective) {
		if err := s.users.UpdateProfile(ctx, user); err != nil {
			return nil, notFound(err, "User not found")
		}
	}

	guide := s.guides.Generate(ctx, userID, req.Quiz, req.Subjective)
	return &models.SubmitQuizResponse{Response: resp, Guide: guide}, nil
}

// applySubjective copies the free-form answers onto the user and reports
// whether anything changed.
func applySubjective(user *models.User, sub *models.Subjective) bool {
	changed := false
	if pref := strings.TrimSpace(sub.BreakPreference); pref != "" {
		user.BreakVibe = pref
		if !containsFold(user.Hobbies, pref) && len(user.Hobbies) < maxHobbies {
			user.Hobbies = append(user.Hobbies, pref)
		}
		changed = true
	}
	if snack := strings.TrimSpace(sub.FavoriteSnack); snack != "" {
		user.FavoriteSnack = snack
		changed = true
	}
	if sub.ScreenTimeGoal != nil {
		user.ScreenTimeGoalHours = *sub.ScreenTimeGoal
		changed = true
	}
	if sub.FocusSessionLength != nil {
		user.FocusSessionLengthMinutes = int(*sub.FocusSessionLength*60 + 0.5)
		changed = true
	}
	return changed
}

func containsFold(xs []string, s string) bool {
	for _, x := range xs {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

func (s *ProfileService) ListQuizResponses(ctx context.Context, userID uuid.UUID) ([]*models.QuizResponse, error) {
	responses, err := s.quizzes.ListByUser(ctx, userID, quizHistoryLimit)
	if err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []*models.QuizResponse{}
	}
	return responses, nil
}

// ListSessionHistory returns the most recent stored visits, newest first.
func (s *ProfileService) ListSessionHistory(ctx context.Context, userID uuid.UUID) ([]*models.SessionSummary, error) {
	rows, err := s.sessions.ListByUser(ctx, userID, sessionHistoryLimit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*models.SessionSummary{}
	}
	return rows, nil
}

func (s *ProfileService) LatestQuizResponse(ctx context.Context, userID uuid.UUID) (*models.QuizResponse, error) {
	resp, err := s.quizzes.Latest(ctx, userID)
	if err != nil {
		return nil, notFound(err, "No quiz responses yet")
	}
	return resp, nil
}

// nextBlinkAverage folds one measurement into the stored average.
func nextBlinkAverage(current, n float64) float64 {
	if current == 0 {
		return round(n, 2)
	}
	return round((current+n)/2, 2)
}

func (s *ProfileService) RecordBlinkCount(ctx context.Context, userID uuid.UUID, req models.BlinkCountRequest) (*models.BlinkCountResult, error) {
	fieldErrors := make(map[string]string)
	if req.BlinkCount == nil || *req.BlinkCount <= 0 {
		fieldErrors["blink_count"] = "Must be a positive number"
	}
	if req.SessionDuration == nil || *req.SessionDuration <= 0 {
		fieldErrors["session_duration"] = "Must be a positive number"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}

	avg := nextBlinkAverage(user.LatestBlinkCount, *req.BlinkCount)
	if err := s.users.UpdateBlinkAverage(ctx, userID, avg); err != nil {
		return nil, notFound(err, "User not found")
	}
	return &models.BlinkCountResult{
		NewBlinkCount:   *req.BlinkCount,
		UpdatedAverage:  avg,
		SessionDuration: *req.SessionDuration,
	}, nil
}

// RecordSummary stores a client-measured visit. Totals arrive in seconds and
// the recent arrays hold minutes.
func (s *ProfileService) RecordSummary(ctx context.Context, userID uuid.UUID, req models.SummaryRequest) (*models.SummaryResult, error) {
	fieldErrors := make(map[string]string)
	if v := req.TotalScreenTime; v == nil || !(*v >= 0 && *v <= maxVisitSeconds) {
		fieldErrors["total_screen_time"] = "Must be between 0 and 86400 seconds"
	}
	if v := req.TotalBreakTime; v == nil || !(*v >= 0 && *v <= maxVisitSeconds) {
		fieldErrors["total_break_time"] = "Must be between 0 and 86400 seconds"
	}
	if r := req.BreakCompletionRate; r != nil && (*r < 0 || *r > 100) {
		fieldErrors["break_completion_rate"] = "Must be between 0 and 100"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, notFound(err, "User not found")
	}

	// The history row goes first so a failed insert leaves the recent
	// arrays untouched.
	screen, brk := *req.TotalScreenTime, *req.TotalBreakTime
	row := &models.SessionSummary{
		UserID:                 userID,
		Routine:                "manual",
		TotalScreenTimeSeconds: int(math.Round(screen)),
		TotalBreakTimeSeconds:  int(math.Round(brk)),
		BreakCompletionRate:    req.BreakCompletionRate,
	}
	if err := s.sessions.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("save session summary: %w", err)
	}

	user, err := s.users.AppendSessionTimes(ctx, userID, round(screen/60, 2), round(brk/60, 2), req.BreakCompletionRate)
	if err != nil {
		return nil, notFound(err, "User not found")
	}

	result := &models.SummaryResult{
		TotalScreenTime:     screen,
		TotalBreakTime:      brk,
		AverageScreenTime:   round(mean(user.RecentScreenTimes), 2),
		AverageBreakTime:    round(mean(user.RecentBreakTimes), 2),
		TotalRecentSessions: len(user.RecentScreenTimes),
		RecentScreenTimes:   nonNil(user.RecentScreenTimes),
		RecentBreakTimes:    nonNil(user.RecentBreakTimes),
	}
	if req.BreakCompletionRate != nil {
		result.BreakCompletionRate = *req.BreakCompletionRate
	}
	if screen > 0 {
		result.SessionEfficiency = round(brk/screen*100, 2)
	}
	return result, nil
}

// RecordSessionSummary persists a server-tracked visit for the summary
// worker.
func (s *ProfileService) RecordSessionSummary(ctx context.Context, userID uuid.UUID, sum session.Summary) error {
	var rate *float64
	if sum.BreaksStarted > 0 {
		r := sum.BreakCompletionRate
		rate = &r
	}

	row := &models.SessionSummary{
		UserID:                 userID,
		Routine:                sum.Routine,
		TotalScreenTimeSeconds: sum.TotalScreenTimeSeconds,
		TotalBreakTimeSeconds:  sum.TotalBreakTimeSeconds,
		BreakCompletionRate:    rate,
		BlinkCount:             sum.BlinkCount,
	}
	if err := s.sessions.Create(ctx, row); err != nil {
		return fmt.Errorf("save session summary: %w", err)
	}

	user, err := s.users.AppendSessionTimes(ctx, userID,
		round(float64(sum.TotalScreenTimeSeconds)/60, 2),
		round(float64(sum.TotalBreakTimeSeconds)/60, 2),
		rate,
	)
	if err != nil {
		return notFound(err, "User not found")
	}

	if bpm := sum.BlinksPerMinute(); bpm > 0 {
		avg := nextBlinkAverage(user.LatestBlinkCount, bpm)
		if err := s.users.UpdateBlinkAverage(ctx, userID, avg); err != nil {
			log.Printf("failed to update blink average for user %s: %v", userID, err)
		}
	}
	return nil
}
