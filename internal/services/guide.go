package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"blinkfit-backend/internal/models"
)

const (
	guideCacheTTL    = 24 * time.Hour
	maxTrendLength   = 160
	maxExerciseTips  = 5
	guideCachePrefix = "guide:"
)

var guideSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"work_duration":     {Type: genai.TypeString, Description: "Recommended focus block, e.g. \"30 minutes\""},
		"break_duration":    {Type: genai.TypeString, Description: "Recommended break, e.g. \"8 minutes\""},
		"screen_time_limit": {Type: genai.TypeString, Description: "Daily limit, e.g. \"6 hours/day\""},
		"exercises": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"work_duration", "break_duration", "screen_time_limit", "exercises"},
}

var exerciseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"message": {Type: genai.TypeString},
		"activity_type": {
			Type: genai.TypeString,
			Enum: []string{"eye_exercise", "physical_movement", "relaxation"},
		},
		"duration": {Type: genai.TypeString, Description: "Minutes, e.g. \"2-3\""},
		"tips": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"message", "activity_type", "duration", "tips"},
}

var activityTypes = map[string]bool{
	"eye_exercise":      true,
	"physical_movement": true,
	"relaxation":        true,
}

// GuideService produces guides, break exercises and screen-time trends. A
// nil Generator means no model is configured and every answer comes from
// the deterministic rules.
type GuideService struct {
	gen     Generator
	quizzes QuizStore
	redis   *redis.Client
	now     func() time.Time
}

func NewGuideService(gen Generator, quizzes QuizStore, redisClient *redis.Client) *GuideService {
	return &GuideService{
		gen:     gen,
		quizzes: quizzes,
		redis:   redisClient,
		now:     time.Now,
	}
}

// Generate builds a guide for the answers and caches it for the user. It
// never fails: model errors fall back to the rule-based guide.
func (s *GuideService) Generate(ctx context.Context, userID uuid.UUID, quiz []models.QuizAnswer, subjective *models.Subjective) *models.GuideResult {
	result := &models.GuideResult{GeneratedAt: s.now().UTC()}

	if s.gen == nil {
		result.Guide = FallbackGuide(quiz, subjective)
		result.Source = models.SourceFallbackDisabled
	} else {
		guide, err := s.generateGuide(ctx, quiz, subjective)
		if err != nil {
			log.Printf("guide generation for user %s failed, using fallback: %v", userID, err)
			result.Guide = FallbackGuide(quiz, subjective)
			result.Source = models.SourceFallback
		} else {
			result.Guide = *guide
			result.Source = models.SourceGemini
		}
	}

	s.cache(ctx, userID, result)
	return result
}

func (s *GuideService) generateGuide(ctx context.Context, quiz []models.QuizAnswer, subjective *models.Subjective) (*models.Guide, error) {
	var guide models.Guide
	if err := s.gen.GenerateJSON(ctx, buildGuidePrompt(quiz, subjective), guideSchema, &guide); err != nil {
		return nil, err
	}
	if err := validateGuide(&guide); err != nil {
		return nil, err
	}
	return &guide, nil
}

func validateGuide(g *models.Guide) error {
	if strings.TrimSpace(g.WorkDuration) == "" || strings.TrimSpace(g.BreakDuration) == "" || strings.TrimSpace(g.ScreenTimeLimit) == "" {
		return fmt.Errorf("%w: guide is missing a duration", ErrMalformedResponse)
	}
	if len(g.Exercises) == 0 || len(g.Exercises) > maxGuideExercises {
		return fmt.Errorf("%w: guide has %d exercises", ErrMalformedResponse, len(g.Exercises))
	}
	for _, ex := range g.Exercises {
		if strings.TrimSpace(ex) == "" {
			return fmt.Errorf("%w: empty exercise", ErrMalformedResponse)
		}
	}
	return nil
}

func buildGuidePrompt(quiz []models.QuizAnswer, subjective *models.Subjective) string {
	var b strings.Builder
	b.WriteString("You are an eye-health coach for people who work at screens.\n")
	b.WriteString("Based on the questionnaire below, recommend a focus block length, a break length, ")
	b.WriteString("a daily screen-time limit and up to 4 short eye exercises.\n\nQuestionnaire:\n")
	for _, q := range quiz {
		topic := fmt.Sprintf("Question %d", q.QuestionID)
		if q.QuestionID >= 1 && q.QuestionID <= len(models.QuizQuestions) {
			topic = models.QuizQuestions[q.QuestionID-1]
		}
		fmt.Fprintf(&b, "- %s: %s (severity %d of 2)\n", topic, q.Answer, q.Level)
	}
	if subjective != nil {
		b.WriteString("\nPersonal preferences:\n")
		if subjective.BreakPreference != "" {
			fmt.Fprintf(&b, "- Preferred break activity: %s\n", subjective.BreakPreference)
		}
		if subjective.FavoriteSnack != "" {
			fmt.Fprintf(&b, "- Favorite snack: %s\n", subjective.FavoriteSnack)
		}
		if subjective.FocusSessionLength != nil {
			fmt.Fprintf(&b, "- Wants to focus for %s hours at a time\n", formatHours(*subjective.FocusSessionLength))
		}
		if subjective.ScreenTimeGoal != nil {
			fmt.Fprintf(&b, "- Daily screen-time goal: %s hours\n", formatHours(*subjective.ScreenTimeGoal))
		}
	}
	b.WriteString("\nDurations must be short phrases such as \"30 minutes\" or \"6 hours/day\".")
	return b.String()
}

func (s *GuideService) cache(ctx context.Context, userID uuid.UUID, result *models.GuideResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, guideCachePrefix+userID.String(), data, guideCacheTTL).Err(); err != nil {
		log.Printf("failed to cache guide for user %s: %v", userID, err)
	}
}

// Latest returns the cached guide, rebuilding it from the newest quiz
// response when the cache has expired.
func (s *GuideService) Latest(ctx context.Context, userID uuid.UUID) (*models.GuideResult, error) {
	data, err := s.redis.Get(ctx, guideCachePrefix+userID.String()).Bytes()
	if err == nil {
		var result models.GuideResult
		if err := json.Unmarshal(data, &result); err == nil {
			return &result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("failed to read cached guide for user %s: %v", userID, err)
	}

	resp, err := s.quizzes.Latest(ctx, userID)
	if err != nil {
		return nil, notFound(err, "Complete the eye health quiz to get a guide")
	}
	subjective := resp.Subjective
	return s.Generate(ctx, userID, resp.Responses, &subjective), nil
}

// Exercise suggests one break activity.
func (s *GuideService) Exercise(ctx context.Context, req models.ExerciseRequest) *models.ExerciseResult {
	result := &models.ExerciseResult{BreakCount: req.CurrentBreakCount}

	if s.gen == nil {
		result.Exercise = FallbackExercise(req.UserPreferences, req.CurrentBreakCount)
		result.Source = models.SourceFallbackDisabled
		return result
	}

	var ex models.ExerciseGuide
	err := s.gen.GenerateJSON(ctx, buildExercisePrompt(req), exerciseSchema, &ex)
	if err == nil {
		err = validateExercise(&ex)
	}
	if err != nil {
		log.Printf("exercise generation failed, using fallback: %v", err)
		result.Exercise = FallbackExercise(req.UserPreferences, req.CurrentBreakCount)
		result.Source = models.SourceFallback
		return result
	}

	result.Exercise = ex
	result.Source = models.SourceGemini
	return result
}

func validateExercise(ex *models.ExerciseGuide) error {
	if strings.TrimSpace(ex.Message) == "" || strings.TrimSpace(ex.Duration) == "" {
		return fmt.Errorf("%w: exercise is missing a message or duration", ErrMalformedResponse)
	}
	if !activityTypes[ex.ActivityType] {
		return fmt.Errorf("%w: unknown activity type %q", ErrMalformedResponse, ex.ActivityType)
	}
	if len(ex.Tips) > maxExerciseTips {
		return fmt.Errorf("%w: %d tips", ErrMalformedResponse, len(ex.Tips))
	}
	return nil
}

func buildExercisePrompt(req models.ExerciseRequest) string {
	prefs := "none given"
	if len(req.UserPreferences) > 0 {
		prefs = strings.Join(req.UserPreferences, ", ")
	}
	return fmt.Sprintf(`Suggest one short break activity for someone resting their eyes.
They have worked for %d minutes and this is break number %d today.
Their preferences: %s.
Keep the message to two sentences and give at most 3 tips.`, req.WorkDuration, req.CurrentBreakCount, prefs)
}

// WeeklyTrend summarizes the last week of screen times in one sentence.
func (s *GuideService) WeeklyTrend(ctx context.Context, recent []float64) string {
	if len(recent) < 7 {
		return trendNotEnoughData
	}
	if s.gen == nil {
		return NumericTrend(recent)
	}

	week := recent[len(recent)-7:]
	values := make([]string, len(week))
	for i, v := range week {
		values[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	prompt := fmt.Sprintf("Daily screen time in minutes over the last 7 days, oldest first: %s.\n"+
		"Describe the trend in one short sentence without numbers or markdown.", strings.Join(values, ", "))

	text, err := s.gen.GenerateText(ctx, prompt)
	if err != nil {
		log.Printf("trend generation failed, using numeric trend: %v", err)
		return NumericTrend(recent)
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, "\r\n") || len(text) > maxTrendLength {
		return NumericTrend(recent)
	}
	return text
}
