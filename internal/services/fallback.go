package services

import (
	"fmt"
	"strconv"
	"strings"

	"blinkfit-backend/internal/models"
)

const maxGuideExercises = 4

// riskKeywords lists, per quiz question, the answer fragments that add one
// point of risk.
var riskKeywords = map[int][]string{
	1: {"computer", "laptop"},
	2: {"yes", "dry", "strain"},
	3: {"often", "always", "frequently"},
	4: {"8", "more", "10"},
	5: {"rarely", "never"},
	6: {"high", "very", "sensitive"},
	7: {"often", "yes", "frequently"},
}

func riskScore(quiz []models.QuizAnswer) int {
	score := 0
	for _, q := range quiz {
		answer := strings.ToLower(q.Answer)
		for _, kw := range riskKeywords[q.QuestionID] {
			if strings.Contains(answer, kw) {
				score++
				break
			}
		}
	}
	return score
}

type guideTier struct {
	work        string
	breakLength string
	screenLimit string
	exercises   []string
}

var (
	lowRiskTier = guideTier{
		work:        "45 minutes",
		breakLength: "10 minutes",
		screenLimit: "7 hours/day",
		exercises: []string{
			"20-20-20 rule: Every 20 minutes, look at something 20 feet away for 20 seconds",
			"Blink exercises: Close eyes for 2 seconds, then open and blink rapidly 10 times",
			"Eye circles: Slowly move your eyes in circular motions",
			"Focus shifting: Alternate between near and far objects",
		},
	}
	mediumRiskTier = guideTier{
		work:        "30 minutes",
		breakLength: "8 minutes",
		screenLimit: "6 hours/day",
		exercises: []string{
			"20-20-20 rule with extended breaks",
			"Palming: Cover eyes with palms for 30 seconds to relax",
			"Figure-8 tracking: Trace imaginary figure-8 with your eyes",
			"Near-far focusing with conscious blinking",
		},
	}
	highRiskTier = guideTier{
		work:        "25 minutes",
		breakLength: "7 minutes",
		screenLimit: "5 hours/day",
		exercises: []string{
			"Frequent 20-20-20 breaks every 15 minutes",
			"Eye massage: Gently massage temples and around eyes",
			"Complete eye rest: Close eyes for 1-2 minutes frequently",
			"Distance focusing with slow, deliberate blinking",
		},
	}
)

func tierFor(score int) guideTier {
	switch {
	case score <= 3:
		return lowRiskTier
	case score <= 5:
		return mediumRiskTier
	default:
		return highRiskTier
	}
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// FallbackGuide derives a guide from keyword risk scoring when no model is
// available or the model's answer was rejected.
func FallbackGuide(quiz []models.QuizAnswer, subjective *models.Subjective) models.Guide {
	tier := tierFor(riskScore(quiz))

	guide := models.Guide{
		WorkDuration:    tier.work,
		BreakDuration:   tier.breakLength,
		ScreenTimeLimit: tier.screenLimit,
	}
	exercises := append([]string(nil), tier.exercises...)

	if subjective != nil {
		if h := subjective.FocusSessionLength; h != nil && *h > 0 {
			guide.WorkDuration = fmt.Sprintf("%d minutes", int(*h*60+0.5))
		}
		if h := subjective.ScreenTimeGoal; h != nil && *h > 0 {
			guide.ScreenTimeLimit = formatHours(*h) + " hours/day"
		}

		pref := strings.ToLower(subjective.BreakPreference)
		snack := strings.ToLower(subjective.FavoriteSnack)
		if strings.Contains(pref, "stretch") {
			exercises = append(exercises, "Combine eye exercises with gentle neck and shoulder stretching")
		}
		if strings.Contains(snack, "coffee") {
			exercises = append(exercises, "Take coffee breaks while practicing distance focusing")
		}
		if strings.Contains(pref, "walk") {
			exercises = append(exercises, "Use outdoor walks for distance focusing exercises")
		}
	}

	if len(exercises) > maxGuideExercises {
		exercises = exercises[:maxGuideExercises]
	}
	guide.Exercises = exercises
	return guide
}

var fallbackExercises = []models.ExerciseGuide{
	{
		Message:      "Close your eyes for a moment and take a deep breath. Then look at something far outside for 20 seconds to relieve eye strain.",
		ActivityType: "eye_exercise",
		Duration:     "2-3",
		Tips:         []string{"Blink consciously", "Also stretch your neck and shoulders"},
	},
	{
		Message:      "Stand up and do some light stretching. Turn your neck left and right, shrug your shoulders to improve circulation.",
		ActivityType: "physical_movement",
		Duration:     "3-5",
		Tips:         []string{"Move slowly", "Also drink a glass of water"},
	},
	{
		Message:      "Close your eyes for a moment and listen to relaxing music or nature sounds to calm your mind. Both your eyes and mind need rest.",
		ActivityType: "relaxation",
		Duration:     "5",
		Tips:         []string{"Try deep breathing", "Gently massage your eyes with your palms"},
	},
}

// FallbackExercise rotates through the built-in activities by break count
// and prefixes the message with the user's stated preferences.
func FallbackExercise(preferences []string, breakCount int) models.ExerciseGuide {
	if breakCount <= 0 {
		breakCount = 1
	}
	ex := fallbackExercises[breakCount%len(fallbackExercises)]
	ex.Tips = append([]string(nil), ex.Tips...)

	joined := strings.ToLower(strings.Join(preferences, " "))
	if strings.Contains(joined, "tea") || strings.Contains(joined, "coffee") || strings.Contains(joined, "drink") {
		ex.Message = "Prepare your favorite beverage while looking outside. " + ex.Message
	}
	if strings.Contains(joined, "music") {
		ex.Message = "With your favorite music, " + ex.Message
	}
	return ex
}
