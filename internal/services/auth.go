package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/models"
)

const (
	refreshTokenTTL   = 7 * 24 * time.Hour
	loginAttemptLimit = 10
	loginAttemptTTL   = 15 * time.Minute
)

type AuthService struct {
	users   UserStore
	quizzes QuizStore
	redis   *redis.Client
	jwt     *middleware.JWTAuth
}

func NewAuthService(users UserStore, quizzes QuizStore, redisClient *redis.Client, jwt *middleware.JWTAuth) *AuthService {
	return &AuthService{
		users:   users,
		quizzes: quizzes,
		redis:   redisClient,
		jwt:     jwt,
	}
}

var usernameRegex = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	username := normalizeUsername(req.Username)

	fieldErrors := make(map[string]string)
	if !usernameRegex.MatchString(username) {
		fieldErrors["username"] = "Username must be 3-32 characters of letters, digits, '.', '_' or '-'"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, &ConflictError{Message: "Username already in use"}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	username := normalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		return nil, &ValidationError{Fields: map[string]string{"credentials": "Username and password are required"}}
	}

	attemptsKey := "login_attempts:" + username
	attempts, _ := s.redis.Get(ctx, attemptsKey).Int()
	if attempts >= loginAttemptLimit {
		return nil, &RateLimitError{Message: "Too many failed sign-in attempts. Try again later."}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.recordFailedLogin(ctx, attemptsKey)
			return nil, &UnauthorizedError{Message: "Invalid username or password"}
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailedLogin(ctx, attemptsKey)
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}
	s.redis.Del(ctx, attemptsKey)

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	isSurvey, err := s.quizzes.ExistsForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check quiz responses: %w", err)
	}

	return &models.LoginResponse{
		AuthTokens: *tokens,
		UserID:     user.ID,
		Username:   user.Username,
		IsSurvey:   isSurvey,
	}, nil
}

func (s *AuthService) recordFailedLogin(ctx context.Context, key string) {
	pipe := s.redis.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, loginAttemptTTL)
	pipe.Exec(ctx)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	if refreshToken == "" {
		return nil, &UnauthorizedError{Message: "Refresh token is required"}
	}

	// GETDEL makes rotation single-use even under concurrent refreshes.
	userIDStr, err := s.redis.GetDel(ctx, "refresh:"+refreshToken).Result()
	if err != nil {
		return nil, &UnauthorizedError{Message: "Invalid or expired refresh token. Please log in again."}
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Account no longer exists"}
		}
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.redis.Del(ctx, "refresh:"+refreshToken).Err()
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(64)
	if err != nil {
		return nil, err
	}

	err = s.redis.Set(ctx, "refresh:"+refreshToken, user.ID.String(), refreshTokenTTL).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(middleware.AccessTokenTTL.Seconds()),
	}, nil
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}
