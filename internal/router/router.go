package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"blinkfit-backend/internal/handlers"
	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/websocket"
)

const (
	authRequestsPerMinute = 10
	apiRequestsPerMinute  = 240
)

func New(
	jwtAuth *middleware.JWTAuth,
	redisClient *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	guideHandler *handlers.GuideHandler,
	sessionHandler *handlers.SessionHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Auth is limited per IP, everything else per user.
	authLimiter := middleware.NewRateLimiter(redisClient, "auth", authRequestsPerMinute, time.Minute)
	apiLimiter := middleware.NewRateLimiter(redisClient, "api", apiRequestsPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		// Routine presets are public so the client can render them before login.
		r.Get("/routines", sessionHandler.Routines)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(apiLimiter.Middleware)

			// ──── Profile Routes ────
			r.Get("/user/me", userHandler.GetMe)
			r.Put("/user/me", userHandler.UpdateMe)

			// ──── Quiz Routes ────
			r.Route("/quiz", func(r chi.Router) {
				r.Post("/", userHandler.SubmitQuiz)
				r.Get("/", userHandler.ListQuiz)
				r.Get("/latest", userHandler.LatestQuiz)
			})

			// ──── Guide Routes ────
			r.Get("/guide", guideHandler.Get)
			r.Post("/guide/exercise", guideHandler.Exercise)

			// ──── Client-measured Stats ────
			r.Post("/blink-count", userHandler.RecordBlinkCount)
			r.Post("/summary", userHandler.RecordSummary)

			// ──── Live Session Routes ────
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.Start)
				r.Post("/frames", sessionHandler.Frames)
				r.Post("/pause", sessionHandler.Pause)
				r.Post("/resume", sessionHandler.Resume)
				r.Get("/current", sessionHandler.Current)
				r.Post("/end", sessionHandler.End)
				r.Get("/history", userHandler.ListSessions)
			})
		})

		// ──── WebSocket ────
		// Browsers cannot set headers on the upgrade, so the hub checks the
		// token query parameter itself.
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
