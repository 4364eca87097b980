package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/reelscribe/backend/internal/api/handlers"
	"github.com/reelscribe/backend/internal/api/middleware"
	"github.com/reelscribe/backend/internal/auth"
	"github.com/reelscribe/backend/internal/config"
	"github.com/reelscribe/backend/internal/db"
	"github.com/reelscribe/backend/internal/job"
	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/pipeline"
)

func NewRouter(database *db.Database, jwtService *auth.JWTService, cfg *config.Config, queue *job.Queue, orch *pipeline.Orchestrator, dispatcher *notify.Dispatcher) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1MB, all payloads are small JSON

	// Handlers
	authHandler := handlers.NewAuthHandler(database, jwtService)
	siteHandler := handlers.NewSiteHandler(cfg, dispatcher)
	transcribeHandler := handlers.NewTranscribeHandler(database, queue, orch)
	jobHandler := handlers.NewJobHandler(queue)
	transcriptHandler := handlers.NewTranscriptHandler(database, dispatcher)

	submitLimiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", siteHandler.Health)
		r.Get("/site-config", siteHandler.SiteConfig)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtService))

			// Auth
			r.Get("/auth/me", authHandler.Me)
			r.Put("/profile", authHandler.UpdateProfile)

			// Transcription
			r.With(submitLimiter.Handler).Post("/transcribe", transcribeHandler.Submit)

			// Jobs
			r.Get("/jobs/{id}", jobHandler.Get)
			r.Delete("/jobs/{id}", jobHandler.Cancel)

			// Transcript history
			r.Get("/transcripts", transcriptHandler.List)
			r.Get("/transcripts/{id}", transcriptHandler.Get)
			r.With(submitLimiter.Handler).Post("/transcripts/{id}/send", transcriptHandler.Send)
		})
	})

	return r
}
