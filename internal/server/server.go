package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"privloc/internal/config"
	"privloc/internal/domain/consent"
	"privloc/internal/domain/location"
	"privloc/internal/server/handlers"
	"privloc/internal/service/analytics"
	"privloc/internal/service/match"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	consents consent.Manager,
	locations location.Manager,
	scorer *match.Scorer,
	tracker *analytics.Tracker,
	cohorts *analytics.CohortEngine,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	consentHandler := handlers.NewConsentHandler(consents)
	locationHandler := handlers.NewLocationHandler(locations)
	matchHandler := handlers.NewMatchHandler(scorer)
	analyticsHandler := handlers.NewAnalyticsHandler(tracker, cohorts)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Consent API
			r.Route("/users/{userID}/consent", func(r chi.Router) {
				r.Get("/", consentHandler.GetConsent)
				r.Put("/", consentHandler.SetConsent)
			})

			// Location API
			r.Route("/users/{userID}/location", func(r chi.Router) {
				r.Get("/", locationHandler.GetLocation)
				r.Put("/", locationHandler.UpdateLocation)
				r.Delete("/", locationHandler.EraseUser)
			})

			// Preferences API
			r.Route("/users/{userID}/preferences", func(r chi.Router) {
				r.Get("/", locationHandler.GetPreferences)
				r.Put("/", locationHandler.SetPreferences)
			})

			// Matching API
			r.Route("/users/{userID}/matches", func(r chi.Router) {
				r.Get("/{targetID}", matchHandler.ScoreCandidate)
				r.Post("/batch", matchHandler.ScoreBatch)
			})

			// Analytics API
			r.Route("/users/{userID}/analytics", func(r chi.Router) {
				r.Post("/events", analyticsHandler.TrackEvent)
				r.Get("/insights", analyticsHandler.GetInsights)
			})
			r.Get("/cohorts", analyticsHandler.ListCohorts)
		})
	})

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
