package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"privloc/internal/adapter/geocode"
	"privloc/internal/adapter/storage"
	"privloc/internal/config"
	"privloc/internal/server"
	analyticsService "privloc/internal/service/analytics"
	consentService "privloc/internal/service/consent"
	geoService "privloc/internal/service/geo"
	locationService "privloc/internal/service/location"
	matchService "privloc/internal/service/match"
	privacyService "privloc/internal/service/privacy"
)

func main() {
	// Load .env in development; missing file is fine
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	natsConn, err := initNATS(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	// Initialize storage adapters
	consentStore := storage.NewConsentStore(db)
	locationStore := storage.NewLocationStore(db)
	eventStore := storage.NewEventStore(db)
	saltStore := storage.NewFileSaltStore(cfg.Privacy.SaltPath)

	// Initialize privacy primitives
	anonymizer, err := privacyService.NewAnonymizer(saltStore)
	if err != nil {
		log.Fatalf("Failed to initialize anonymizer: %v", err)
	}
	noise := privacyService.NewNoiseGenerator()

	// Initialize consent manager
	consents := consentService.NewManager(consentStore, natsConn, anonymizer, consentService.ManagerConfig{
		AuditTopic:    cfg.Consent.AuditTopic,
		PolicyVersion: cfg.Consent.PolicyVersion,
	})

	// Initialize geospatial services
	geocoder := geocode.NewNominatimGeocoder(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, cfg.Geocode.Timeout)
	approximation := geoService.NewApproximationService(geocoder)
	zones := geoService.NewZoneManager(locationStore, geoService.ZoneManagerConfig{
		MinimumAnonymity: cfg.Zones.MinimumAnonymity,
	})

	// Initialize location privacy manager
	locations := locationService.NewManager(
		noise,
		approximation,
		zones,
		locationStore,
		consents,
		locationService.ManagerConfig{
			Noise: privacyService.NoiseConfig{
				Epsilon:     cfg.Privacy.Epsilon,
				Delta:       cfg.Privacy.Delta,
				Sensitivity: cfg.Privacy.Sensitivity,
				Mechanism:   privacyService.Mechanism(cfg.Privacy.Mechanism),
			},
		},
	)

	// Initialize compatibility scorer
	scorer := matchService.NewScorer(locations, consents, matchService.ScorerConfig{
		BatchSize: cfg.Match.BatchSize,
	})

	// Initialize analytics engine
	cohorts := analyticsService.NewCohortEngine()
	tracker := analyticsService.NewTracker(consents, anonymizer, eventStore, natsConn, analyticsService.TrackerConfig{
		QueueCap:         cfg.Analytics.QueueCap,
		FlushInterval:    cfg.Analytics.FlushInterval,
		CleanupInterval:  cfg.Analytics.CleanupInterval,
		RetentionDays:    cfg.Analytics.RetentionDays,
		MaxFlushAttempts: cfg.Analytics.MaxFlushAttempts,
		EventsTopic:      cfg.Analytics.EventsTopic,
		Strength:         privacyService.Strength(cfg.Privacy.Strength),
	})

	// Start the analytics background loops
	if err := tracker.Start(ctx); err != nil {
		log.Fatalf("Failed to start event tracker: %v", err)
	}

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		consents,
		locations,
		scorer,
		tracker,
		cohorts,
	)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Println("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	log.Println("Shutting down services...")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the event tracker, flushing what remains
	if err := tracker.Stop(shutdownCtx); err != nil {
		log.Printf("Event tracker shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
