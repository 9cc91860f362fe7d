package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Privacy     PrivacyConfig
	Zones       ZonesConfig
	Match       MatchConfig
	Consent     ConsentConfig
	Analytics   AnalyticsConfig
	Geocode     GeocodeConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// PrivacyConfig holds noise-generation and anonymization configuration
type PrivacyConfig struct {
	Epsilon     float64
	Delta       float64
	Sensitivity float64
	Mechanism   string
	SaltPath    string
	Strength    string
}

// ZonesConfig holds proximity-zone configuration
type ZonesConfig struct {
	MinimumAnonymity int
}

// MatchConfig holds compatibility-scoring configuration
type MatchConfig struct {
	BatchSize int
}

// ConsentConfig holds consent-management configuration
type ConsentConfig struct {
	AuditTopic    string
	PolicyVersion string
}

// AnalyticsConfig holds event tracking configuration
type AnalyticsConfig struct {
	QueueCap         int
	FlushInterval    time.Duration
	CleanupInterval  time.Duration
	RetentionDays    int
	MaxFlushAttempts int
	EventsTopic      string
}

// GeocodeConfig holds reverse-geocoding configuration
type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "privloc"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Privacy: PrivacyConfig{
			Epsilon:     getEnvAsFloat("PRIVACY_EPSILON", 1.0),
			Delta:       getEnvAsFloat("PRIVACY_DELTA", 1e-5),
			Sensitivity: getEnvAsFloat("PRIVACY_SENSITIVITY", 1.0),
			Mechanism:   getEnv("PRIVACY_MECHANISM", "laplace"),
			SaltPath:    getEnv("PRIVACY_SALT_PATH", ".privloc/salt"),
			Strength:    getEnv("PRIVACY_STRENGTH", "enhanced"),
		},
		Zones: ZonesConfig{
			MinimumAnonymity: getEnvAsInt("ZONES_MINIMUM_ANONYMITY", 5),
		},
		Match: MatchConfig{
			BatchSize: getEnvAsInt("MATCH_BATCH_SIZE", 50),
		},
		Consent: ConsentConfig{
			AuditTopic:    getEnv("CONSENT_AUDIT_TOPIC", "consent"),
			PolicyVersion: getEnv("CONSENT_POLICY_VERSION", "1.0"),
		},
		Analytics: AnalyticsConfig{
			QueueCap:         getEnvAsInt("ANALYTICS_QUEUE_CAP", 50),
			FlushInterval:    getEnvAsDuration("ANALYTICS_FLUSH_INTERVAL", 30*time.Second),
			CleanupInterval:  getEnvAsDuration("ANALYTICS_CLEANUP_INTERVAL", 6*time.Hour),
			RetentionDays:    getEnvAsInt("ANALYTICS_RETENTION_DAYS", 90),
			MaxFlushAttempts: getEnvAsInt("ANALYTICS_MAX_FLUSH_ATTEMPTS", 3),
			EventsTopic:      getEnv("ANALYTICS_EVENTS_TOPIC", "analytics"),
		},
		Geocode: GeocodeConfig{
			BaseURL:   getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "privloc/1.0"),
			Timeout:   getEnvAsDuration("GEOCODE_TIMEOUT", 5*time.Second),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Privacy.Epsilon <= 0 {
		return fmt.Errorf("privacy epsilon must be positive")
	}
	if config.Zones.MinimumAnonymity < 2 {
		return fmt.Errorf("zone anonymity threshold below 2 defeats k-anonymity")
	}
	if config.Analytics.RetentionDays <= 0 {
		return fmt.Errorf("analytics retention must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
