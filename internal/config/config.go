package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Notion    NotionConfig
	Google    GoogleConfig
	Pipeline  PipelineConfig
	Database  DatabaseConfig
}

// NotionConfig holds document-store connection settings
type NotionConfig struct {
	Token string
	// MasterDBID is the canonical master-location database
	MasterDBID string
	// ProductionsDBID is the registry database listing every production
	// and its locations database id
	ProductionsDBID string
	PageSize        int
}

// GoogleConfig holds geocoding provider settings
type GoogleConfig struct {
	MapsAPIKey string
	// GeminiAPIKey enables the optional address-repair suggester
	GeminiAPIKey string
	GeminiModel  string
}

// PipelineConfig holds the tuning knobs for matching, clustering and
// write-back. All thresholds are overridable from the environment so
// operators can exercise boundary conditions without a rebuild.
type PipelineConfig struct {
	CacheTTL         time.Duration
	ProximityMeters  float64
	WriteRatePerSec  float64
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMultiplier  float64
}

// DatabaseConfig holds the local job-log database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	notionToken := os.Getenv("NOTION_TOKEN")
	if notionToken == "" {
		return nil, fmt.Errorf("NOTION_TOKEN is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Notion: NotionConfig{
			Token:           notionToken,
			MasterDBID:      os.Getenv("NOTION_MASTER_DB_ID"),
			ProductionsDBID: os.Getenv("NOTION_PRODUCTIONS_DB_ID"),
			PageSize:        getEnvInt("NOTION_PAGE_SIZE", 100),
		},
		Google: GoogleConfig{
			MapsAPIKey:   os.Getenv("GOOGLE_MAPS_API_KEY"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		},
		Pipeline: PipelineConfig{
			CacheTTL:         time.Duration(getEnvInt("CACHE_TTL_SECONDS", 600)) * time.Second,
			ProximityMeters:  getEnvFloat("DEDUP_PROXIMITY_METERS", 50),
			WriteRatePerSec:  getEnvFloat("WRITE_RATE_PER_SEC", 3),
			RetryMaxAttempts: getEnvInt("WRITE_RETRY_MAX_ATTEMPTS", 4),
			RetryBaseDelay:   time.Duration(getEnvInt("WRITE_RETRY_BASE_DELAY_MS", 500)) * time.Millisecond,
			RetryMultiplier:  getEnvFloat("WRITE_RETRY_MULTIPLIER", 2),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "scoutdesk"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
