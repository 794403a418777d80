package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// defaultProfileNamespace is the namespace the previous auth system derived its
// profile ids from. Changing it breaks the mapping for every existing profile.
const defaultProfileNamespace = "6ba7b811-9dad-11d1-80b4-00c04fd430c8"

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode  string // Set via flag, not env
	LogLevel string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity provider
	JwtSecret          string
	ProfileIDNamespace uuid.UUID

	// Server
	ApiPort        string
	ServiceApiPort string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	MockServices    bool   // store outgoing mail in Redis for tests
	EmailLogPath    string // optional file copy of every outgoing mail

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Endpoint      string

	// Documents
	DocumentMaxSizeMB      int
	DocumentAllowedTypes   []string
	SignedURLTTL           time.Duration
	PreviewMaxDimension    int
	OrphanBlobMinAge       time.Duration
	ReconcileSweepCronspec string
	PropertyCacheTTL       time.Duration

	// Consultations
	ConsultationLocation      *time.Location
	AutoCompleteGrace         time.Duration
	AutoCompleteEnabled       bool
	AutoCompleteSweepCronspec string

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second

	// Origins allowed by CORS; empty means any
	CORSAllowedOrigins []string
}

// DocumentMaxSizeBytes is the upload size limit in bytes.
func (c *Config) DocumentMaxSizeBytes() int64 {
	return int64(c.DocumentMaxSizeMB) * 1024 * 1024
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		seconds, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	getMinutes := func(key, defaultValue string) (time.Duration, error) {
		minutes, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(minutes) * time.Minute, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "marketplace")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@marketplace.example.com")
	cfg.EmailLogPath = getEnv("LOG_EMAILS", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "offer-documents")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT", "")
	cfg.AppName = getEnv("APP_NAME", "Marketplace")
	cfg.ReconcileSweepCronspec = getEnv("RECONCILE_SWEEP_CRON", "0 * * * *")
	cfg.AutoCompleteSweepCronspec = getEnv("AUTO_COMPLETE_SWEEP_CRON", "*/10 * * * *")

	cfg.ProfileIDNamespace, err = uuid.Parse(getEnv("PROFILE_ID_NAMESPACE", defaultProfileNamespace))
	if err != nil {
		return nil, fmt.Errorf("invalid PROFILE_ID_NAMESPACE: %w", err)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.DocumentMaxSizeMB, err = strconv.Atoi(getEnv("DOCUMENT_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOCUMENT_MAX_SIZE_MB: %w", err)
	}
	if cfg.DocumentMaxSizeMB <= 0 {
		return nil, fmt.Errorf("invalid DOCUMENT_MAX_SIZE_MB: must be positive")
	}

	cfg.DocumentAllowedTypes = splitList(getEnv("DOCUMENT_ALLOWED_TYPES", "application/pdf,image/jpeg,image/png"))
	if len(cfg.DocumentAllowedTypes) == 0 {
		return nil, fmt.Errorf("invalid DOCUMENT_ALLOWED_TYPES: at least one type is required")
	}

	cfg.SignedURLTTL, err = getSeconds("SIGNED_URL_TTL_SECONDS", "3600")
	if err != nil {
		return nil, err
	}

	cfg.PropertyCacheTTL, err = getSeconds("PROPERTY_CACHE_TTL_SECONDS", "3600")
	if err != nil {
		return nil, err
	}

	cfg.PreviewMaxDimension, err = strconv.Atoi(getEnv("PREVIEW_MAX_DIMENSION", "512"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREVIEW_MAX_DIMENSION: %w", err)
	}

	cfg.OrphanBlobMinAge, err = getMinutes("ORPHAN_BLOB_MIN_AGE_MINUTES", "60")
	if err != nil {
		return nil, err
	}

	cfg.AutoCompleteGrace, err = getMinutes("AUTO_COMPLETE_GRACE_MINUTES", "120")
	if err != nil {
		return nil, err
	}

	cfg.MockServices, err = strconv.ParseBool(getEnv("MOCK_SERVICES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_SERVICES: %w", err)
	}

	cfg.AutoCompleteEnabled, err = strconv.ParseBool(getEnv("AUTO_COMPLETE_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_COMPLETE_ENABLED: %w", err)
	}

	cfg.ConsultationLocation, err = time.LoadLocation(getEnv("CONSULTATION_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONSULTATION_TIMEZONE: %w", err)
	}

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}
	if cfg.RateLimitBucketSize <= 0 || cfg.RateLimitRefillRate <= 0 {
		return nil, fmt.Errorf("invalid rate limit: bucket size and refill rate must be positive")
	}

	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", ""))

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
