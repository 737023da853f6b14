package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port                 string
	Env                  string
	LogLevel             string
	StudioName           string
	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string

	// Slot store
	StoreBackend    string
	StoreMaxRetries int
	DatabaseURL     string
	CalendarTable   string
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Twilio
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWebhookSecret string
	TwilioFromNumber    string
	PublicBaseURL       string

	// Email notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	NotifyEmailTo     string
	OwnerPhone        string

	// Booking rules
	TemplatePath       string
	Timezone           string
	BlackoutMonths     []time.Month
	SessionIdleTimeout time.Duration
	SeedHorizonDays    int
	SeedInterval       time.Duration
	ReengageKeyword    string

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		StudioName:           getEnv("STUDIO_NAME", "Studio Pilates"),
		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),

		StoreBackend:    strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		StoreMaxRetries: getEnvAsInt("STORE_MAX_RETRIES", 10),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		CalendarTable:   getEnv("CALENDAR_TABLE", "calendar_days"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "eu-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Lesson Bookings"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Lesson Bookings"),
		NotifyEmailTo:     getEnv("NOTIFY_EMAIL_TO", ""),
		OwnerPhone:        getEnv("OWNER_PHONE", ""),

		TemplatePath:       getEnv("BOOKING_TEMPLATE_PATH", ""),
		Timezone:           getEnv("BOOKING_TIMEZONE", "Europe/Rome"),
		BlackoutMonths:     getEnvAsMonths("BLACKOUT_MONTHS", []time.Month{time.August}),
		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 5*time.Minute),
		SeedHorizonDays:    getEnvAsInt("SEED_HORIZON_DAYS", 60),
		SeedInterval:       getEnvAsDuration("SEED_INTERVAL", 6*time.Hour),
		ReengageKeyword:    strings.ToLower(strings.TrimSpace(getEnv("REENGAGE_KEYWORD", "prenotazione"))),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsMonths parses a comma separated list of month numbers (1-12).
// "none" disables the blackout entirely. Invalid lists fall back to the default.
func getEnvAsMonths(key string, defaultValue []time.Month) []time.Month {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if strings.EqualFold(valueStr, "none") {
		return nil
	}
	var months []time.Month
	for _, part := range strings.Split(valueStr, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 12 {
			return defaultValue
		}
		months = append(months, time.Month(n))
	}
	return months
}
