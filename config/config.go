package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "jobscout"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	AdminAPIKey string

	// Database
	DatabaseURL string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// OAuth - Google (Gmail)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	GmailAccount       string

	// Classification
	RuleConfidenceThreshold float64 // rule results below this go to AI
	AIFallbackEnabled       bool
	AIMaxCostPerRun         float64 // USD
	AICostPerItem           float64 // USD per classification call; set as an upper bound on actual cost
	AICallDelayMS           int     // fixed inter-call delay

	// Pipeline
	ResumePath           string
	MailFetchWindowHours int
	RelevanceThreshold   float64
	ProfileStalenessDays int
	FetchPostingPages    bool

	// Queue / Worker
	WorkerID           string
	QueueEnv           string // logical queue per deployment environment
	MaxAttempts        int
	BackoffBaseSec     int
	CompletedHistory   int
	FailedHistory      int
	ConsumerBlockMS    int
	PendingIdleSec     int
	PendingCheckSec    int
	ClaimTTLMin        int

	// Token Guardian
	TokenCheckIntervalMin  int
	TokenRefreshHorizonMin int
	AlertCooldownMin       int

	// Notifier
	NotifierWebhookURL string

	// Scheduler
	SchedulerEnabled bool
	ProcessJobsCron  string
	DailySummaryCron string
	CleanupCron      string
	RetentionDays    int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GmailAccount:       getEnv("GMAIL_ACCOUNT", "me"),

		RuleConfidenceThreshold: getEnvFloat("RULE_CONFIDENCE_THRESHOLD", 0.8),
		AIFallbackEnabled:       getEnvBool("AI_FALLBACK_ENABLED", true),
		AIMaxCostPerRun:         getEnvFloat("AI_MAX_COST_PER_RUN", 0.50),
		AICostPerItem:           getEnvFloat("AI_COST_PER_ITEM", 0.002),
		AICallDelayMS:           getEnvInt("AI_CALL_DELAY_MS", 200),

		ResumePath:           getEnv("RESUME_PATH", ""),
		MailFetchWindowHours: getEnvInt("MAIL_FETCH_WINDOW_HOURS", 24),
		RelevanceThreshold:   getEnvFloat("RELEVANCE_THRESHOLD", 0.6),
		ProfileStalenessDays: getEnvInt("PROFILE_STALENESS_DAYS", 7),
		FetchPostingPages:    getEnvBool("FETCH_POSTING_PAGES", true),

		WorkerID:         getEnv("WORKER_ID", generateWorkerID()),
		QueueEnv:         getEnv("QUEUE_ENV", getEnv("ENV", "development")),
		MaxAttempts:      getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
		BackoffBaseSec:   getEnvInt("QUEUE_BACKOFF_BASE_SEC", 30),
		CompletedHistory: getEnvInt("QUEUE_COMPLETED_HISTORY", 5),
		FailedHistory:    getEnvInt("QUEUE_FAILED_HISTORY", 10),
		ConsumerBlockMS:  getEnvInt("CONSUMER_BLOCK_MS", 5000),
		PendingIdleSec:   getEnvInt("CONSUMER_PENDING_IDLE_SEC", 120),
		PendingCheckSec:  getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),
		ClaimTTLMin:      getEnvInt("QUEUE_CLAIM_TTL_MIN", 30),

		TokenCheckIntervalMin:  getEnvInt("TOKEN_CHECK_INTERVAL_MIN", 10),
		TokenRefreshHorizonMin: getEnvInt("TOKEN_REFRESH_HORIZON_MIN", 5),
		AlertCooldownMin:       getEnvInt("ALERT_COOLDOWN_MIN", 60),

		NotifierWebhookURL: getEnv("NOTIFIER_WEBHOOK_URL", ""),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		ProcessJobsCron:  getEnv("PROCESS_JOBS_CRON", "0 * * * *"),
		DailySummaryCron: getEnv("DAILY_SUMMARY_CRON", "0 8 * * *"),
		CleanupCron:      getEnv("CLEANUP_CRON", "30 3 * * *"),
		RetentionDays:    getEnvInt("RETENTION_DAYS", 90),
	}

	if cfg.RuleConfidenceThreshold <= 0 || cfg.RuleConfidenceThreshold > 1 {
		return nil, fmt.Errorf("RULE_CONFIDENCE_THRESHOLD must be in (0,1], got %v", cfg.RuleConfidenceThreshold)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("QUEUE_MAX_ATTEMPTS must be >= 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// TokenRefreshHorizon returns the preemptive refresh window.
func (c *Config) TokenRefreshHorizon() time.Duration {
	return time.Duration(c.TokenRefreshHorizonMin) * time.Minute
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
