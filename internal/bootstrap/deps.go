// Package bootstrap wires configuration, infrastructure, and services into
// runnable API and worker processes.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"jobscout/adapter/out/ai"
	"jobscout/adapter/out/mail"
	"jobscout/adapter/out/notify"
	"jobscout/adapter/out/persistence"
	"jobscout/config"
	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/core/service/auth"
	"jobscout/core/service/classify"
	"jobscout/core/service/dedup"
	"jobscout/core/service/pipeline"
	"jobscout/infra/database"
	"jobscout/internal/queue"
	"jobscout/pkg/httputil"
	"jobscout/pkg/logger"
)

// Dependencies holds every shared component of the process.
type Dependencies struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	ZLog   zerolog.Logger

	Queue     *queue.Queue
	Guardian  *auth.Guardian
	Store     out.JobStore
	Notifier  out.Notifier
	Mail      out.MailProvider
	AI        out.AIClient
	Processor *pipeline.Processor
}

// NewDependencies builds the full dependency graph. The returned cleanup
// closes the shared connections.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}

	redisClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		redisClient.Close()
		db.Close()
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Str("service", "jobscout").Logger()

	q := queue.NewQueue(redisClient, queue.QueueConfig{
		Env:              cfg.QueueEnv,
		ClaimTTL:         time.Duration(cfg.ClaimTTLMin) * time.Minute,
		CompletedHistory: int64(cfg.CompletedHistory),
		FailedHistory:    int64(cfg.FailedHistory),
	}, zlog)

	notifier := notify.NewWebhookNotifier(cfg.NotifierWebhookURL, httputil.NewClient(nil))

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.modify"},
	}
	guardian := auth.NewGuardian(oauthCfg, domain.TokenState{
		RefreshToken: cfg.GoogleRefreshToken,
	}, notifier, auth.GuardianConfig{
		Provider:       "gmail",
		CheckInterval:  time.Duration(cfg.TokenCheckIntervalMin) * time.Minute,
		RefreshHorizon: cfg.TokenRefreshHorizon(),
		AlertCooldown:  time.Duration(cfg.AlertCooldownMin) * time.Minute,
	})

	mailProvider := mail.NewGmailAdapter(guardian, cfg.GmailAccount)
	store := persistence.NewJobStoreAdapter(db)

	aiClient := ai.NewAdapter(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	classifier := classify.NewHybrid(
		classify.NewRuleClassifier(classify.DefaultRuleset()),
		classify.NewAIClassifier(aiClient, classify.AIClassifierConfig{
			CostPerItem: cfg.AICostPerItem,
			CallDelay:   time.Duration(cfg.AICallDelayMS) * time.Millisecond,
		}),
		classify.HybridConfig{
			RuleConfidenceThreshold: cfg.RuleConfidenceThreshold,
			AIFallbackEnabled:       cfg.AIFallbackEnabled,
		},
	)

	processor := pipeline.NewProcessor(
		mailProvider,
		aiClient,
		store,
		notifier,
		pipeline.MultiSink{pipeline.LogSink{}, q},
		classifier,
		dedup.NewChecker(store),
		httputil.NewClient(nil),
		pipeline.ProcessorConfig{
			FetchWindow:        time.Duration(cfg.MailFetchWindowHours) * time.Hour,
			RelevanceThreshold: cfg.RelevanceThreshold,
			ProfileStaleness:   time.Duration(cfg.ProfileStalenessDays) * 24 * time.Hour,
			MaxCostPerRun:      cfg.AIMaxCostPerRun,
			FetchPostingPages:  cfg.FetchPostingPages,
			ResumeText:         loadResume(cfg.ResumePath),
		},
	)

	return &Dependencies{
		Config:    cfg,
		DB:        db,
		Redis:     redisClient,
		ZLog:      zlog,
		Queue:     q,
		Guardian:  guardian,
		Store:     store,
		Notifier:  notifier,
		Mail:      mailProvider,
		AI:        aiClient,
		Processor: processor,
	}, cleanup, nil
}

// loadResume reads the configured resume file; a missing or unreadable file
// just means profile analysis falls back to the cached result.
func loadResume(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).Warn("failed to read resume at %s", path)
		return ""
	}
	return string(data)
}
