// Package main is the entrypoint for the tinote API server and its
// operator commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/tinote/tinote/internal/ai"
	"github.com/tinote/tinote/internal/auth"
	"github.com/tinote/tinote/internal/cache"
	"github.com/tinote/tinote/internal/config"
	"github.com/tinote/tinote/internal/handler"
	"github.com/tinote/tinote/internal/ledger"
	"github.com/tinote/tinote/internal/metrics"
	"github.com/tinote/tinote/internal/middleware"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/repository"
	"github.com/tinote/tinote/internal/scheduler"
	"github.com/tinote/tinote/internal/server"
	"github.com/tinote/tinote/internal/service"
)

// commandTimeout bounds the one-shot operator commands.
const commandTimeout = time.Minute

func main() {
	cmd := &cli.Command{
		Name:   "tinote",
		Usage:  "Lecture and document note service with daily credits",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the daily credit reset",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations",
				Action: migrate,
			},
			{
				Name:  "reset-credits",
				Usage: "Set every user's daily credits now",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "credits",
						Usage: "Credit value to restore (default RESET_CREDITS)",
					},
				},
				Action: resetCredits,
			},
			{
				Name:  "bootstrap-admin",
				Usage: "Create an admin user and print its API key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Admin display name", Required: true},
					&cli.StringFlag{Name: "student-id", Usage: "Login identifier", Required: true},
				},
				Action: bootstrapAdmin,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// serve wires every component and blocks until shutdown.
func serve(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return errors.New(sanitizeError(err, cfg.DatabaseURL))
		}
		logger.Info("database migrations applied")
	}

	repo, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errors.New("failed to connect to Redis")
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()
	credits := ledger.New(repo, logger, recorder)
	store := service.NewRepositoryStore(repo)

	aiClient := ai.NewClient(ai.Config{
		APIKey:             cfg.AI.APIKey,
		BaseURL:            cfg.AI.BaseURL,
		TranscribeModel:    cfg.AI.TranscribeModel,
		SummaryModel:       cfg.AI.SummaryModel,
		LanguageHint:       cfg.AI.LanguageHint,
		SummaryLanguage:    cfg.AI.SummaryLanguage,
		RequestTimeout:     cfg.AI.RequestTimeout,
		TranscribeMaxBytes: cfg.AI.TranscribeMaxBytes,
		SummaryMaxTokens:   cfg.AI.SummaryMaxTokens,
		SummaryTemperature: cfg.AI.SummaryTemperature,
	}, nil, logger)
	if cfg.AI.APIKey == "" {
		logger.Warn("AI_API_KEY is empty, note creation will fail upstream")
	}

	notes := service.NewNoteService(store, credits, aiClient, aiClient, service.NoteConfig{
		MediaCost:        cfg.NoteCost.Media,
		DocumentCost:     cfg.NoteCost.Document,
		DocumentMaxChars: cfg.Document.MaxChars,
		TruncationMarker: cfg.Document.TruncationMarker,
		LanguageHint:     cfg.AI.LanguageHint,
	}, logger, recorder)
	accounts := service.NewAccountService(store, cacheClient, credits, keyEnv(cfg), logger)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:   logger,
		Health:   handler.NewHealthHandler(repo, cacheClient),
		Metrics:  handler.NewMetricsHandler(recorder),
		Accounts: handler.NewAccountHandler(accounts, logger),
		Notes:    handler.NewNoteHandler(notes, accounts, cfg.MaxUploadSize, logger),
		Admin:    handler.NewAdminHandler(accounts, cfg.Reset.Credits, logger),
		Auth: middleware.AuthConfig{
			Logger:      logger,
			Keys:        repo,
			Cache:       cacheClient,
			Metrics:     recorder,
			MinDuration: middleware.DefaultMinAuthDuration,
		},
		RateLimit: middleware.RateLimitConfig{
			Logger:       logger,
			Limiter:      cacheClient,
			KeyEnabled:   cfg.RateLimitAPIEnabled,
			LoginEnabled: cfg.RateLimitLoginEnabled,
			LoginRPS:     cfg.RateLimitLoginRPS,
			LoginBurst:   cfg.RateLimitLoginBurst,
		},
		CORS:               middleware.CORSConfig{AllowedOrigins: cfg.GetCORSAllowedOrigins()},
		Security:           middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := server.New(
		router,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Registered first, closed last.
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.Reset.Enabled {
		hour, minute := cfg.Reset.Clock()
		resets := scheduler.NewResetScheduler(credits, scheduler.Config{
			Hour:           hour,
			Minute:         minute,
			Location:       cfg.Reset.Location(),
			CheckInterval:  cfg.Reset.CheckInterval,
			Credits:        cfg.Reset.Credits,
			AttemptTimeout: cfg.Reset.AttemptTimeout,
			MaxAttempts:    cfg.Reset.MaxAttempts,
		}, scheduler.RealClock(), logger)
		srv.Go("credit-reset", resets.Run)
		srv.OnShutdown("credit-reset", resets.Shutdown)
	} else {
		logger.Warn("daily credit reset disabled")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"reset_time", cfg.Reset.Time,
		"reset_timezone", cfg.Reset.Location().String(),
	)

	return srv.Run(ctx)
}

// migrate applies migrations and exits.
func migrate(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return errors.New(sanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("database migrations applied")
	return nil
}

// resetCredits runs one manual reset, the same operation the scheduler fires.
func resetCredits(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	value := cfg.Reset.Credits
	if cmd.IsSet("credits") {
		value = int(cmd.Int("credits"))
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	repo, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	updated, err := ledger.New(repo, logger, metrics.NewNoop()).ResetAll(ctx, value)
	if err != nil {
		return fmt.Errorf("reset credits: %w", err)
	}

	fmt.Printf("reset %d users to %d credits\n", updated, value)
	return nil
}

// bootstrapAdmin creates the first admin account. The key is printed once.
func bootstrapAdmin(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	repo, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	store := service.NewRepositoryStore(repo)
	accounts := service.NewAccountService(store, nil, ledger.New(repo, logger, nil), keyEnv(cfg), logger)

	user, key, err := accounts.CreateUser(ctx, service.CreateUserInput{
		Name:      cmd.String("name"),
		StudentID: cmd.String("student-id"),
		Scopes:    []string{model.ScopeAdmin},
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		User   model.UserResponse `json:"user"`
		APIKey *model.IssuedKey   `json:"api_key"`
	}{user.ToResponse(), key})
}

// setup loads configuration and installs the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, initLogger(cfg), nil
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.Repository, error) {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, errors.New("failed to connect to database")
	}
	logger.Info("connected to database")
	return repo, nil
}

// keyEnv selects the API key format: live keys only in production.
func keyEnv(cfg *config.Config) string {
	if cfg.IsProduction() {
		return auth.EnvLive
	}
	return auth.EnvTest
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces every secret in err's message with its redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
