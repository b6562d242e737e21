package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslex "github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"petstay-frontdesk/handler"
	"petstay-frontdesk/internal/config"
	"petstay-frontdesk/internal/dashboard"
	"petstay-frontdesk/internal/http/middleware"
	"petstay-frontdesk/internal/integrations/bookingapi"
	"petstay-frontdesk/internal/integrations/identity"
	"petstay-frontdesk/internal/integrations/lexdialog"
	"petstay-frontdesk/internal/integrations/paramstore"
	"petstay-frontdesk/internal/integrations/photostore"
	"petstay-frontdesk/internal/repository"
	"petstay-frontdesk/internal/sessionstore"
	"petstay-frontdesk/internal/signer"
	"petstay-frontdesk/internal/streaming"
	"petstay-frontdesk/internal/usecase"
)

func main() {
	// Local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Optional bot settings from Parameter Store ----
	botID, botAliasID := cfg.BotID, cfg.BotAliasID
	if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		bundle, err := ssmClient.LoadBundle(ctx, cfg.ParamPrefix)
		if err != nil {
			logger.Error("failed to load parameter bundle", "prefix", cfg.ParamPrefix, "err", err)
			os.Exit(1)
		}
		if v := bundle["bot_id"]; v != "" {
			botID = v
		}
		if v := bundle["bot_alias_id"]; v != "" {
			botAliasID = v
		}
	}

	// ---- Clients ----
	lexClient, err := lexdialog.New(awslex.NewFromConfig(awsCfg), botID, botAliasID, cfg.BotLocaleID, logger)
	if err != nil {
		logger.Error("failed to create dialog client", "err", err)
		os.Exit(1)
	}

	bookingClient, err := bookingapi.New(cfg.BookingAPIBaseURL)
	if err != nil {
		logger.Error("failed to create booking client", "err", err)
		os.Exit(1)
	}

	coordinator, err := usecase.NewCoordinator(lexClient, bookingClient, usecase.DefaultRetryPolicy(), logger)
	if err != nil {
		logger.Error("failed to create coordinator", "err", err)
		os.Exit(1)
	}

	photoStore, err := photostore.New(awss3.NewPresignClient(awss3.NewFromConfig(awsCfg)), cfg.PhotoBucket)
	if err != nil {
		logger.Error("failed to create photo store", "err", err)
		os.Exit(1)
	}

	transcripts, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TranscriptTable)
	if err != nil {
		logger.Error("failed to create transcript store", "err", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	sessions, err := sessionstore.New(redisClient, sessionstore.WithTTL(cfg.SessionTTL))
	if err != nil {
		logger.Error("failed to create session store", "err", err)
		os.Exit(1)
	}

	// ---- Dashboard and live stats ----
	registry := prometheus.NewRegistry()
	stats := dashboard.NewStats(logger, dashboard.WithMetrics(dashboard.NewMetrics(registry)))

	if cfg.StreamingEnabled() {
		idProvider, err := identity.New(awscognito.NewFromConfig(awsCfg), cfg.IdentityPoolID)
		if err != nil {
			logger.Error("failed to create identity provider", "err", err)
			os.Exit(1)
		}
		urlSigner, err := signer.New("iotdevicegateway")
		if err != nil {
			logger.Error("failed to create url signer", "err", err)
			os.Exit(1)
		}
		subscriber, err := streaming.New(
			cfg.StreamEndpoint, cfg.AWSRegion, cfg.StreamTopic,
			idProvider, urlSigner, stats.Apply, logger,
		)
		if err != nil {
			logger.Error("failed to create stats subscriber", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("stats subscriber stopped", "err", err)
			}
		}()
	} else {
		logger.Info("live stats streaming disabled")
	}

	staffAuth := middleware.NewStaffAuth(middleware.CognitoConfig{
		Region:     cfg.AWSRegion,
		UserPoolID: cfg.UserPoolID,
		ClientID:   cfg.AppClientID,
	})

	h, err := handler.New(handler.Config{
		Conversations: coordinator,
		Sessions:      sessions,
		Transcripts:   transcripts,
		Photos:        photoStore,
		Bookings:      bookingClient,
		Stats:         stats,
		StaffAuth:     staffAuth.Middleware,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	allowedOrigins := strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",")
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Router(allowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("front desk listening", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
