package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mealmind"
	"mealmind/checkpoint"
	"mealmind/feedback"
	"mealmind/model/ollama"
	"mealmind/notify"
	"mealmind/retrieval"
	"mealmind/router"
	"mealmind/store"
)

func main() {
	ctx := context.Background()

	var modelConfig mealmind.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var agentConfig mealmind.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var storeConfig mealmind.StoreConfig
	if err := envdecode.Decode(&storeConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var checkpointConfig mealmind.CheckpointConfig
	if err := envdecode.Decode(&checkpointConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	pool, err := pgxpool.New(ctx, storeConfig.PostgresDSN)
	if err != nil {
		slog.Error("SETUP: Failed to create postgres pool", "error", err)
		return
	}
	defer pool.Close()
	gw := store.NewPostgres(pool)
	slog.Info("SETUP: Postgres store initialized")

	checkpoints, err := newCheckpointStore(checkpointConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create checkpoint store", "error", err)
		return
	}

	logger, cleanup, err := newTurnLogger(modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create turn logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush turn log", "error", err)
		}
	}()

	gateway, err := ollama.NewClient(ollama.ClientOpts{
		BaseEndpoint: agentConfig.BaseOllamaEndpoint,
		ModelID:      modelConfig.ModelID,
		HTTPClient:   http.DefaultClient,
		Timeout:      time.Duration(agentConfig.ModelTimeoutSec) * time.Second,
	})
	if err != nil {
		slog.Error("SETUP: Failed to create model gateway", "error", err)
		return
	}

	retriever := retrieval.NewClient(retrieval.ClientOpts{
		Endpoint:   agentConfig.RetrievalEndpoint,
		HTTPClient: http.DefaultClient,
	})

	tracerProvider, meterProvider, otelShutdown, err := mealmind.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	tracer := tracerProvider.Tracer(mealmind.TracerNameRouter)
	meter := meterProvider.Meter(mealmind.TracerNameRouter)

	input := mealmind.TurnInput{
		UserID:    envOr("MEALMIND_USER_ID", "1"),
		ThreadID:  envOr("MEALMIND_THREAD_ID", "local"),
		UserInput: argOr(1, "What's for dinner today?"),
	}

	ctx, span := tracer.Start(ctx, mealmind.TracerNameRouter, trace.WithAttributes(
		attribute.String("model.id", modelConfig.ModelID),
		attribute.String("user.id", input.UserID),
		attribute.String("thread.id", input.ThreadID),
	))
	defer span.End()

	r := router.NewInstrumented(router.Opts{
		Gateway:           gateway,
		Store:             gw,
		Retriever:         retriever,
		Checkpoints:       checkpoints,
		Feedback:          feedback.NewExtractor(gateway),
		Logger:            logger,
		MaxTurnIterations: agentConfig.MaxTurnIterations,
		MaxToolIterations: agentConfig.MaxToolIterations,
		HistoryWindow:     agentConfig.HistoryWindow,
	}, tracer, meter)

	output, err := r.RunTurn(ctx, input)
	if err != nil {
		slog.Error("FAILURE: Error handling turn", "error", err)
		return
	}

	fmt.Println(output)

	if webhookURL := os.Getenv("SLACK_WEBHOOK_URL"); webhookURL != "" {
		slackClient := notify.NewClient(webhookURL, http.DefaultClient)
		if err := slackClient.PostMessage(ctx, envOr("SLACK_CHANNEL", "#meals"), output); err != nil {
			slog.Error("Failed to post result to Slack", "error", err)
		}
	}
}

func newCheckpointStore(cfg mealmind.CheckpointConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case "file":
		return checkpoint.NewFileStore(cfg.FileDir), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return checkpoint.NewRedisStore(client, time.Duration(cfg.TTLHours)*time.Hour), nil
	}
	return nil, fmt.Errorf("unsupported checkpoint backend %q", cfg.Backend)
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newTurnLogger(modelID string) (mealmind.TurnLogger, func() error, error) {
	logFilePath := mealmind.NewTurnLogFilePath(modelID)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := mealmind.NewFileTurnLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
