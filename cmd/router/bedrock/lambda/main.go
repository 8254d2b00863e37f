package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joeshaw/envdecode"

	"mealmind"
	"mealmind/checkpoint"
	"mealmind/feedback"
	"mealmind/model/bedrock"
	"mealmind/retrieval"
	"mealmind/router"
	"mealmind/store"
)

type Params struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	UserInput string `json:"user_input"`
}

type Results struct {
	Output string `json:"output"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var modelConfig mealmind.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var agentConfig mealmind.AgentConfig
		if err := envdecode.Decode(&agentConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var storeConfig mealmind.StoreConfig
		if err := envdecode.Decode(&storeConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		s3Bucket := os.Getenv("CHECKPOINT_S3_BUCKET")
		s3Prefix := os.Getenv("CHECKPOINT_S3_PREFIX")
		if s3Bucket == "" {
			return Results{}, fmt.Errorf("missing S3 config: CHECKPOINT_S3_BUCKET must be set")
		}

		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)
		checkpoints := checkpoint.NewS3Store(s3Client, s3Bucket, s3Prefix)
		slog.Info("SETUP: S3 checkpoint store initialized", "bucket", s3Bucket)

		pool, err := pgxpool.New(ctx, storeConfig.PostgresDSN)
		if err != nil {
			slog.Error("SETUP: Failed to create postgres pool", "error", err)
			return Results{}, err
		}
		defer pool.Close()
		gw := store.NewPostgres(pool)

		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to create Bedrock client", "error", err)
			return Results{}, err
		}

		gateway := bedrock.NewClient(brc, bedrock.ClientOpts{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
			Timeout:     time.Duration(agentConfig.ModelTimeoutSec) * time.Second,
		})

		retriever := retrieval.NewClient(retrieval.ClientOpts{
			Endpoint:   agentConfig.RetrievalEndpoint,
			HTTPClient: http.DefaultClient,
		})

		tracerProvider, meterProvider, otelShutdown, err := mealmind.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		r := router.NewInstrumented(router.Opts{
			Gateway:           gateway,
			Store:             gw,
			Retriever:         retriever,
			Checkpoints:       checkpoints,
			Feedback:          feedback.NewExtractor(gateway),
			Logger:            mealmind.NewStdoutTurnLogger(),
			MaxTurnIterations: agentConfig.MaxTurnIterations,
			MaxToolIterations: agentConfig.MaxToolIterations,
			HistoryWindow:     agentConfig.HistoryWindow,
		}, tracerProvider.Tracer(mealmind.TracerNameBedrock), meterProvider.Meter(mealmind.TracerNameBedrock))

		output, err := r.RunTurn(ctx, mealmind.TurnInput{
			UserID:    params.UserID,
			ThreadID:  params.ThreadID,
			UserInput: params.UserInput,
		})
		if err != nil {
			slog.Error("RESULT: Error handling turn", "error", err)
			return Results{}, err
		}

		return Results{Output: output}, nil
	}

	lambda.Start(fn)
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}
