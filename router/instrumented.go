package router

import (
	"context"
	"log/slog"
	"time"

	"mealmind"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedRouter wraps Router with tracing and metrics around each turn.
type InstrumentedRouter struct {
	inner  *Router
	tracer trace.Tracer
	meter  metric.Meter
}

// NewInstrumented initializes an instrumented router over the given options.
func NewInstrumented(opts Opts, tracer trace.Tracer, meter metric.Meter) *InstrumentedRouter {
	return &InstrumentedRouter{
		inner:  New(opts),
		tracer: tracer,
		meter:  meter,
	}
}

// RunTurn executes one turn with full instrumentation.
func (r *InstrumentedRouter) RunTurn(ctx context.Context, in mealmind.TurnInput) (string, error) {
	ctx, span := r.tracer.Start(ctx, "Router.RunTurn")
	defer span.End()

	turnsCounter, _ := r.meter.Int64Counter("router_turns_total",
		metric.WithDescription("Total number of turns started"))
	turnsFailedCounter, _ := r.meter.Int64Counter("router_turns_failed_total",
		metric.WithDescription("Total number of turns that failed"))
	stepsCounter, _ := r.meter.Int64Counter("router_steps_total",
		metric.WithDescription("Total number of plan steps executed"))
	toolCallsCounter, _ := r.meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of retrieval tool calls requested"))
	dedupCounter, _ := r.meter.Int64Counter("tool_deduplications_total",
		metric.WithDescription("Total number of duplicate searches suppressed"))
	capExhaustedCounter, _ := r.meter.Int64Counter("router_iteration_cap_exhausted_total",
		metric.WithDescription("Total number of turns that hit the iteration cap"))

	planLengthGauge, _ := r.meter.Int64Gauge("plan_length",
		metric.WithDescription("Number of steps in the latest plan"))
	responseLengthGauge, _ := r.meter.Int64Gauge("response_length",
		metric.WithDescription("Length of the latest turn response"))

	turnDurationHist, _ := r.meter.Float64Histogram("turn_duration_seconds",
		metric.WithDescription("Duration of a full turn in seconds"))

	turnsCounter.Add(ctx, 1)
	slog.Info("ROUTER: Starting instrumented turn", "user_id", in.UserID, "thread_id", in.ThreadID)

	start := time.Now()
	response, stats, err := r.inner.runTurn(ctx, in)
	turnDurationHist.Record(ctx, time.Since(start).Seconds())

	stepsCounter.Add(ctx, int64(stats.steps))
	toolCallsCounter.Add(ctx, int64(stats.toolCalls))
	dedupCounter.Add(ctx, int64(stats.dedupHits))
	planLengthGauge.Record(ctx, int64(stats.planLength))
	if stats.capExhausted {
		capExhaustedCounter.Add(ctx, 1)
	}

	if err != nil {
		turnsFailedCounter.Add(ctx, 1)
		span.SetStatus(codes.Error, "Turn failed")
		span.RecordError(err)
		return "", err
	}

	responseLengthGauge.Record(ctx, int64(len(response)))
	span.AddEvent("Turn completed", trace.WithAttributes(
		attribute.Int("plan_length", stats.planLength),
		attribute.Int("steps", stats.steps),
		attribute.Int("tool_calls", stats.toolCalls),
		attribute.Int("dedup_hits", stats.dedupHits),
		attribute.Int("response_length", len(response)),
	))
	return response, nil
}
