package ai

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codecheck",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of generation provider calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"provider", "model", "mode"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codecheck",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed generation provider calls",
	}, []string{"provider", "model", "reason"})
)

// instrument wraps provider calls with a span, metrics and a debug log line.
type instrument struct {
	provider string
	model    string
	protocol string
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func newInstrument(provider, model, protocol string, logger zerolog.Logger) instrument {
	return instrument{
		provider: provider,
		model:    model,
		protocol: protocol,
		tracer:   otel.Tracer("github.com/erikwilensky/codecheck/pkg/ai/" + provider),
		logger:   logger.With().Str("component", "ai_client").Str("provider", provider).Logger(),
	}
}

func (i instrument) start(ctx context.Context, mode string) (context.Context, trace.Span, time.Time) {
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", i.provider),
		attribute.String("ai.model", i.model),
		attribute.String("ai.mode", mode),
	}
	if i.protocol != "" {
		attrs = append(attrs, attribute.String("ai.protocol", i.protocol))
	}
	ctx, span := i.tracer.Start(ctx, i.provider+"."+mode, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (i instrument) finish(span trace.Span, started time.Time, mode string, err error) {
	defer span.End()
	elapsed := time.Since(started)
	generationDuration.WithLabelValues(i.provider, i.model, mode).Observe(elapsed.Seconds())
	if err == nil {
		i.logger.Debug().Str("mode", mode).Dur("elapsed", elapsed).Msg("generation call completed")
		return
	}
	generationFailures.WithLabelValues(i.provider, i.model, failureReason(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	i.logger.Warn().Err(err).Str("mode", mode).Dur("elapsed", elapsed).Msg("generation call failed")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrProviderCallFailed):
		return "call_failed"
	default:
		return "other"
	}
}
