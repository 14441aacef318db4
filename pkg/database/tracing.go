package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hoffnungslabor/mediable/pkg/database"

// slowQueries is package-global because TraceQuery is called from every
// repository method and threading a config through all of them buys nothing.
var slowQueries = struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}{}

// SetSlowQueryLogging enables warning logs for queries that run longer than
// threshold. A zero threshold or nil logger turns the logging off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueries.mu.Lock()
	defer slowQueries.mu.Unlock()
	slowQueries.threshold = threshold
	slowQueries.logger = logger
}

func logIfSlow(ctx context.Context, operation, statement string, elapsed time.Duration, err error) {
	slowQueries.mu.RLock()
	threshold, logger := slowQueries.threshold, slowQueries.logger
	slowQueries.mu.RUnlock()

	if threshold <= 0 || logger == nil || elapsed < threshold {
		return
	}

	attrs := []any{
		slog.String("operation", operation),
		slog.String("statement", statement),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.WarnContext(ctx, "slow query detected", attrs...)
}

// TraceQuery opens a client span for one database operation and returns the
// context carrying it plus a completion callback:
//
//	ctx, end := database.TraceQuery(ctx, "FindAll", query)
//	defer func() { end(err) }()
//
// The callback records the error on the span, ends it, and emits a slow-query
// warning when SetSlowQueryLogging is active and the threshold was exceeded.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		logIfSlow(ctx, operation, statement, time.Since(start), err)
	}
}
