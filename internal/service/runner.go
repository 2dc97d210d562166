package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

const tracerName = "github.com/spec-kit/maintenance-service/internal/service"

// RetryPolicy bounds automatic retries of operations that hit a
// concurrency conflict. No other error is retried.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries up to three attempts in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

// runner wraps each operation in one storage transaction with tracing,
// metrics and conflict retries. fn must not keep state between attempts.
type runner struct {
	store   repository.Store
	retry   RetryPolicy
	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func newRunner(store repository.Store, retry RetryPolicy, logger *zap.Logger, metrics *observability.Metrics) *runner {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runner{
		store:   store,
		retry:   retry,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

func (r *runner) run(ctx context.Context, op string, fn repository.TxFunc) error {
	ctx, span := r.tracer.Start(ctx, "maintenance."+op)
	defer span.End()

	b := backoff.NewExponentialBackOff()
	if r.retry.InitialInterval > 0 {
		b.InitialInterval = r.retry.InitialInterval
	}
	if r.retry.MaxInterval > 0 {
		b.MaxInterval = r.retry.MaxInterval
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := r.store.WithinTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, domain.ErrConcurrencyConflict):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.retry.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.metrics.RecordRetry(op)
			r.logger.Debug("retrying after conflict",
				zap.String("operation", op),
				zap.Int("attempt", attempts),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)

	span.SetAttributes(attribute.Int("maintenance.attempts", attempts))
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if outcome == string(domain.KindInternal) || outcome == string(domain.KindConcurrencyConflict) {
			r.logger.Warn("operation failed",
				zap.String("operation", op),
				zap.Int("attempts", attempts),
				zap.Error(err))
		}
	}
	r.metrics.RecordOperation(op, outcome)
	return err
}
