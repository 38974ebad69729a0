package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/catalog-orders/internal/port"
)

const (
	defaultTxTimeout  = 5 * time.Second
	sideEffectTimeout = 3 * time.Second
)

var tracer = otel.Tracer("github.com/rl1809/catalog-orders/internal/core/service")

type options struct {
	logger    *zap.Logger
	cache     port.CacheRepository
	events    port.EventPublisher
	clock     func() time.Time
	newID     func() string
	txTimeout time.Duration
}

// Option configures the services in this package.
type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCache enables the product read cache and order idempotency keys.
func WithCache(cache port.CacheRepository) Option {
	return func(o *options) { o.cache = cache }
}

func WithEventPublisher(events port.EventPublisher) Option {
	return func(o *options) { o.events = events }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithTxTimeout bounds every write transaction. A transaction that runs past
// it is rolled back.
func WithTxTimeout(d time.Duration) Option {
	return func(o *options) { o.txTimeout = d }
}

func newOptions(opts []Option) options {
	o := options{
		logger:    zap.NewNop(),
		clock:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:     func() string { return uuid.New().String() },
		txTimeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// detached returns a context for cache and event work that follows a
// transaction. It outlives the caller's cancellation but not its values,
// and has its own deadline.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
