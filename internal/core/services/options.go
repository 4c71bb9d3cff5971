package services

import (
	"errors"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"
	"bloodbank/internal/pkg/clock"
	"bloodbank/internal/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "bloodbank/services"

// options are the ambient collaborators every service accepts
type options struct {
	logger  *zap.Logger
	clock   clock.Clock
	metrics *metrics.Metrics
	events  EventPublisher
	tracer  trace.Tracer
}

// Option configures a service
type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithEvents(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.events = p
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		clock:  clock.System(),
		events: nopPublisher{},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// notFound turns a repository miss into a domain NotFoundError and passes anything else through
func notFound(err error, kind, id string) error {
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return domain.NewNotFoundError(kind, id)
	}
	return err
}
