package eventpublisher

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
)

// Sink receives change events from the feed.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// Feed buffers change events from the Bank and forwards them to sinks on
// a background worker. It implements usecase.ChangePublisher.
type Feed struct {
	events  chan domain.ChangeEvent
	sinks   []Sink
	logger  zerolog.Logger
	metrics *metrics.Metrics

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// Config for Feed.
type Config struct {
	Sinks      []Sink
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	BufferSize int // events held before Publish starts dropping
	MaxRetries int // per sink and event
}

// NewFeed creates a new Feed.
func NewFeed(cfg Config) *Feed {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &Feed{
		events:          make(chan domain.ChangeEvent, cfg.BufferSize),
		sinks:           cfg.Sinks,
		logger:          cfg.Logger.With().Str("component", "feed").Logger(),
		metrics:         cfg.Metrics,
		maxRetries:      uint64(cfg.MaxRetries),
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
	}
}

// Publish enqueues event without blocking. A full buffer drops the event.
func (f *Feed) Publish(event domain.ChangeEvent) {
	select {
	case f.events <- event:
	default:
		if f.metrics != nil {
			f.metrics.FeedDropped.WithLabelValues("buffer").Inc()
		}
		f.logger.Warn().
			Int64("seq", event.Seq).
			Str("event_type", event.Type).
			Msg("feed buffer full, dropping event")
	}
}

// Start delivers queued events until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	f.logger.Info().
		Strs("sinks", names).
		Int("buffer", cap(f.events)).
		Msg("change feed started")

	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Msg("change feed shutting down")
			return ctx.Err()
		case event := <-f.events:
			f.dispatch(ctx, event)
		}
	}
}

// dispatch hands event to every sink. A failing sink does not stop the
// others.
func (f *Feed) dispatch(ctx context.Context, event domain.ChangeEvent) {
	for _, sink := range f.sinks {
		if err := f.deliver(ctx, sink, event); err != nil {
			if f.metrics != nil {
				f.metrics.FeedDropped.WithLabelValues(sink.Name()).Inc()
			}
			f.logger.Error().
				Err(err).
				Str("sink", sink.Name()).
				Int64("seq", event.Seq).
				Str("event_type", event.Type).
				Msg("failed to deliver event")
			continue
		}
		if f.metrics != nil {
			f.metrics.FeedEvents.WithLabelValues(sink.Name()).Inc()
		}
	}
}

func (f *Feed) deliver(ctx context.Context, sink Sink, event domain.ChangeEvent) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.MaxInterval = f.maxInterval

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := sink.Publish(ctx, event)
		if err != nil && attempt <= int(f.maxRetries) {
			f.logger.Warn().
				Err(err).
				Str("sink", sink.Name()).
				Int("attempt", attempt).
				Msg("sink publish failed, retrying")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, f.maxRetries), ctx))
}

// LogSink writes every event to the logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, event domain.ChangeEvent) error {
	collections := make([]string, 0, len(event.Collections))
	for _, c := range event.Collections {
		collections = append(collections, string(c))
	}

	s.logger.Info().
		Int64("seq", event.Seq).
		Str("event_type", event.Type).
		Str("aggregate_id", event.AggregateID).
		Strs("collections", collections).
		Time("at", event.At).
		Msg("change event")

	return nil
}
