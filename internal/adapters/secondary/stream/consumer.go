package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// ErrStreamClosed is returned by Next after Close
var ErrStreamClosed = ports.ErrStreamClosed

// Consumer opens resilient server-sent event streams
type Consumer struct {
	client    ports.HTTPClient
	clock     ports.TimeProvider
	logger    *slog.Logger
	metrics   ports.RelayMetrics
	baseDelay time.Duration
	maxDelay  time.Duration
}

// Option configures a Consumer
type Option func(*Consumer)

// WithLogger sets the consumer logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the time source used for backoff waits
func WithClock(clock ports.TimeProvider) Option {
	return func(c *Consumer) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithBackoff sets the base and maximum reconnect delays
func WithBackoff(base, max time.Duration) Option {
	return func(c *Consumer) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics ports.RelayMetrics) Option {
	return func(c *Consumer) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// NewConsumer creates a stream consumer using client for requests
func NewConsumer(client ports.HTTPClient, opts ...Option) *Consumer {
	c := &Consumer{
		client:    client,
		clock:     ports.NewRealTimeProvider(),
		logger:    slog.Default(),
		metrics:   ports.NopMetrics{},
		baseDelay: time.Second,
		maxDelay:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "stream_consumer")
	return c
}

// Open returns a lazy stream for url. No request is made until the first Next.
func (c *Consumer) Open(url string) ports.EventStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		consumer: c,
		url:      url,
		logger:   c.logger.With("events_url", url),
		backoff:  NewBackoff(c.baseDelay, c.maxDelay),
		ctx:      ctx,
		cancel:   cancel,
		state:    entities.ConnIdle,
	}
}

// Stream is an effectively infinite sequence of upstream events. It reconnects
// on transport failure without the caller's involvement.
type Stream struct {
	consumer *Consumer
	url      string
	logger   *slog.Logger
	backoff  *Backoff

	// ctx spans the stream's lifetime and is cancelled by Close
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// nextMu serializes Next; reader and connected belong to its holder
	nextMu    sync.Mutex
	reader    *RecordReader
	connected bool

	mu         sync.Mutex
	state      entities.ConnState
	body       io.ReadCloser
	connCancel context.CancelFunc
}

// Next blocks until the next event is decoded. It returns ErrStreamClosed
// after Close and ctx.Err() when ctx ends; cancelling ctx drops the current
// connection, and a later Next reconnects.
func (s *Stream) Next(ctx context.Context) (entities.UpstreamEvent, error) {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()

	for {
		if err := s.done(ctx); err != nil {
			return entities.UpstreamEvent{}, err
		}

		if s.reader == nil {
			if err := s.connect(ctx); err != nil {
				if s.done(ctx) != nil {
					continue
				}
				s.logger.Warn("Upstream connection failed", slog.String("error", err.Error()))
				if err := s.wait(ctx); err != nil {
					return entities.UpstreamEvent{}, err
				}
				continue
			}
		}

		record, err := s.read(ctx)
		if err != nil {
			s.disconnect()
			if s.done(ctx) != nil {
				continue
			}
			s.logger.Warn("Upstream stream interrupted", slog.String("error", err.Error()))
			if err := s.wait(ctx); err != nil {
				return entities.UpstreamEvent{}, err
			}
			continue
		}

		// Any received record proves connectivity
		s.backoff.Reset()

		event, err := entities.DecodeUpstreamEvent(record.Event, record.Data)
		if err != nil {
			s.consumer.metrics.RecordDecodeFailure()
			s.logger.Warn("Dropping undecodable upstream record",
				slog.String("error", err.Error()),
				slog.String("event", record.Event),
				slog.String("id", record.ID),
			)
			continue
		}

		return event, nil
	}
}

// Close abandons the stream. It is safe to call concurrently with Next and
// more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = entities.ConnClosed
		if s.body != nil {
			_ = s.body.Close()
		}
	})
	return nil
}

// State reports the current connection state
func (s *Stream) State() entities.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// done reports why Next must stop, if it must
func (s *Stream) done(ctx context.Context) error {
	select {
	case <-s.ctx.Done():
		return ErrStreamClosed
	default:
	}
	return ctx.Err()
}

func (s *Stream) setState(state entities.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == entities.ConnClosed {
		return
	}
	s.state = state
}

// connect issues the streaming request and installs the record reader
func (s *Stream) connect(ctx context.Context) error {
	s.setState(entities.ConnConnecting)

	connCtx, connCancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, connCancel)
	defer stop()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, s.url, nil)
	if err != nil {
		connCancel()
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.consumer.client.Do(req)
	if err != nil {
		connCancel()
		return fmt.Errorf("connecting: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		connCancel()
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	s.mu.Lock()
	s.body = resp.Body
	s.connCancel = connCancel
	if s.state != entities.ConnClosed {
		s.state = entities.ConnOpen
	}
	s.mu.Unlock()

	s.reader = NewRecordReader(resp.Body)

	if s.connected {
		s.consumer.metrics.RecordReconnect()
		s.logger.Info("Reconnected to upstream event stream")
	} else {
		s.logger.Info("Connected to upstream event stream")
	}
	s.connected = true

	return nil
}

// read returns the next record; cancelling ctx aborts the blocked read
func (s *Stream) read(ctx context.Context) (Record, error) {
	s.mu.Lock()
	connCancel := s.connCancel
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, connCancel)
	defer stop()

	return s.reader.Next()
}

// disconnect tears down the current connection
func (s *Stream) disconnect() {
	s.reader = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if s.body != nil {
		_ = s.body.Close()
		s.body = nil
	}
}

// wait sleeps for the next backoff delay
func (s *Stream) wait(ctx context.Context) error {
	delay := s.backoff.Next()
	s.setState(entities.ConnBackoff)

	s.logger.Info("Waiting before reconnecting",
		slog.Int("attempt", s.backoff.Attempt()),
		slog.Duration("delay", delay),
	)

	select {
	case <-s.ctx.Done():
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-s.consumer.clock.After(delay):
		return nil
	}
}

// Ensure Consumer implements ports.StreamOpener
var _ ports.StreamOpener = (*Consumer)(nil)
