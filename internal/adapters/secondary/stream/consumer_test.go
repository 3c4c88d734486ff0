package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// fakeClock fires immediately and records every requested delay
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

type countingMetrics struct {
	decodeFailures atomic.Int64
	reconnects     atomic.Int64
}

func (m *countingMetrics) RecordEvent(entities.EventKind)         {}
func (m *countingMetrics) RecordBroadcast(entities.BroadcastType) {}
func (m *countingMetrics) RecordDecodeFailure()                   { m.decodeFailures.Add(1) }
func (m *countingMetrics) RecordReconnect()                       { m.reconnects.Add(1) }
func (m *countingMetrics) RecordTabAttached()                     {}
func (m *countingMetrics) RecordTabDetached()                     {}

func writeRecord(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	assert.NoError(t, err)
	w.(http.Flusher).Flush()
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()
}

func newTestConsumer(clock *fakeClock, metrics *countingMetrics) *Consumer {
	opts := []Option{WithClock(clock), WithBackoff(time.Second, 30*time.Second)}
	if metrics != nil {
		opts = append(opts, WithMetrics(metrics))
	}
	return NewConsumer(http.DefaultClient, opts...)
}

func nextWithTimeout(t *testing.T, s interface {
	Next(context.Context) (entities.UpstreamEvent, error)
}) entities.UpstreamEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, err := s.Next(ctx)
	require.NoError(t, err)
	return event
}

func TestStream_DeliversEventsInOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		startStream(w)
		writeRecord(t, w, `{"type":"ping","versionId":"abc123"}`)
		writeRecord(t, w, `{"type":"reload","path":"/index.html"}`)
		<-r.Context().Done()
	}))
	defer ts.Close()

	clock := &fakeClock{}
	s := newTestConsumer(clock, nil).Open(ts.URL)
	defer func() { _ = s.Close() }()

	assert.Equal(t, entities.NewPingEvent("abc123"), nextWithTimeout(t, s))
	assert.Equal(t, entities.NewReloadEvent("/index.html"), nextWithTimeout(t, s))
	assert.Equal(t, entities.ConnOpen, s.State())
	assert.Empty(t, clock.Delays())
}

func TestStream_OpenIsLazy(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		startStream(w)
		<-r.Context().Done()
	}))
	defer ts.Close()

	s := newTestConsumer(&fakeClock{}, nil).Open(ts.URL)
	defer func() { _ = s.Close() }()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), requests.Load())
	assert.Equal(t, entities.ConnIdle, s.State())
}

func TestStream_ReconnectsTransparently(t *testing.T) {
	var attempts atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startStream(w)
		switch attempts.Add(1) {
		case 1:
			writeRecord(t, w, `{"type":"ping","versionId":"v1"}`)
			// Returning drops the connection
		default:
			writeRecord(t, w, `{"type":"reload","path":"/app.js"}`)
			writeRecord(t, w, `{"type":"ping","versionId":"v1"}`)
			<-r.Context().Done()
		}
	}))
	defer ts.Close()

	clock := &fakeClock{}
	metrics := &countingMetrics{}
	s := newTestConsumer(clock, metrics).Open(ts.URL)
	defer func() { _ = s.Close() }()

	events := []entities.UpstreamEvent{
		nextWithTimeout(t, s),
		nextWithTimeout(t, s),
		nextWithTimeout(t, s),
	}

	assert.Equal(t, []entities.UpstreamEvent{
		entities.NewPingEvent("v1"),
		entities.NewReloadEvent("/app.js"),
		entities.NewPingEvent("v1"),
	}, events)
	assert.Equal(t, int64(2), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second}, clock.Delays())
	assert.Equal(t, int64(1), metrics.reconnects.Load())
}

func TestStream_RetriesNonSuccessStatus(t *testing.T) {
	var attempts atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
			return
		}
		startStream(w)
		writeRecord(t, w, `{"type":"reload","path":"x.html"}`)
		<-r.Context().Done()
	}))
	defer ts.Close()

	clock := &fakeClock{}
	s := newTestConsumer(clock, nil).Open(ts.URL)
	defer func() { _ = s.Close() }()

	assert.Equal(t, entities.NewReloadEvent("x.html"), nextWithTimeout(t, s))
	assert.Equal(t, []time.Duration{time.Second}, clock.Delays())
}

func TestStream_RetriesWhenHeadersNeverArrive(t *testing.T) {
	var attempts atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// Accept the request but never answer it
			<-r.Context().Done()
			return
		}
		startStream(w)
		writeRecord(t, w, `{"type":"reload","path":"/late.js"}`)
		<-r.Context().Done()
	}))
	defer ts.Close()

	client := ports.NewStreamingHTTPClient(ports.HTTPClientConfig{
		DialTimeout:           time.Second,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	})
	clock := &fakeClock{}
	s := NewConsumer(client, WithClock(clock), WithBackoff(time.Second, 30*time.Second)).Open(ts.URL)
	defer func() { _ = s.Close() }()

	assert.Equal(t, entities.NewReloadEvent("/late.js"), nextWithTimeout(t, s))
	assert.Equal(t, int64(2), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second}, clock.Delays())
}

func TestStream_BackoffEscalatesAndResetsOnReceive(t *testing.T) {
	var attempts atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch attempts.Add(1) {
		case 1, 2, 3, 5:
			http.Error(w, "down", http.StatusBadGateway)
		case 4:
			startStream(w)
			writeRecord(t, w, `{"type":"ping","versionId":"a"}`)
		default:
			startStream(w)
			writeRecord(t, w, `{"type":"ping","versionId":"b"}`)
			<-r.Context().Done()
		}
	}))
	defer ts.Close()

	clock := &fakeClock{}
	s := newTestConsumer(clock, nil).Open(ts.URL)
	defer func() { _ = s.Close() }()

	assert.Equal(t, entities.NewPingEvent("a"), nextWithTimeout(t, s))
	assert.Equal(t, entities.NewPingEvent("b"), nextWithTimeout(t, s))

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second,
		time.Second, 2 * time.Second,
	}, clock.Delays())
}

func TestStream_DropsUndecodableRecords(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startStream(w)
		writeRecord(t, w, `{not json`)
		writeRecord(t, w, `{"type":"mystery"}`)
		writeRecord(t, w, `{"type":"ping"}`)
		writeRecord(t, w, `{"type":"reload","path":"/ok.css"}`)
		<-r.Context().Done()
	}))
	defer ts.Close()

	clock := &fakeClock{}
	metrics := &countingMetrics{}
	s := newTestConsumer(clock, metrics).Open(ts.URL)
	defer func() { _ = s.Close() }()

	assert.Equal(t, entities.NewReloadEvent("/ok.css"), nextWithTimeout(t, s))
	assert.Equal(t, int64(3), metrics.decodeFailures.Load())
	assert.Empty(t, clock.Delays())
}

func TestStream_EventNameDiscriminator(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startStream(w)
		_, _ = fmt.Fprint(w, "event: ping\ndata: {\"versionId\":\"z9\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer ts.Close()

	s := newTestConsumer(&fakeClock{}, nil).Open(ts.URL)
	defer func() { _ = s.Close() }()

	assert.Equal(t, entities.NewPingEvent("z9"), nextWithTimeout(t, s))
}

func TestStream_CloseUnblocksNext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startStream(w)
		<-r.Context().Done()
	}))
	defer ts.Close()

	clock := &fakeClock{}
	s := newTestConsumer(clock, nil).Open(ts.URL)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrStreamClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}

	assert.Equal(t, entities.ConnClosed, s.State())
	assert.Empty(t, clock.Delays(), "no reconnect after close")

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.NoError(t, s.Close(), "close is idempotent")
}

func TestStream_ContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startStream(w)
		<-r.Context().Done()
	}))
	defer ts.Close()

	s := newTestConsumer(&fakeClock{}, nil).Open(ts.URL)
	defer func() { _ = s.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
