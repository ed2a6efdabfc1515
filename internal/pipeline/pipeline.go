// Package pipeline runs the streaming decode loop: read PCM chunks, feed the
// decoder, and hand finished alerts to a sink.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/same-codec/internal/codec"
	"github.com/couchcryptid/same-codec/internal/observability"
	"github.com/couchcryptid/same-codec/internal/same"
)

// recentCap bounds the in-memory log served by the HTTP alerts endpoint.
const recentCap = 100

// ChunkSource supplies successive chunks of mono float PCM. It returns
// io.EOF when the stream ends.
type ChunkSource interface {
	Read() ([]float64, error)
}

// AlertSink receives finished alerts, e.g. a Kafka producer.
type AlertSink interface {
	WriteAlerts(ctx context.Context, alerts []same.Alert) error
}

// Pipeline orchestrates the read-decode-publish loop.
type Pipeline struct {
	source  ChunkSource
	decoder *codec.Decoder
	sink    AlertSink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu     sync.Mutex
	recent []same.Alert
}

// New creates a Pipeline. sink may be nil; alerts are then only logged and
// kept in the recent buffer.
func New(source ChunkSource, decoder *codec.Decoder, sink AlertSink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:  source,
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the pipeline has decoded at least one
// chunk of audio.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("decoder has not processed any audio yet")
	}
	return nil
}

// Recent returns the most recently decoded alerts, newest last.
func (p *Pipeline) Recent() []same.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]same.Alert, len(p.recent))
	copy(out, p.recent)
	return out
}

// Run executes the decode loop until the context is cancelled or the source
// reaches end of stream. Pending consolidations are flushed before returning
// so partial receptions are not lost.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("decode pipeline started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("decode pipeline stopping", "reason", ctx.Err())
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.emit(flushCtx, p.decoder.Close())
			cancel()
			return nil
		default:
		}

		chunk, err := p.source.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Error("read audio chunk failed", "error", err)
			}
			p.emit(ctx, p.decoder.Close())
			if errors.Is(err, io.EOF) {
				p.logger.Info("audio stream ended")
				return nil
			}
			return err
		}

		p.emit(ctx, p.decoder.Write(chunk))
		p.ready.Store(true)
	}
}

// emit records, logs, and publishes finished alerts.
func (p *Pipeline) emit(ctx context.Context, alerts []same.Alert) {
	if len(alerts) == 0 {
		return
	}

	for _, alert := range alerts {
		p.logger.Info("alert decoded",
			"raw", alert.Raw,
			"eom", alert.EOM,
			"confidence", alert.Confidence,
			"burst_count", alert.BurstCount,
		)
	}

	p.mu.Lock()
	p.recent = append(p.recent, alerts...)
	if n := len(p.recent); n > recentCap {
		p.recent = append(p.recent[:0], p.recent[n-recentCap:]...)
	}
	p.mu.Unlock()

	if p.sink == nil {
		return
	}
	p.publish(ctx, alerts)
}

// publish writes alerts to the sink, retrying with exponential backoff so a
// short broker outage does not drop a live alert.
func (p *Pipeline) publish(ctx context.Context, alerts []same.Alert) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		err := p.sink.WriteAlerts(ctx, alerts)
		if err == nil {
			if p.metrics != nil {
				p.metrics.AlertsPublished.Add(float64(len(alerts)))
			}
			return
		}

		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		p.logger.Error("publish alerts failed", "error", err, "count", len(alerts))

		if ctx.Err() != nil || !sleepWithContext(ctx, backoff) {
			p.logger.Warn("dropping alerts after cancelled publish", "count", len(alerts))
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
