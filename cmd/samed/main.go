// Command samed is the decode daemon: it reads raw PCM from stdin, decodes
// alert transmissions, and publishes consolidated alerts to Kafka while
// serving health, metrics, and alert query endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/same-codec/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/same-codec/internal/adapter/kafka"
	"github.com/couchcryptid/same-codec/internal/adapter/pcm"
	"github.com/couchcryptid/same-codec/internal/codec"
	"github.com/couchcryptid/same-codec/internal/config"
	"github.com/couchcryptid/same-codec/internal/observability"
	"github.com/couchcryptid/same-codec/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	format, err := pcm.ParseFormat(cfg.SampleFormat)
	if err != nil {
		logger.Error("invalid sample format", "error", err)
		os.Exit(1)
	}
	chunkSamples := cfg.SampleRate * cfg.ChunkMS / 1000
	source, err := pcm.NewReader(os.Stdin, format, chunkSamples)
	if err != nil {
		logger.Error("failed to open audio source", "error", err)
		os.Exit(1)
	}

	decoder, err := codec.NewDecoder(codec.Options{
		SampleRate:    cfg.SampleRate,
		Clock:         clockwork.NewRealClock(),
		Logger:        logger,
		Timeout:       cfg.ConsolidationTimeout,
		MinConfidence: cfg.MinConfidence,
		Metrics:       metrics,
	})
	if err != nil {
		logger.Error("failed to build decoder", "error", err)
		os.Exit(1)
	}

	// Kafka is optional: without brokers alerts are logged and kept for
	// the HTTP alerts endpoint only.
	var sink pipeline.AlertSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka sink enabled", "topic", cfg.KafkaAlertTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka sink disabled")
	}

	p := pipeline.New(source, decoder, sink, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- p.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-pipelineDone:
		if err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
