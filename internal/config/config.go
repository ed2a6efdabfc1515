package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all daemon settings, populated from environment variables.
type Config struct {
	KafkaBrokers    []string
	KafkaAlertTopic string
	KafkaEnabled    bool
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Audio input configuration.
	SampleRate   int
	SampleFormat string
	ChunkMS      int

	// Decoder tuning.
	MinConfidence        float64
	ConsolidationTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	consolidationTimeout, err := parseDuration("CONSOLIDATION_TIMEOUT", "6s")
	if err != nil {
		return nil, err
	}

	sampleRate, err := parseInt("SAMPLE_RATE", 22050)
	if err != nil {
		return nil, err
	}

	chunkMS, err := parseInt("CHUNK_MS", 100)
	if err != nil {
		return nil, err
	}

	minConfidence, err := parseFloat("MIN_CONFIDENCE", 0)
	if err != nil {
		return nil, err
	}

	kafkaBrokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:    kafkaBrokers,
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "same-alerts"),
		KafkaEnabled:    kafkaEnabled,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SampleRate:   sampleRate,
		SampleFormat: envOrDefault("SAMPLE_FORMAT", "s16le"),
		ChunkMS:      chunkMS,

		MinConfidence:        minConfidence,
		ConsolidationTimeout: consolidationTimeout,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when Kafka is enabled")
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 48000 {
		return nil, errors.New("SAMPLE_RATE must be between 8000 and 48000")
	}
	if cfg.SampleFormat != "s16le" && cfg.SampleFormat != "f32le" {
		return nil, errors.New("SAMPLE_FORMAT must be s16le or f32le")
	}
	if cfg.ChunkMS <= 0 {
		return nil, errors.New("CHUNK_MS must be positive")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, errors.New("MIN_CONFIDENCE must be between 0 and 1")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
