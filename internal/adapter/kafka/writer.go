package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/same-codec/internal/config"
	"github.com/couchcryptid/same-codec/internal/same"
)

// Writer publishes consolidated alerts to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteAlerts serializes and publishes alerts in a single WriteMessages call.
func (w *Writer) WriteAlerts(ctx context.Context, alerts []same.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message. The key is the
// reconciled wire string so re-decodes of the same transmission land on the
// same partition.
func serializeToMessage(alert same.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	eventCode := same.EOM
	if alert.Header != nil {
		eventCode = alert.Header.EventCode
	}
	return kafkago.Message{
		Key:   []byte(alert.Raw),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_code", Value: []byte(eventCode)},
			{Key: "burst_count", Value: []byte(strconv.Itoa(alert.BurstCount))},
			{Key: "received_at", Value: []byte(alert.LastSeen.Format(time.RFC3339))},
		},
	}, nil
}
