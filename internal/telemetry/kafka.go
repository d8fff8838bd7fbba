package telemetry

import (
	"context"

	"codeberg.org/mutker/aqimon/internal/errors"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaSink struct {
	writer messageWriter
}

// NewKafkaSink publishes readings to cfg.KafkaTopic, keyed by sensor.
func NewKafkaSink(cfg Config) Sink {
	cfg = cfg.withDefaults()

	return newKafkaSink(&kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	})
}

func newKafkaSink(writer messageWriter) *kafkaSink {
	return &kafkaSink{writer: writer}
}

func (*kafkaSink) Name() string {
	return "kafka"
}

func (s *kafkaSink) Publish(ctx context.Context, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}
	return nil
}

func (s *kafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}
