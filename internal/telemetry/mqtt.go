package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const mqttDisconnectQuiesce = 250

// mqttPublisher is the subset of mqtt.Client the sink uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type mqttSink struct {
	client  mqttPublisher
	topic   string
	timeout time.Duration
}

// NewMQTTSink connects to the broker and publishes readings with QoS 1.
func NewMQTTSink(cfg Config) (Sink, error) {
	cfg = cfg.withDefaults()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("aqimon-" + uuid.NewString()).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, errors.New().WithData(ErrConnectFailed, cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.New().Wrap(ErrConnectFailed, err).WithData(cfg.MQTTBroker)
	}

	return newMQTTSink(client, cfg.MQTTTopic, cfg.ConnectTimeout), nil
}

func newMQTTSink(client mqttPublisher, topic string, timeout time.Duration) *mqttSink {
	return &mqttSink{client: client, topic: topic, timeout: timeout}
}

func (*mqttSink) Name() string {
	return "mqtt"
}

func (s *mqttSink) Publish(ctx context.Context, _ string, payload []byte) error {
	errFactory := errors.New()

	token := s.client.Publish(s.topic, mqttQoS, false, payload)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	case <-timer.C:
		return errFactory.WithData(ErrOperationTimeout, s.topic)
	}

	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublishFailed, err).WithData(s.topic)
	}

	return nil
}

func (s *mqttSink) Close() error {
	s.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}
