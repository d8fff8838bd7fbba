package telemetry

import (
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
)

const (
	defaultMQTTTopic      = "aqimon/readings"
	defaultKafkaTopic     = "aqimon.readings"
	defaultConnectTimeout = 10 * time.Second
	mqttQoS               = 1
)

type Config struct {
	// MQTTBroker enables the MQTT sink, e.g. tcp://localhost:1883.
	MQTTBroker string
	MQTTTopic  string
	// KafkaBrokers enables the Kafka sink.
	KafkaBrokers []string
	KafkaTopic   string
	// Key identifies the sensor in exported messages.
	Key            string
	ConnectTimeout time.Duration
}

func (c Config) Enabled() bool {
	return c.MQTTBroker != "" || len(c.KafkaBrokers) > 0
}

func (c Config) withDefaults() Config {
	if c.MQTTTopic == "" {
		c.MQTTTopic = defaultMQTTTopic
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = defaultKafkaTopic
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}

func (c Config) Validate() error {
	for _, broker := range c.KafkaBrokers {
		if broker == "" {
			return errors.New().WithData(ErrInvalidConfig, "empty kafka broker address")
		}
	}
	return nil
}
