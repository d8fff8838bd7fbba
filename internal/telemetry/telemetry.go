package telemetry

import (
	"context"
	"encoding/json"

	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/reading"
)

type service struct {
	sinks  []Sink
	key    string
	logger logger.Logger
}

// No-op implementation
type noopCollector struct{}

// NewService connects every sink enabled in cfg. A sink that cannot connect
// is skipped and logged. Without any sink it returns a collector that
// discards readings.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log = log.WithComponent("telemetry")

	if !cfg.Enabled() {
		log.Debug().Msg("Reading export disabled, using no-op collector")
		return noopCollector{}, nil
	}

	var sinks []Sink
	if cfg.MQTTBroker != "" {
		sink, err := NewMQTTSink(cfg)
		if err != nil {
			log.ErrorWithCode(errFactory.Wrap(errors.ErrInitFailed, err)).
				Str("mqtt_broker", cfg.MQTTBroker).
				Msg("MQTT broker unreachable, exporting without MQTT")
		} else {
			sinks = append(sinks, sink)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, NewKafkaSink(cfg))
	}
	if len(sinks) == 0 {
		return noopCollector{}, nil
	}

	log.Info().
		Str("mqtt_broker", cfg.MQTTBroker).
		Strs("kafka_brokers", cfg.KafkaBrokers).
		Int("sinks", len(sinks)).
		Msg("Reading export initialized")

	return NewCollector(cfg.Key, log, sinks...), nil
}

// NewCollector fans readings out to the given sinks.
func NewCollector(key string, log logger.Logger, sinks ...Sink) Collector {
	return &service{
		sinks:  sinks,
		key:    key,
		logger: log,
	}
}

// Export publishes r to every sink. A failing sink does not stop delivery
// to the others; all failures are returned together.
func (s *service) Export(ctx context.Context, r reading.Reading) error {
	errFactory := errors.New()

	payload, err := json.Marshal(NewPayload(r))
	if err != nil {
		return errFactory.Wrap(ErrEncodeFailed, err)
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, s.key, payload); err != nil {
			errs = append(errs, errFactory.Wrap(ErrExportFailed, err).WithData(sink.Name()))
			continue
		}
		s.logger.Debug().Str("sink", sink.Name()).Msg("Reading exported")
	}

	return errors.Join(errs...)
}

func (s *service) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (noopCollector) Export(context.Context, reading.Reading) error {
	return nil
}

func (noopCollector) Close() error {
	return nil
}
