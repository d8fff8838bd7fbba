package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/aqimon/internal/api"
	"codeberg.org/mutker/aqimon/internal/config"
	"codeberg.org/mutker/aqimon/internal/device"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/metrics"
	"codeberg.org/mutker/aqimon/internal/pid"
	"codeberg.org/mutker/aqimon/internal/reading"
	"codeberg.org/mutker/aqimon/internal/retention"
	"codeberg.org/mutker/aqimon/internal/sensor"
	"codeberg.org/mutker/aqimon/internal/storage"
	"codeberg.org/mutker/aqimon/internal/telemetry"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pid.Write(cfg.PIDFile); err != nil {
		fatal(err, "Failed to write PID file")
	}

	err := run(ctx)

	if rmErr := pid.Remove(cfg.PIDFile); rmErr != nil {
		logger.Warn().Err(rmErr).Msg("Failed to remove PID file")
	}
	if err != nil {
		fatal(err, "aqimon exited with error")
	}

	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	log := logger.Default()

	store, err := storage.Open(ctx, storage.Config{DBPath: cfg.DatabasePath}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}()

	source := newSource(log)
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close sensor")
		}
	}()

	aggregator, err := reading.NewAggregator(source, cfg.SampleCountPerRead, cfg.SampleDelay())
	if err != nil {
		return err
	}

	m := metrics.New()

	exporter, err := telemetry.NewService(telemetry.Config{
		MQTTBroker:   cfg.MQTTBroker,
		MQTTTopic:    cfg.MQTTTopic,
		KafkaBrokers: cfg.KafkaBrokerList(),
		KafkaTopic:   cfg.KafkaTopic,
		Key:          cfg.USBPath,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := exporter.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close telemetry")
		}
	}()

	scheduler, err := device.New(device.Config{
		PollInterval: cfg.PollInterval(),
		WarmUp:       cfg.WarmUp(),
	}, aggregator, newPowerCycler(log), store,
		device.WithLogger(log),
		device.WithExporter(exporter),
		device.WithRecorder(m))
	if err != nil {
		return err
	}

	if cfg.Once {
		scheduler.Poll(ctx)
		if status := scheduler.Status(); !status.Alive() {
			return errors.New().WithMessage(errors.ErrHardwareFault, status.LastException)
		}
		return nil
	}

	manager, err := retention.New(retention.Policy{
		Window:   cfg.RetentionWindow(),
		Interval: cfg.PurgeInterval(),
	}, store,
		retention.WithLogger(log),
		retention.WithRecorder(m))
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.ServerHost, cfg.ServerPort, api.NewRouter(scheduler, m, log), log)

	logger.Info().
		Str("reader", cfg.ReaderType).
		Str("power_control", cfg.PowerControl).
		Str("database", cfg.DatabasePath).
		Msg("aqimon started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return manager.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })

	return g.Wait()
}

func newSource(log logger.Logger) sensor.SampleSource {
	if cfg.IsRealReader() {
		return sensor.NewSDS011(sensor.SDS011Config{
			Path:        cfg.USBPath,
			CommandWait: cfg.CommandWait(),
		}, log)
	}

	logger.Warn().Msg("Using mock sensor readings")
	return sensor.NewMock()
}

func newPowerCycler(log logger.Logger) sensor.PowerCycler {
	if cfg.PowerControl == config.PowerUhubctl {
		return sensor.NewUhubctl(sensor.UhubctlConfig{
			Path:        cfg.UhubctlPath,
			Location:    cfg.UhubctlLocation,
			Port:        cfg.UhubctlPort,
			OffDuration: cfg.HubOffDuration(),
		}, log)
	}

	return sensor.NoopCycler{}
}

func fatal(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Msg(msg)
	}
	logger.Fatal().Err(err).Msg(msg)
}
