package device

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/aqimon/internal/aqi"
	"codeberg.org/mutker/aqimon/internal/clock"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/reading"
	"codeberg.org/mutker/aqimon/internal/sensor"
	"github.com/google/uuid"
)

const exportTimeout = 10 * time.Second

type Config struct {
	// PollInterval separates the end of one cycle from the start of the next.
	PollInterval time.Duration
	// WarmUp is how long the sensor settles after a power cycle before
	// samples are trusted.
	WarmUp time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.PollInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PollInterval)
	}
	if c.WarmUp < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.WarmUp)
	}

	return nil
}

// Scheduler owns the device state machine. It power cycles the sensor,
// aggregates a reading, computes its AQI and persists it once per poll
// interval, publishing a StatusSnapshot after every transition.
type Scheduler struct {
	cfg        Config
	aggregator Aggregator
	power      sensor.PowerCycler
	store      Store
	exporter   Exporter
	recorder   Recorder
	logger     logger.Logger
	now        clock.NowFunc
	sleep      clock.SleepFunc

	status atomic.Pointer[StatusSnapshot]
	last   atomic.Pointer[reading.Reading]
}

type Option func(*Scheduler)

func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		s.logger = log
	}
}

func WithExporter(exporter Exporter) Option {
	return func(s *Scheduler) {
		s.exporter = exporter
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = recorder
	}
}

func WithClock(now clock.NowFunc) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithSleep(sleep clock.SleepFunc) Option {
	return func(s *Scheduler) {
		s.sleep = sleep
	}
}

func New(cfg Config, aggregator Aggregator, power sensor.PowerCycler, store Store, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:        cfg,
		aggregator: aggregator,
		power:      power,
		store:      store,
		exporter:   noopExporter{},
		recorder:   noopRecorder{},
		logger:     logger.Nop(),
		now:        time.Now,
		sleep:      clock.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")

	s.status.Store(&StatusSnapshot{
		State:             StateIdle,
		NextScheduledTime: s.now().Add(cfg.PollInterval),
	})
	s.recorder.StateChanged(StateIdle.String())

	return s, nil
}

// Status returns the latest published snapshot. It never blocks.
func (s *Scheduler) Status() StatusSnapshot {
	return *s.status.Load()
}

// Readings returns the persisted readings inside w.
func (s *Scheduler) Readings(ctx context.Context, w reading.Window) ([]reading.Reading, error) {
	return s.store.Query(ctx, w)
}

// Latest returns the most recent persisted reading.
func (s *Scheduler) Latest(ctx context.Context) (reading.Reading, bool, error) {
	return s.store.Latest(ctx)
}

// LastReading returns the reading of the last successful aggregation, even
// when it could not be persisted.
func (s *Scheduler) LastReading() (reading.Reading, bool) {
	r := s.last.Load()
	if r == nil {
		return reading.Reading{}, false
	}
	return *r, true
}

// Run polls the sensor until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Time("next_scheduled", s.Status().NextScheduledTime).
		Msg("Scheduler started")

	for {
		wait := s.Status().NextScheduledTime.Sub(s.now())
		if err := s.sleep(ctx, wait); err != nil {
			s.logger.Info().Msg("Scheduler stopped")
			return nil
		}

		s.Poll(ctx)
	}
}

// Poll runs one full poll cycle immediately. It must not be called
// concurrently with Run.
func (s *Scheduler) Poll(ctx context.Context) {
	started := s.now()
	cycleID := uuid.NewString()

	s.transition(cycleID, StateWarmingUp)

	if err := s.warmUp(ctx); err != nil {
		if ctx.Err() != nil {
			s.interrupted(cycleID)
			return
		}
		if !errors.HasCode(err, errors.ErrHardwareFault) {
			err = errors.New().Wrap(errors.ErrHardwareFault, err)
		}
		s.fail(cycleID, ResultHardwareFault, err, started)
		return
	}

	s.transition(cycleID, StateReading)

	sample, err := s.aggregator.Aggregate(ctx)
	if errors.HasCode(err, errors.ErrCanceled) {
		s.interrupted(cycleID)
		return
	}
	if err != nil {
		s.fail(cycleID, ResultAggregationFailed, err, started)
		return
	}

	index, err := aqi.Calculate(sample.PM25, sample.PM10)
	if err != nil {
		s.fail(cycleID, ResultAggregationFailed, errors.New().Wrap(errors.ErrAggregationFailed, err), started)
		return
	}

	r := reading.Reading{
		Timestamp: s.now(),
		PM25:      sample.PM25,
		PM10:      sample.PM10,
		EPA:       index.AQI,
	}
	s.last.Store(&r)
	s.recorder.ReadingTaken(r)

	result := ResultSuccess
	lastException := ""

	// the sample is already taken, so shutdown must not drop it
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.Append(persistCtx, r); err != nil {
		perr := errors.New().Wrap(errors.ErrPersistenceFailed, err)
		s.logger.ErrorWithCode(perr).
			Str("cycle_id", cycleID).
			Msg("Failed to persist reading")
		result = ResultPersistenceFailed
		lastException = perr.Error()
	} else {
		s.logger.Info().
			Str("cycle_id", cycleID).
			Float64("pm25", r.PM25).
			Float64("pm10", r.PM10).
			Float64("epa", r.EPA).
			Str("level", index.Level.String()).
			Str("dominant", string(index.Dominant)).
			Msg("Reading persisted")
	}

	s.export(persistCtx, cycleID, r)
	s.complete(cycleID, StateIdle, lastException, result, started)
}

// warmUp power cycles the sensor, retrying once, then waits for it to settle.
func (s *Scheduler) warmUp(ctx context.Context) error {
	err := s.power.PowerCycle(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("Power cycle failed, retrying once")
		err = s.power.PowerCycle(ctx)
	}
	if err != nil {
		return err
	}

	return s.sleep(ctx, s.cfg.WarmUp)
}

func (s *Scheduler) export(ctx context.Context, cycleID string, r reading.Reading) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	if err := s.exporter.Export(ctx, r); err != nil {
		s.recorder.ExportFailed()
		s.logger.Warn().
			Err(err).
			Str("cycle_id", cycleID).
			Msg("Failed to export reading")
	}
}

func (s *Scheduler) fail(cycleID, result string, err error, started time.Time) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		s.logger.ErrorWithCode(appErr).
			Str("cycle_id", cycleID).
			Str("result", result).
			Msg("Poll cycle failed")
	} else {
		s.logger.Error().
			Err(err).
			Str("cycle_id", cycleID).
			Str("result", result).
			Msg("Poll cycle failed")
	}

	s.complete(cycleID, StateErroring, err.Error(), result, started)
}

func (s *Scheduler) interrupted(cycleID string) {
	s.logger.Info().
		Str("cycle_id", cycleID).
		Str("state", s.Status().State.String()).
		Msg("Poll cycle interrupted by shutdown")
}

// complete ends a cycle and schedules the next one a full poll interval
// after now.
func (s *Scheduler) complete(cycleID string, state State, lastException, result string, started time.Time) {
	prev := s.Status()

	next := s.now().Add(s.cfg.PollInterval)
	if next.Before(prev.NextScheduledTime) {
		next = prev.NextScheduledTime
	}

	s.publish(cycleID, prev, StatusSnapshot{
		State:             state,
		LastException:     lastException,
		NextScheduledTime: next,
	})
	s.recorder.CycleCompleted(result, s.now().Sub(started))
}

// transition moves into a mid-cycle state, keeping the last exception and
// schedule visible until the cycle completes.
func (s *Scheduler) transition(cycleID string, state State) {
	prev := s.Status()
	s.publish(cycleID, prev, StatusSnapshot{
		State:             state,
		LastException:     prev.LastException,
		NextScheduledTime: prev.NextScheduledTime,
	})
}

func (s *Scheduler) publish(cycleID string, prev, next StatusSnapshot) {
	if !prev.State.CanTransition(next.State) {
		s.logger.ErrorWithCode(errors.New().WithData(errors.ErrInternal, struct {
			From string
			To   string
		}{prev.State.String(), next.State.String()})).
			Str("cycle_id", cycleID).
			Msg("Illegal state transition")
		return
	}

	s.status.Store(&next)
	s.recorder.StateChanged(next.State.String())

	s.logger.Debug().
		Str("cycle_id", cycleID).
		Str("from", prev.State.String()).
		Str("to", next.State.String()).
		Time("next_scheduled", next.NextScheduledTime).
		Msg("State transition")
}
