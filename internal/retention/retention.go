package retention

import (
	"context"
	"time"

	"codeberg.org/mutker/aqimon/internal/clock"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
)

// Store is the part of the reading store the purge needs.
type Store interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder observes purges for instrumentation.
type Recorder interface {
	Purged(n int64)
}

// Policy bounds how long readings are kept and how often the purge runs.
type Policy struct {
	Window   time.Duration
	Interval time.Duration
}

func (p Policy) Validate() error {
	errFactory := errors.New()

	if p.Window <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"retention_window", p.Window})
	}
	if p.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"purge_interval", p.Interval})
	}

	return nil
}

// Manager deletes readings older than the policy window on a fixed timer,
// independent of the poll loop.
type Manager struct {
	policy   Policy
	store    Store
	recorder Recorder
	logger   logger.Logger
	now      clock.NowFunc
}

type Option func(*Manager)

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.logger = log
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

func WithClock(now clock.NowFunc) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func New(policy Policy, store Store, opts ...Option) (*Manager, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		policy: policy,
		store:  store,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("retention")

	return m, nil
}

// Purge deletes every reading older than now minus the retention window in a
// single call to the store. Readings at or after the cutoff are kept.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.policy.Window)

	n, err := m.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrPersistenceFailed, err).WithData(cutoff)
	}

	if m.recorder != nil {
		m.recorder.Purged(n)
	}

	m.logger.Info().
		Time("cutoff", cutoff).
		Int64("deleted", n).
		Msg("Purged expired readings")

	return n, nil
}

// Run purges once immediately and then on every interval until ctx is
// canceled. Failed purges are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.policy.Interval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("window", m.policy.Window).
		Dur("interval", m.policy.Interval).
		Msg("Retention manager started")

	m.purge(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Retention manager stopped")
			return nil
		case <-ticker.C:
			m.purge(ctx)
		}
	}
}

func (m *Manager) purge(ctx context.Context) {
	if _, err := m.Purge(ctx); err != nil && ctx.Err() == nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			m.logger.ErrorWithCode(appErr).Msg("Purge failed")
		}
	}
}
