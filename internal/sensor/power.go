package sensor

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/aqimon/internal/clock"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
)

const (
	defaultUhubctlPath    = "uhubctl"
	defaultHubLocation    = "1-1"
	defaultHubPort        = 2
	defaultHubOffDuration = time.Second
)

// NoopCycler is used when the sensor has no switchable power supply.
type NoopCycler struct{}

func (NoopCycler) PowerCycle(context.Context) error {
	return nil
}

// CommandRunner executes an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type UhubctlConfig struct {
	Path        string
	Location    string
	Port        int
	OffDuration time.Duration
}

// UhubctlCycler toggles a USB hub port with uhubctl.
type UhubctlCycler struct {
	cfg      UhubctlConfig
	run      CommandRunner
	lookPath func(file string) (string, error)
	sleep    clock.SleepFunc
	logger   logger.Logger
}

type UhubctlOption func(*UhubctlCycler)

func WithCommandRunner(run CommandRunner) UhubctlOption {
	return func(u *UhubctlCycler) {
		u.run = run
	}
}

func WithLookPath(lookPath func(file string) (string, error)) UhubctlOption {
	return func(u *UhubctlCycler) {
		u.lookPath = lookPath
	}
}

func WithPowerSleep(sleep clock.SleepFunc) UhubctlOption {
	return func(u *UhubctlCycler) {
		u.sleep = sleep
	}
}

func NewUhubctl(cfg UhubctlConfig, log logger.Logger, opts ...UhubctlOption) *UhubctlCycler {
	if cfg.Path == "" {
		cfg.Path = defaultUhubctlPath
	}
	if cfg.Location == "" {
		cfg.Location = defaultHubLocation
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultHubPort
	}
	if cfg.OffDuration <= 0 {
		cfg.OffDuration = defaultHubOffDuration
	}

	u := &UhubctlCycler{
		cfg:      cfg,
		run:      runCommand,
		lookPath: exec.LookPath,
		sleep:    clock.Sleep,
		logger:   log.WithComponent("uhubctl"),
	}
	for _, opt := range opts {
		opt(u)
	}

	return u
}

// PowerCycle switches the hub port off and back on. The port is always
// switched back on once it was switched off, even if ctx is canceled in
// between.
func (u *UhubctlCycler) PowerCycle(ctx context.Context) error {
	path, err := u.lookPath(u.cfg.Path)
	if err != nil {
		return hardwareFault(errors.New().Wrap(ErrHubControlMissing, err).WithData(u.cfg.Path))
	}

	if err := u.toggle(ctx, path, "off"); err != nil {
		return hardwareFault(err)
	}

	sleepErr := u.sleep(ctx, u.cfg.OffDuration)

	if err := u.toggle(context.WithoutCancel(ctx), path, "on"); err != nil {
		return hardwareFault(err)
	}
	if sleepErr != nil {
		return sleepErr
	}

	u.logger.Debug().
		Str("location", u.cfg.Location).
		Int("port", u.cfg.Port).
		Msg("Sensor power cycled")

	return nil
}

func (u *UhubctlCycler) toggle(ctx context.Context, path, action string) error {
	args := []string{"-l", u.cfg.Location, "-a", action, "-p", strconv.Itoa(u.cfg.Port)}

	out, err := u.run(ctx, path, args...)
	if err != nil {
		return errors.New().Wrap(ErrHubCommandFailed, err).
			WithData(action + ": " + strings.TrimSpace(string(out)))
	}

	return nil
}
