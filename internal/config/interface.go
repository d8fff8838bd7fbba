package config

import "time"

// Provider exposes the loaded configuration. Values are immutable once Load
// returns.
type Provider interface {
	// PollInterval returns the time between poll cycles
	PollInterval() time.Duration

	// SampleDelay returns the pause between samples of one read
	SampleDelay() time.Duration

	// WarmUp returns how long the sensor runs before sampling
	WarmUp() time.Duration

	// CommandWait returns the settle time after a serial command
	CommandWait() time.Duration

	// RetentionWindow returns how long readings are kept
	RetentionWindow() time.Duration

	// PurgeInterval returns the time between retention passes
	PurgeInterval() time.Duration

	// IsRealReader reports whether the hardware sensor is selected
	IsRealReader() bool

	// KafkaBrokerList returns the configured Kafka brokers, if any
	KafkaBrokerList() []string
}

// Option customizes a single Load call.
type Option func(*options) error

type options struct {
	configPath string
	envPrefix  string
	dotEnv     string
	args       []string
	argsSet    bool
}

// WithConfigFile specifies an explicit configuration file path. It takes
// precedence over the AQIMON_CONFIG environment variable.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix.
// Default is "AQIMON"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithDotEnv loads the given dotenv file instead of ./.env
func WithDotEnv(path string) Option {
	return func(o *options) error {
		o.dotEnv = path
		return nil
	}
}

// WithArgs parses args instead of os.Args[1:].
func WithArgs(args []string) Option {
	return func(o *options) error {
		o.args = args
		o.argsSet = true
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

func (l LogLevel) String() string {
	return string(l)
}

// ValidationError represents a configuration validation error
type ValidationError interface {
	error
	// Field returns the name of the invalid field
	Field() string
	// Value returns the invalid value
	Value() interface{}
	// Reason returns why the value is invalid
	Reason() string
}
