package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "AQIMON"
	DefaultLogLevel  = LogLevelInfo

	configName = "aqimon"
	configType = "toml"
	dotEnvFile = ".env"
)

// Reader types
const (
	ReaderReal   = "real"
	ReaderNovaPM = "novapm"
	ReaderSDS011 = "sds011"
	ReaderMock   = "mock"
)

// Power control methods
const (
	PowerNone    = "none"
	PowerUhubctl = "uhubctl"
)

type Config struct {
	PollFrequencySec     int    `mapstructure:"poll_frequency_sec"`
	SampleCountPerRead   int    `mapstructure:"sample_count_per_read"`
	SleepSecBetweenReads int    `mapstructure:"sleep_sec_between_reads"`
	WarmUpSec            int    `mapstructure:"warm_up_sec"`
	CommandWaitSec       int    `mapstructure:"command_wait_sec"`
	RetentionMinutes     int    `mapstructure:"retention_minutes"`
	PurgeIntervalSec     int    `mapstructure:"purge_interval_sec"`
	ReaderType           string `mapstructure:"reader_type"`
	USBPath              string `mapstructure:"usb_path"`
	PowerControl         string `mapstructure:"power_control"`
	UhubctlPath          string `mapstructure:"uhubctl_path"`
	UhubctlLocation      string `mapstructure:"uhubctl_location"`
	UhubctlPort          int    `mapstructure:"uhubctl_port"`
	UhubctlOffSec        int    `mapstructure:"uhubctl_off_sec"`
	DatabasePath         string `mapstructure:"database_path"`
	ServerHost           string `mapstructure:"server_host"`
	ServerPort           int    `mapstructure:"server_port"`
	MQTTBroker           string `mapstructure:"mqtt_broker"`
	MQTTTopic            string `mapstructure:"mqtt_topic"`
	KafkaBrokers         string `mapstructure:"kafka_brokers"`
	KafkaTopic           string `mapstructure:"kafka_topic"`
	LogLevel             string `mapstructure:"log_level"`
	PIDFile              string `mapstructure:"pid_file"`
	Once                 bool   `mapstructure:"once"`
}

var _ Provider = (*Config)(nil)

type setting struct {
	key   string
	value any
	usage string
}

func settings() []setting {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return []setting{
		{"poll_frequency_sec", 900, "seconds between poll cycles"},
		{"sample_count_per_read", 5, "samples averaged into one reading"},
		{"sleep_sec_between_reads", 5, "seconds between samples"},
		{"warm_up_sec", 15, "seconds the sensor runs before sampling"},
		{"command_wait_sec", 1, "seconds to wait after a serial command"},
		{"retention_minutes", 10080, "minutes readings are kept"},
		{"purge_interval_sec", 300, "seconds between retention passes"},
		{"reader_type", ReaderReal, "sensor reader (real, novapm, sds011, mock)"},
		{"usb_path", "/dev/ttyUSB0", "serial device of the sensor"},
		{"power_control", PowerNone, "USB power control (none, uhubctl)"},
		{"uhubctl_path", "uhubctl", "uhubctl binary"},
		{"uhubctl_location", "1-1", "hub location passed to uhubctl"},
		{"uhubctl_port", 2, "hub port passed to uhubctl"},
		{"uhubctl_off_sec", 1, "seconds the hub port stays off during a power cycle"},
		{"database_path", filepath.Join(home, ".aqimon", "db.sqlite"), "SQLite database path"},
		{"server_host", "0.0.0.0", "HTTP listen host"},
		{"server_port", 8000, "HTTP listen port"},
		{"mqtt_broker", "", "MQTT broker URL (empty disables MQTT export)"},
		{"mqtt_topic", "aqimon/readings", "MQTT topic"},
		{"kafka_brokers", "", "comma separated Kafka brokers (empty disables Kafka export)"},
		{"kafka_topic", "aqimon.readings", "Kafka topic"},
		{"log_level", string(DefaultLogLevel), "log level (debug, info, warning, error)"},
		{"pid_file", filepath.Join(os.TempDir(), "aqimon.pid"), "PID file path"},
		{"once", false, "run a single poll cycle and exit"},
	}
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func newFlagSet(defs []setting) *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.String("config", "", "configuration file")

	for _, d := range defs {
		switch v := d.value.(type) {
		case int:
			fs.Int(flagName(d.key), v, d.usage)
		case bool:
			fs.Bool(flagName(d.key), v, d.usage)
		case string:
			fs.String(flagName(d.key), v, d.usage)
		}
	}

	return fs
}

// Load resolves configuration from defaults, an optional TOML file, a .env
// file, the environment and command line flags, in increasing precedence.
// The result is validated before it is returned.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: DefaultEnvPrefix,
		dotEnv:    dotEnvFile,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	if err := loadDotEnv(o.dotEnv); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	defs := settings()
	v := viper.New()
	for _, d := range defs {
		v.SetDefault(d.key, d.value)
	}

	fs := newFlagSet(defs)
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for _, d := range defs {
		if err := v.BindPFlag(d.key, fs.Lookup(flagName(d.key))); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	if err := readConfigFile(v, o, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.DatabasePath = expandHome(cfg.DatabasePath)
	cfg.PIDFile = expandHome(cfg.PIDFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return godotenv.Load(path)
}

// readConfigFile reads an explicit file when one is named by option, flag or
// environment, otherwise it searches the default locations and tolerates a
// missing file.
func readConfigFile(v *viper.Viper, o *options, fs *pflag.FlagSet) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType(configType)

	if path != "" {
		v.SetConfigFile(expandHome(path))
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath("/etc/aqimon")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".aqimon"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

type validationError struct {
	field  string
	value  interface{}
	reason string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.field, e.value, e.reason)
}

func (e *validationError) Field() string { return e.field }
func (e *validationError) Value() interface{} { return e.value }
func (e *validationError) Reason() string { return e.reason }

func invalid(code errors.ErrorCode, field string, value interface{}, reason string) error {
	return errors.New().Wrap(code, &validationError{field: field, value: value, reason: reason})
}

// Validate checks every value that would otherwise surface as a runtime
// fault once the daemon is running.
func (c *Config) Validate() error {
	switch {
	case c.PollFrequencySec <= 0:
		return invalid(errors.ErrInvalidInterval, "poll_frequency_sec", c.PollFrequencySec, "must be positive")
	case c.PurgeIntervalSec <= 0:
		return invalid(errors.ErrInvalidInterval, "purge_interval_sec", c.PurgeIntervalSec, "must be positive")
	case c.RetentionMinutes <= 0:
		return invalid(errors.ErrInvalidInterval, "retention_minutes", c.RetentionMinutes, "must be positive")
	case c.SleepSecBetweenReads < 0:
		return invalid(errors.ErrInvalidInterval, "sleep_sec_between_reads", c.SleepSecBetweenReads, "must not be negative")
	case c.WarmUpSec < 0:
		return invalid(errors.ErrInvalidInterval, "warm_up_sec", c.WarmUpSec, "must not be negative")
	case c.CommandWaitSec < 0:
		return invalid(errors.ErrInvalidInterval, "command_wait_sec", c.CommandWaitSec, "must not be negative")
	case c.SampleCountPerRead < 1:
		return invalid(errors.ErrInvalidConfig, "sample_count_per_read", c.SampleCountPerRead, "must be at least 1")
	}

	switch c.ReaderType {
	case ReaderReal, ReaderNovaPM, ReaderSDS011, ReaderMock:
	default:
		return invalid(errors.ErrInvalidReaderType, "reader_type", c.ReaderType, "must be real, novapm, sds011 or mock")
	}
	if c.IsRealReader() && c.USBPath == "" {
		return invalid(errors.ErrInvalidConfig, "usb_path", c.USBPath, "required for the real reader")
	}

	switch c.PowerControl {
	case PowerNone, PowerUhubctl:
	default:
		return invalid(errors.ErrInvalidPowerControl, "power_control", c.PowerControl, "must be none or uhubctl")
	}
	if c.PowerControl == PowerUhubctl && c.UhubctlPort < 1 {
		return invalid(errors.ErrInvalidPowerControl, "uhubctl_port", c.UhubctlPort, "must be positive")
	}
	if c.PowerControl == PowerUhubctl && c.UhubctlOffSec < 1 {
		return invalid(errors.ErrInvalidPowerControl, "uhubctl_off_sec", c.UhubctlOffSec, "must be positive")
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return invalid(errors.ErrInvalidLogLevel, "log_level", c.LogLevel, "must be debug, info, warning or error")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return invalid(errors.ErrInvalidConfig, "server_port", c.ServerPort, "must be between 1 and 65535")
	}
	if c.DatabasePath == "" {
		return invalid(errors.ErrInvalidConfig, "database_path", c.DatabasePath, "must not be empty")
	}

	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) PollInterval() time.Duration { return seconds(c.PollFrequencySec) }
func (c *Config) SampleDelay() time.Duration { return seconds(c.SleepSecBetweenReads) }
func (c *Config) WarmUp() time.Duration { return seconds(c.WarmUpSec) }
func (c *Config) CommandWait() time.Duration { return seconds(c.CommandWaitSec) }
func (c *Config) HubOffDuration() time.Duration { return seconds(c.UhubctlOffSec) }
func (c *Config) PurgeInterval() time.Duration { return seconds(c.PurgeIntervalSec) }

func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// IsRealReader reports whether reader_type selects the SDS011 serial sensor.
func (c *Config) IsRealReader() bool {
	switch c.ReaderType {
	case ReaderReal, ReaderNovaPM, ReaderSDS011:
		return true
	default:
		return false
	}
}

func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
