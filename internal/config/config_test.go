package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/aqimon/internal/config"
	"codeberg.org/mutker/aqimon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory so no user config file or
// stray dotenv is picked up.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AQIMON_CONFIG", "")
	return home
}

func load(t *testing.T, opts ...config.Option) (*config.Config, error) {
	t.Helper()

	return config.Load(append([]config.Option{
		config.WithArgs(nil),
		config.WithDotEnv(""),
	}, opts...)...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "aqimon.toml", `
poll_frequency_sec = 60
sample_count_per_read = 3
sleep_sec_between_reads = 2
retention_minutes = 120
reader_type = "mock"
power_control = "uhubctl"
uhubctl_location = "2-1"
database_path = "/var/lib/aqimon/db.sqlite"
kafka_brokers = "k1:9092, k2:9092"
log_level = "debug"
`)
	t.Setenv("AQIMON_CONFIG", path)

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.PollInterval(), "Expected poll interval 60s")
	assert.Equal(t, 3, cfg.SampleCountPerRead, "Expected 3 samples")
	assert.Equal(t, 2*time.Second, cfg.SampleDelay(), "Expected sample delay 2s")
	assert.Equal(t, 2*time.Hour, cfg.RetentionWindow(), "Expected retention 2h")
	assert.False(t, cfg.IsRealReader(), "Expected mock reader")
	assert.Equal(t, config.PowerUhubctl, cfg.PowerControl)
	assert.Equal(t, "2-1", cfg.UhubctlLocation)
	assert.Equal(t, "/var/lib/aqimon/db.sqlite", cfg.DatabasePath)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := load(t)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 15*time.Minute, cfg.PollInterval())
	assert.Equal(t, 5, cfg.SampleCountPerRead)
	assert.Equal(t, 5*time.Second, cfg.SampleDelay())
	assert.Equal(t, 15*time.Second, cfg.WarmUp())
	assert.Equal(t, time.Second, cfg.CommandWait())
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionWindow())
	assert.Equal(t, 5*time.Minute, cfg.PurgeInterval())
	assert.True(t, cfg.IsRealReader())
	assert.Equal(t, "/dev/ttyUSB0", cfg.USBPath)
	assert.Equal(t, config.PowerNone, cfg.PowerControl)
	assert.Equal(t, 2, cfg.UhubctlPort)
	assert.Equal(t, time.Second, cfg.HubOffDuration())
	assert.Equal(t, filepath.Join(home, ".aqimon", "db.sqlite"), cfg.DatabasePath)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, "aqimon/readings", cfg.MQTTTopic)
	assert.Nil(t, cfg.KafkaBrokerList())
	assert.Equal(t, config.DefaultLogLevel.String(), cfg.LogLevel)
	assert.False(t, cfg.Once)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	t.Setenv("AQIMON_CONFIG", writeFile(t, dir, "aqimon.toml", `
poll_frequency_sec = 60
server_port = 9000
reader_type = "mock"
`))
	t.Setenv("AQIMON_POLL_FREQUENCY_SEC", "120")
	t.Setenv("AQIMON_SERVER_PORT", "9100")

	cfg, err := load(t, config.WithArgs([]string{"--server-port", "9200", "--once"}))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.PollInterval(), "environment overrides file")
	assert.Equal(t, 9200, cfg.ServerPort, "flags override environment")
	assert.Equal(t, config.ReaderMock, cfg.ReaderType, "file overrides defaults")
	assert.True(t, cfg.Once)
}

func TestLoadEnvPrefix(t *testing.T) {
	isolate(t)
	t.Setenv("AIRQ_READER_TYPE", "mock")

	cfg, err := load(t, config.WithEnvPrefix("AIRQ"))
	require.NoError(t, err)
	assert.Equal(t, config.ReaderMock, cfg.ReaderType)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, ".env", "AQIMON_MQTT_TOPIC=home/air\n")

	require.NoError(t, os.Unsetenv("AQIMON_MQTT_TOPIC"))
	t.Cleanup(func() { os.Unsetenv("AQIMON_MQTT_TOPIC") })

	cfg, err := load(t, config.WithDotEnv(path))
	require.NoError(t, err)
	assert.Equal(t, "home/air", cfg.MQTTTopic)
}

func TestLoadConfigFileFlag(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "custom.toml", `usb_path = "/dev/ttyAMA0"`)

	cfg, err := load(t, config.WithArgs([]string{"--config", path}))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyAMA0", cfg.USBPath)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "aqimon.toml", `
This is not a valid TOML file
`)

	_, err := load(t, config.WithConfigFile(path))
	require.Error(t, err, "Expected an error when loading invalid config file")
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadConfigFileMissing(t *testing.T) {
	isolate(t)

	_, err := load(t, config.WithConfigFile("/nonexistent/aqimon.toml"))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadUnknownFlag(t *testing.T) {
	isolate(t)

	_, err := load(t, config.WithArgs([]string{"--fan-speed", "100"}))
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		field string
		code  errors.ErrorCode
	}{
		{"zero poll interval", "AQIMON_POLL_FREQUENCY_SEC", "0", "poll_frequency_sec", errors.ErrInvalidInterval},
		{"negative sleep", "AQIMON_SLEEP_SEC_BETWEEN_READS", "-1", "sleep_sec_between_reads", errors.ErrInvalidInterval},
		{"negative warm up", "AQIMON_WARM_UP_SEC", "-5", "warm_up_sec", errors.ErrInvalidInterval},
		{"zero retention", "AQIMON_RETENTION_MINUTES", "0", "retention_minutes", errors.ErrInvalidInterval},
		{"zero purge interval", "AQIMON_PURGE_INTERVAL_SEC", "0", "purge_interval_sec", errors.ErrInvalidInterval},
		{"no samples", "AQIMON_SAMPLE_COUNT_PER_READ", "0", "sample_count_per_read", errors.ErrInvalidConfig},
		{"unknown reader", "AQIMON_READER_TYPE", "laser", "reader_type", errors.ErrInvalidReaderType},
		{"unknown power control", "AQIMON_POWER_CONTROL", "relay", "power_control", errors.ErrInvalidPowerControl},
		{"bad log level", "AQIMON_LOG_LEVEL", "verbose", "log_level", errors.ErrInvalidLogLevel},
		{"port out of range", "AQIMON_SERVER_PORT", "70000", "server_port", errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.env, tt.value)

			_, err := load(t)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)

			var verr config.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field())
			assert.NotEmpty(t, verr.Reason())
		})
	}
}

func TestLoadUhubctlOffDuration(t *testing.T) {
	isolate(t)
	t.Setenv("AQIMON_POWER_CONTROL", "uhubctl")
	t.Setenv("AQIMON_UHUBCTL_OFF_SEC", "4")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.HubOffDuration())

	t.Setenv("AQIMON_UHUBCTL_OFF_SEC", "0")
	_, err = load(t)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPowerControl))
}

func TestReaderTypes(t *testing.T) {
	for _, reader := range []string{config.ReaderReal, config.ReaderNovaPM, config.ReaderSDS011} {
		cfg := &config.Config{ReaderType: reader}
		assert.True(t, cfg.IsRealReader(), reader)
	}
	assert.False(t, (&config.Config{ReaderType: config.ReaderMock}).IsRealReader())
}

func TestLogLevel(t *testing.T) {
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("trace").IsValid())
}
