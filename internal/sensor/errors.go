package sensor

import "codeberg.org/mutker/aqimon/internal/errors"

const (
	// Serial port errors
	ErrPortOpenFailed  = errors.ErrorCode("sensor_port_open_failed")
	ErrPortWriteFailed = errors.ErrorCode("sensor_port_write_failed")
	ErrPortReadFailed  = errors.ErrorCode("sensor_port_read_failed")

	// Frame errors
	ErrIncompleteRead    = errors.ErrorCode("sensor_incomplete_read")
	ErrIncorrectWrapper  = errors.ErrorCode("sensor_incorrect_wrapper")
	ErrChecksumMismatch  = errors.ErrorCode("sensor_checksum_mismatch")
	ErrIncorrectCommand  = errors.ErrorCode("sensor_incorrect_command")
	ErrIncorrectCmdCode  = errors.ErrorCode("sensor_incorrect_command_code")
	ErrScriptedFailure   = errors.ErrorCode("sensor_scripted_failure")
	ErrHubControlMissing = errors.ErrorCode("sensor_hub_control_missing")
	ErrHubCommandFailed  = errors.ErrorCode("sensor_hub_command_failed")
)

// hardwareFault wraps a sensor-level error so callers can match on
// errors.ErrHardwareFault regardless of the concrete cause.
func hardwareFault(err error) error {
	return errors.New().Wrap(errors.ErrHardwareFault, err)
}
