package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig       ErrorCode = "invalid_configuration"
	ErrReadConfig          ErrorCode = "read_config_failed"
	ErrBindFlags           ErrorCode = "bind_flags_failed"
	ErrInvalidInterval     ErrorCode = "invalid_interval"
	ErrInvalidReaderType   ErrorCode = "invalid_reader_type"
	ErrInvalidPowerControl ErrorCode = "invalid_power_control"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Device errors
	ErrHardwareFault     ErrorCode = "hardware_fault"
	ErrAggregationFailed ErrorCode = "aggregation_failed"
	ErrPersistenceFailed ErrorCode = "persistence_failed"

	// AQI errors
	ErrInvalidConcentration ErrorCode = "invalid_concentration"

	// Export errors
	ErrExportFailed ErrorCode = "export_failed"

	// Operation errors
	ErrTimeout  ErrorCode = "operation_timeout"
	ErrCanceled ErrorCode = "operation_canceled"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:             "Internal error occurred",
	ErrInvalidArgument:      "Invalid argument provided",
	ErrAlreadyRunning:       "Another instance is already running",
	ErrInvalidConfig:        "Invalid configuration",
	ErrReadConfig:           "Failed to read configuration",
	ErrBindFlags:            "Failed to bind flags",
	ErrInvalidInterval:      "Invalid interval value",
	ErrInvalidReaderType:    "Unknown reader type",
	ErrInvalidPowerControl:  "Unknown power control",
	ErrInvalidLogLevel:      "Invalid log level",
	ErrInitFailed:           "Initialization failed",
	ErrShutdownFailed:       "Shutdown failed",
	ErrHardwareFault:        "Hardware fault",
	ErrAggregationFailed:    "Aggregation failed",
	ErrPersistenceFailed:    "Failed to persist reading",
	ErrInvalidConcentration: "Invalid concentration",
	ErrExportFailed:         "Failed to export reading",
	ErrTimeout:              "Operation timed out",
	ErrCanceled:             "Operation canceled",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
