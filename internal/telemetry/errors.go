package telemetry

import "codeberg.org/mutker/aqimon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")

	// Export Errors
	ErrExportFailed  = errors.ErrExportFailed
	ErrEncodeFailed  = errors.ErrorCode("telemetry_encode_failed")
	ErrPublishFailed = errors.ErrorCode("telemetry_publish_failed")
	ErrConnectFailed = errors.ErrorCode("telemetry_connect_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
	ErrServiceShutdown  = errors.ErrorCode("telemetry_service_shutdown_failed")
)
