package storage

import "codeberg.org/mutker/aqimon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidDBPath = errors.ErrorCode("storage_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("storage_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("storage_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("storage_schema_migration_failed")

	// Storage Errors
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed
	ErrStorageAccess = errors.ErrorCode("storage_access_failed")
	ErrStoreClosed   = errors.ErrorCode("storage_closed")
	ErrInvalidRecord = errors.ErrorCode("storage_invalid_record")
)
