package storage

import (
	"path/filepath"

	"codeberg.org/mutker/aqimon/internal/errors"
)

const (
	defaultDirPerm     = 0o755
	defaultBusyTimeout = 5000
	backupDirName      = "backups"
)

type Config struct {
	DBPath string
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Defaults to a backups directory next to DBPath.
	BackupDir string
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}
