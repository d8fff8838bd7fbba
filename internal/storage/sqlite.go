package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/reading"
	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config

	// writes take the lock exclusively, queries share it
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the SQLite database at cfg.DBPath.
func Open(ctx context.Context, cfg Config, log logger.Logger) (ReadingStore, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=%d&_auto_vacuum=2", cfg.DBPath, defaultBusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	log = log.WithComponent("storage")

	if err := ValidateAndUpdateSchema(ctx, db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Reading store initialized")

	return &sqliteStore{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func (s *sqliteStore) Append(ctx context.Context, r reading.Reading) error {
	errFactory := errors.New()

	if !validValue(r.PM25) || !validValue(r.PM10) || !validValue(r.EPA) {
		return errFactory.WithData(ErrInvalidRecord, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.New(ErrStoreClosed)
	}

	if _, err := s.db.ExecContext(ctx, insertReadingSQL,
		r.Timestamp.UnixMilli(), r.PM25, r.PM10, r.EPA); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) Query(ctx context.Context, w reading.Window) ([]reading.Reading, error) {
	errFactory := errors.New()

	start := int64(math.MinInt64)
	if !w.Start.IsZero() {
		start = w.Start.UnixMilli()
	}
	end := int64(math.MaxInt64)
	if !w.End.IsZero() {
		end = w.End.UnixMilli()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errFactory.New(ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, selectReadingsSQL, start, end)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	readings := make([]reading.Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return readings, nil
}

func (s *sqliteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errFactory.New(ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, deleteBeforeSQL, cutoff.UnixMilli())
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	return n, nil
}

func (s *sqliteStore) Latest(ctx context.Context) (reading.Reading, bool, error) {
	errFactory := errors.New()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return reading.Reading{}, false, errFactory.New(ErrStoreClosed)
	}

	r, err := scanReading(s.db.QueryRowContext(ctx, selectLatestSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return reading.Reading{}, false, nil
	}
	if err != nil {
		return reading.Reading{}, false, errFactory.Wrap(ErrStorageAccess, err)
	}

	return r, true, nil
}

func (s *sqliteStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errors.New().New(ErrStoreClosed)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, countReadingsSQL).Scan(&n); err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}

	return n, nil
}

func (s *sqliteStore) Close() error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := s.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	s.logger.Info().Msg("Reading store closed")

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(row scanner) (reading.Reading, error) {
	var (
		ts int64
		r  reading.Reading
	)
	if err := row.Scan(&ts, &r.PM25, &r.PM10, &r.EPA); err != nil {
		return reading.Reading{}, err
	}
	r.Timestamp = time.UnixMilli(ts)

	return r, nil
}

func validValue(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
