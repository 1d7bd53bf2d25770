package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crosspromo/internal/channel"
	logx "crosspromo/pkg/logx"

	_ "modernc.org/sqlite"
)

const (
	snapshotDDL = `CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`
	snapshotSelect = `SELECT value FROM snapshots WHERE key = ?`
	snapshotUpsert = `INSERT INTO snapshots(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// sqliteStore keeps each snapshot slot as one row of a key-value table.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// sqliteDSN turns a filesystem path into a modernc DSN carrying the
// connection pragmas, so every pooled connection gets them.
func sqliteDSN(path string, busy time.Duration) string {
	pragmas := []string{"journal_mode(WAL)", "synchronous(NORMAL)"}
	if busy > 0 {
		pragmas = append(pragmas, fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	}
	return "file:" + path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One writer at a time; WAL readers don't need more.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, snapshotDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store ready", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]channel.Channel, error) {
	return s.get(ctx, KeyChannels)
}

func (s *sqliteStore) LoadArchive(ctx context.Context) ([]channel.Channel, error) {
	return s.get(ctx, KeyArchive)
}

func (s *sqliteStore) Store(ctx context.Context, channels []channel.Channel) error {
	return s.put(ctx, KeyChannels, channels)
}

func (s *sqliteStore) Archive(ctx context.Context, channels []channel.Channel) error {
	return s.put(ctx, KeyArchive, channels)
}

func (s *sqliteStore) get(ctx context.Context, key string) ([]channel.Channel, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	var raw []byte
	switch err := s.db.QueryRowContext(ctx, snapshotSelect, key).Scan(&raw); {
	case errors.Is(err, sql.ErrNoRows):
		return []channel.Channel{}, nil
	case err != nil:
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return decodeSnapshot(raw)
}

func (s *sqliteStore) put(ctx context.Context, key string, channels []channel.Channel) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	raw, err := encodeSnapshot(channels)
	if err != nil {
		return err
	}
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, snapshotUpsert, key, raw, stamp); err != nil {
		return fmt.Errorf("sqlite put %s: %w", key, err)
	}
	return nil
}
