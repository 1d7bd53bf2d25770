// Package storage persists registry snapshots.
//
// A snapshot is the full list of registered channels. Two slots exist: the
// live snapshot, rewritten after every registry mutation, and the archive
// slot that receives the registry right before it is cleared.
package storage

import (
	"context"
	"errors"
	"time"

	"crosspromo/internal/channel"
)

// Snapshot slot keys. They match the keys used by earlier deployments so an
// existing redis database keeps working.
const (
	KeyChannels = "promo_channels"
	KeyArchive  = "promo_channels_archive"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Store is the snapshot persistence API used by the promo service.
//
// Load returns an empty slice (not an error) when nothing was stored yet.
type Store interface {
	Load(ctx context.Context) ([]channel.Channel, error)
	Store(ctx context.Context, channels []channel.Channel) error
	Archive(ctx context.Context, channels []channel.Channel) error
	LoadArchive(ctx context.Context) ([]channel.Channel, error)
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file":   JSON snapshot files next to Path
//   - "sqlite": SQLite database file at Path
//   - "redis":  redis server at Addr
//   - "memory": process-local, lost on exit
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Addr     string // redis only
	Password string // redis only
	DB       int    // redis only
}
