package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crosspromo/internal/channel"
	logx "crosspromo/pkg/logx"
)

// fileStore writes each slot as <dir>/<base>.<slot>.json next to the
// configured path. Writes go through a temp file and a rename.
type fileStore struct {
	log    logx.Logger
	prefix string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &fileStore{log: log, prefix: filepath.Join(dir, base)}, nil
}

func (s *fileStore) slotPath(key string) string { return s.prefix + "." + key + ".json" }

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(context.Context) ([]channel.Channel, error) {
	return s.read(KeyChannels)
}

func (s *fileStore) LoadArchive(context.Context) ([]channel.Channel, error) {
	return s.read(KeyArchive)
}

func (s *fileStore) Store(_ context.Context, channels []channel.Channel) error {
	return s.write(KeyChannels, channels)
}

func (s *fileStore) Archive(_ context.Context, channels []channel.Channel) error {
	if err := s.write(KeyArchive, channels); err != nil {
		return err
	}
	s.log.Debug("snapshot archived", logx.String("path", s.slotPath(KeyArchive)), logx.Int("channels", len(channels)))
	return nil
}

func (s *fileStore) read(key string) ([]channel.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.slotPath(key))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return []channel.Channel{}, nil
	case err != nil:
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (s *fileStore) write(key string, channels []channel.Channel) error {
	raw, err := encodeSnapshot(channels)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := s.slotPath(key)
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
