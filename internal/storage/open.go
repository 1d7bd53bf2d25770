package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"crosspromo/internal/channel"
	logx "crosspromo/pkg/logx"
)

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

func encodeSnapshot(channels []channel.Channel) ([]byte, error) {
	if channels == nil {
		channels = []channel.Channel{}
	}
	return json.Marshal(channels)
}

func decodeSnapshot(b []byte) ([]channel.Channel, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return []channel.Channel{}, nil
	}
	var out []channel.Channel
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if out == nil {
		out = []channel.Channel{}
	}
	return out, nil
}
