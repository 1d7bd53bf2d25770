package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crosspromo/internal/channel"
	logx "crosspromo/pkg/logx"
)

// redisStore keeps each slot as one string key holding the JSON snapshot.
type redisStore struct {
	rdb *redis.Client
	log logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.Debug("redis connected", logx.String("addr", addr), logx.Int("db", cfg.DB))
	return &redisStore{rdb: rdb, log: log}, nil
}

func (s *redisStore) Close() error { return s.rdb.Close() }

func (s *redisStore) Load(ctx context.Context) ([]channel.Channel, error) {
	return s.get(ctx, KeyChannels)
}

func (s *redisStore) LoadArchive(ctx context.Context) ([]channel.Channel, error) {
	return s.get(ctx, KeyArchive)
}

func (s *redisStore) Store(ctx context.Context, channels []channel.Channel) error {
	return s.set(ctx, KeyChannels, channels)
}

func (s *redisStore) Archive(ctx context.Context, channels []channel.Channel) error {
	return s.set(ctx, KeyArchive, channels)
}

func (s *redisStore) get(ctx context.Context, key string) ([]channel.Channel, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []channel.Channel{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (s *redisStore) set(ctx context.Context, key string, channels []channel.Channel) error {
	b, err := encodeSnapshot(channels)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, 0).Err()
}
