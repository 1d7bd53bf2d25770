package storage

import (
	"context"
	"sync"

	"crosspromo/internal/channel"
)

// Memory is a process-local Store. Snapshots are copied on the way in and
// out so callers can't alias the stored slices.
type Memory struct {
	mu      sync.Mutex
	live    []channel.Channel
	archive []channel.Channel

	// Writes counts Store calls; handy for asserting write-through.
	Writes int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) ([]channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneChannels(m.live), nil
}

func (m *Memory) LoadArchive(context.Context) ([]channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneChannels(m.archive), nil
}

func (m *Memory) Store(_ context.Context, channels []channel.Channel) error {
	m.mu.Lock()
	m.live = cloneChannels(channels)
	m.Writes++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Archive(_ context.Context, channels []channel.Channel) error {
	m.mu.Lock()
	m.archive = cloneChannels(channels)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneChannels(in []channel.Channel) []channel.Channel {
	out := make([]channel.Channel, len(in))
	copy(out, in)
	return out
}
