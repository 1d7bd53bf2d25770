package channel

import (
	"context"
	"sort"
	"sync"
)

// Archiver receives the full registry contents before a clear.
type Archiver interface {
	Archive(ctx context.Context, channels []Channel) error
}

// Registry is a name-keyed set of channels.
//
// It is safe for concurrent use. Callers that need read-then-write atomicity
// across several calls (refresh, then upsert) must serialize those sequences
// themselves.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Channel
}

func NewRegistry(initial ...Channel) *Registry {
	r := &Registry{m: make(map[string]Channel, len(initial))}
	for _, c := range initial {
		r.upsertLocked(c)
	}
	return r
}

// Upsert inserts or replaces the record stored under c.Name.
func (r *Registry) Upsert(c Channel) {
	r.mu.Lock()
	r.upsertLocked(c)
	r.mu.Unlock()
}

func (r *Registry) upsertLocked(c Channel) {
	c = c.Normalize()
	if c.Name == "" {
		return
	}
	r.m[c.Name] = c
}

func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[name]
	return c, ok
}

// Remove deletes name and reports whether an entry existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[name]; !ok {
		return false
	}
	delete(r.m, name)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// All returns every record ordered by count, highest first.
// Ties are broken by name so the order is deterministic.
func (r *Registry) All() []Channel {
	r.mu.RLock()
	out := make([]Channel, 0, len(r.m))
	for _, c := range r.m {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RangeList returns records with low <= count < high in All() order.
func (r *Registry) RangeList(low, high int) []Channel {
	all := r.All()
	out := make([]Channel, 0, len(all))
	for _, c := range all {
		if c.Count >= low && c.Count < high {
			out = append(out, c)
		}
	}
	return out
}

// RangeNames is RangeList projected to names.
func (r *Registry) RangeNames(low, high int) []string {
	list := r.RangeList(low, high)
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names
}

// Replace swaps the live mapping for the given records.
func (r *Registry) Replace(channels []Channel) {
	m := make(map[string]Channel, len(channels))
	for _, c := range channels {
		c = c.Normalize()
		if c.Name == "" {
			continue
		}
		m[c.Name] = c
	}
	r.mu.Lock()
	r.m = m
	r.mu.Unlock()
}

// ArchiveAndClear hands the current contents to a and empties the registry.
// When archiving fails the registry is left untouched.
func (r *Registry) ArchiveAndClear(ctx context.Context, a Archiver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make([]Channel, 0, len(r.m))
	for _, c := range r.m {
		snap = append(snap, c)
	}
	if a != nil {
		if err := a.Archive(ctx, snap); err != nil {
			return err
		}
	}
	r.m = map[string]Channel{}
	return nil
}
