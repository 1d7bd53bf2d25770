// Package promo runs the channel lifecycle: it applies parsed operator
// commands to the registry, keeps the snapshot store in sync, and renders
// the list views and final distributions.
package promo

import (
	"context"
	"errors"
	"sync"
	"time"

	"crosspromo/internal/channel"
	"crosspromo/internal/command"
	"crosspromo/internal/metadata"
	"crosspromo/internal/storage"
	logx "crosspromo/pkg/logx"
)

// ErrNotFound reports a lifecycle command aimed at an unregistered channel.
var ErrNotFound = errors.New("channel not found")

// Replier delivers plain text back to whoever issued a command.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplyFunc adapts a function to Replier.
type ReplyFunc func(ctx context.Context, text string) error

func (f ReplyFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

// Recorder receives operational counters.
type Recorder interface {
	Command(action, outcome string)
	Lookup(ok bool)
	SnapshotWrite(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) Command(string, string) {}
func (nopRecorder) Lookup(bool)            {}
func (nopRecorder) SnapshotWrite(bool)     {}

type Config struct {
	// CommandDelay paces sub-commands of one message.
	CommandDelay time.Duration
	// RefreshDelay paces per-channel lookups during a bulk refresh.
	RefreshDelay time.Duration

	ListHeader string
	ListFooter string

	Publish PublishConfig
}

type PublishConfig struct {
	ChatID int64
	Range  string
	Lists  int
	Labels []string
}

const (
	DefaultListHeader = "🗣 Best channels you should join today. \n Here is the list👇 \n\n"
	DefaultListFooter = "_____________________\n JOIN TO PROMOTE YOUR CHANNEL \n➡️  @promote_it\n"
)

func (c Config) withDefaults() Config {
	if c.CommandDelay < 0 {
		c.CommandDelay = 0
	}
	if c.RefreshDelay < 0 {
		c.RefreshDelay = 0
	}
	if c.ListHeader == "" {
		c.ListHeader = DefaultListHeader
	}
	if c.ListFooter == "" {
		c.ListFooter = DefaultListFooter
	}
	return c
}

type Service struct {
	// mu serializes lookup-then-mutate sequences and snapshot writes.
	mu sync.Mutex

	reg      *channel.Registry
	store    storage.Store
	provider metadata.Provider
	rec      Recorder
	log      logx.Logger

	cfgMu sync.RWMutex
	cfg   Config

	now func() time.Time
}

// New wires a service. store and provider may be nil: without a store
// nothing is persisted, without a provider names and counts are kept as typed.
func New(reg *channel.Registry, store storage.Store, provider metadata.Provider, cfg Config, log logx.Logger) *Service {
	if reg == nil {
		reg = channel.NewRegistry()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		reg:      reg,
		store:    store,
		provider: provider,
		rec:      nopRecorder{},
		log:      log,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (s *Service) Registry() *channel.Registry { return s.reg }

// SetRecorder installs r; call it before the service handles traffic.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.rec = r
}

func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// SetConfig applies a hot-reloaded configuration.
func (s *Service) SetConfig(cfg Config) {
	s.cfgMu.Lock()
	s.cfg = cfg.withDefaults()
	s.cfgMu.Unlock()
}

// Reload replaces the registry with the stored snapshot.
func (s *Service) Reload(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chans, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.reg.Replace(chans)
	s.log.Info("registry loaded", logx.Int("channels", s.reg.Len()))
	return nil
}

// HandleText parses an operator message and dispatches every command in it,
// in order, pausing CommandDelay between consecutive commands. A failed reply
// does not stop the remaining commands; reply errors are joined and returned
// after the last one. Only cancellation ends the batch early.
func (s *Service) HandleText(ctx context.Context, text string, r Replier) error {
	cmds := command.ParseMessage(text)
	if len(cmds) == 0 {
		return nil
	}
	delay := s.Config().CommandDelay
	var errs []error
	for i, cmd := range cmds {
		if i > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return errors.Join(append(errs, err)...)
			}
		}
		if err := s.Dispatch(ctx, cmd, r); err != nil {
			s.log.Warn("command reply failed", logx.String("action", cmd.Action.String()), logx.String("handle", cmd.Handle), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch applies one command and replies with its outcome. The returned
// error is a reply failure; a missing channel is reported to the operator.
func (s *Service) Dispatch(ctx context.Context, cmd command.Command, r Replier) error {
	name, err := s.apply(ctx, cmd)
	switch {
	case errors.Is(err, ErrNotFound):
		s.rec.Command(cmd.Action.String(), "notfound")
		s.log.Info("channel not found", logx.String("action", cmd.Action.String()), logx.String("name", name))
		return reply(ctx, r, "#notfound "+name)
	case err != nil:
		s.rec.Command(cmd.Action.String(), "error")
		return err
	}

	var out string
	switch cmd.Action {
	case command.ActionNew:
		out = "#added " + name
	case command.ActionConfirm:
		out = "#confirmed " + name
	case command.ActionShared:
		out = "#shared " + name
	case command.ActionRemove:
		out = "#removed " + name
	default:
		return nil
	}
	s.rec.Command(cmd.Action.String(), "ok")
	s.log.Info("channel updated", logx.String("action", cmd.Action.String()), logx.String("name", name), logx.String("reply", out))
	return reply(ctx, r, out)
}

func (s *Service) apply(ctx context.Context, cmd command.Command) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, fresh := s.lookup(ctx, cmd.Handle)
	name := info.Handle

	switch cmd.Action {
	case command.ActionNew:
		c := channel.New(name, cmd.Description, info.Count, channel.StageNew)
		if !fresh {
			if old, ok := s.reg.Get(name); ok {
				c.Count = old.Count
			}
		}
		c.Date = s.now().UTC()
		s.reg.Upsert(c)
	case command.ActionConfirm, command.ActionShared:
		c, ok := s.reg.Get(name)
		if !ok {
			return name, ErrNotFound
		}
		c.Stage = channel.StageConfirmed
		if cmd.Action == command.ActionShared {
			c.Stage = channel.StageShared
		}
		if fresh {
			c.Count = info.Count
		}
		s.reg.Upsert(c)
	case command.ActionRemove:
		if !s.reg.Remove(name) {
			return name, ErrNotFound
		}
	default:
		return name, nil
	}
	s.persistLocked(ctx)
	return name, nil
}

// lookup resolves the canonical handle and member count. On failure the
// handle is kept as typed and fresh is false.
func (s *Service) lookup(ctx context.Context, handle string) (info metadata.Info, fresh bool) {
	if s.provider == nil {
		return metadata.Info{Handle: handle}, false
	}
	got, err := s.provider.Lookup(ctx, handle)
	ok := err == nil && got.Handle != ""
	s.rec.Lookup(ok)
	if !ok {
		s.log.Warn("metadata lookup failed, keeping stale values", logx.String("handle", handle), logx.Err(err))
		return metadata.Info{Handle: handle}, false
	}
	return got, true
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	err := s.store.Store(ctx, s.reg.All())
	s.rec.SnapshotWrite(err == nil)
	if err != nil {
		s.log.Error("snapshot write failed", logx.Err(err))
	}
}

func reply(ctx context.Context, r Replier, text string) error {
	if r == nil {
		return nil
	}
	return r.Reply(ctx, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
