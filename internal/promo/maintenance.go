package promo

import (
	"context"
	"errors"
	"fmt"

	"crosspromo/internal/channel"
	logx "crosspromo/pkg/logx"
)

// Clean archives the registry, empties it and stores the empty snapshot.
func (s *Service) Clean(ctx context.Context, to Replier) error {
	s.mu.Lock()
	n := s.reg.Len()
	var arch channel.Archiver
	if s.store != nil {
		arch = s.store
	}
	if err := s.reg.ArchiveAndClear(ctx, arch); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("archive: %w", err)
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.log.Info("registry cleaned", logx.Int("archived", n))
	return reply(ctx, to, fmt.Sprintf("#cleaned #%dchannels", n))
}

// Refresh looks up every registered channel again, pausing RefreshDelay
// between lookups, and stores the updated snapshot. Lookup failures keep the
// stale record. The full list is sent once done.
func (s *Service) Refresh(ctx context.Context, to Replier) error {
	if err := reply(ctx, to, "#refreshing"); err != nil {
		return err
	}
	delay := s.Config().RefreshDelay
	all := s.reg.All()
	updated := 0
	var stopped error
	for i, c := range all {
		if i > 0 {
			if stopped = sleepCtx(ctx, delay); stopped != nil {
				break
			}
		}
		if s.refreshOne(ctx, c.Name) {
			updated++
		}
	}

	// Counts already refreshed in memory are stored even when the run was
	// cut short.
	s.mu.Lock()
	s.persistLocked(context.WithoutCancel(ctx))
	s.mu.Unlock()
	if stopped != nil {
		s.log.Warn("registry refresh interrupted", logx.Int("channels", len(all)), logx.Int("updated", updated), logx.Err(stopped))
		return stopped
	}

	s.log.Info("registry refreshed", logx.Int("channels", len(all)), logx.Int("updated", updated))
	if err := reply(ctx, to, "#refreshed"); err != nil {
		return err
	}
	if to == nil {
		return nil
	}
	return s.Show(ctx, RangeAll, ViewList, to)
}

func (s *Service) refreshOne(ctx context.Context, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.reg.Get(name)
	if !ok {
		// Removed while the refresh was running.
		return false
	}
	info, fresh := s.lookup(ctx, name)
	if !fresh {
		return false
	}
	cur.Count = info.Count
	if info.Handle != name {
		s.reg.Remove(name)
		cur.Name = info.Handle
	}
	s.reg.Upsert(cur)
	return true
}

// ErrPublishDisabled is returned by Republish when no target chat is set.
var ErrPublishDisabled = errors.New("publish chat not configured")

// Republish renders the configured final distribution and hands every list
// to post, which delivers it to the publish chat.
func (s *Service) Republish(ctx context.Context, post func(ctx context.Context, chatID int64, text string) error) error {
	cfg := s.Config().Publish
	if cfg.ChatID == 0 || post == nil {
		return ErrPublishDisabled
	}
	r, ok := LookupRange(cfg.Range)
	if !ok {
		return fmt.Errorf("unknown publish range %q", cfg.Range)
	}
	texts, err := s.FinalTexts(r, cfg.Lists, cfg.Labels)
	if err != nil {
		return err
	}
	for _, t := range texts {
		if err := post(ctx, cfg.ChatID, t); err != nil {
			return err
		}
	}
	s.log.Info("final lists published", logx.String("range", r.Name), logx.Int("lists", len(texts)), logx.Int64("chat_id", cfg.ChatID))
	return nil
}
