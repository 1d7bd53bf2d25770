package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "crosspromo/pkg/logx"
)

// ChatClient is the slice of the Telegram client used for lookups.
type ChatClient interface {
	ChatByUsername(name string) (*tele.Chat, error)
	Len(chat *tele.Chat) (int, error)
}

type Config struct {
	RatePerSec float64
	Timeout    time.Duration
}

// Telegram resolves channels through one or more bot clients, rotating
// between them on every lookup.
type Telegram struct {
	clients []ChatClient
	limiter *rate.Limiter
	timeout time.Duration
	next    atomic.Uint64
	log     logx.Logger
}

// NewTelegramClients builds offline clients for extra lookup tokens; they
// never poll, they only issue getChat/getChatMemberCount calls.
func NewTelegramClients(tokens []string) ([]ChatClient, error) {
	out := make([]ChatClient, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		b, err := tele.NewBot(tele.Settings{Token: tok, Offline: true})
		if err != nil {
			return nil, fmt.Errorf("metadata bot: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func NewTelegram(cfg Config, log logx.Logger, clients ...ChatClient) (*Telegram, error) {
	if len(clients) == 0 {
		return nil, errors.New("metadata: no telegram clients")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{clients: clients, limiter: lim, timeout: timeout, log: log}, nil
}

// SetRate adjusts the lookup rate; <= 0 removes the limit.
func (t *Telegram) SetRate(perSec float64) {
	if perSec <= 0 {
		t.limiter.SetLimit(rate.Inf)
		return
	}
	t.limiter.SetLimit(rate.Limit(perSec))
}

func (t *Telegram) Lookup(ctx context.Context, handle string) (Info, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return Info{}, fmt.Errorf("%w: empty handle", ErrUnavailable)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c := t.clients[int(t.next.Add(1)-1)%len(t.clients)]

	type result struct {
		info Info
		err  error
	}
	done := make(chan result, 1)
	go func() {
		info, err := lookup(c, handle)
		done <- result{info, err}
	}()

	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	select {
	case <-tctx.Done():
		return Info{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, handle, tctx.Err())
	case r := <-done:
		if r.err != nil {
			t.log.Debug("lookup failed", logx.String("handle", handle), logx.Err(r.err))
			return Info{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, handle, r.err)
		}
		return r.info, nil
	}
}

func lookup(c ChatClient, handle string) (Info, error) {
	chat, err := c.ChatByUsername(handle)
	if err != nil {
		return Info{}, err
	}
	n, err := c.Len(chat)
	if err != nil {
		return Info{}, err
	}
	info := Info{Handle: handle, Count: n}
	if chat.Username != "" {
		info.Handle = "@" + chat.Username
	}
	return info, nil
}
