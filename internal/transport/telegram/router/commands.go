// Package router turns Telegram messages into command invocations. Slash
// commands are matched against a route tree; owner free text goes to a
// single ordered text handler.
package router

import (
	"context"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "crosspromo/internal/runtime/supervisor"
	kit "crosspromo/internal/transport"
	logx "crosspromo/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Route is a space-separated path such as "list 0_500 final". Multi-token
	// routes are also reachable as one word: /list_0_500_final.
	Route       string
	Aliases     []string // extra single-word names, e.g. "clean"
	Description string
	Usage       string
	Access      Access

	Timeout time.Duration
	Handle  HandlerFunc
}

const queueSize = 256

type CommandManager struct {
	mu     sync.RWMutex
	root   *cmdNode
	alias  map[string]*cmdNode
	text   HandlerFunc
	owners []int64

	log     logx.Logger
	adapter kit.Adapter

	jobs chan func(context.Context)
	// textJobs has one consumer so free text keeps arrival order.
	textJobs chan func(context.Context)
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CommandManager{
		root:     newRoot(),
		alias:    map[string]*cmdNode{},
		owners:   slices.Clone(owners),
		log:      log,
		adapter:  adapter,
		jobs:     make(chan func(context.Context), queueSize),
		textJobs: make(chan func(context.Context), queueSize),
	}
}

// SetOwners replaces the owner list; safe during hot reload.
func (m *CommandManager) SetOwners(owners []int64) {
	m.mu.Lock()
	m.owners = slices.Clone(owners)
	m.mu.Unlock()
}

func (m *CommandManager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

// SetTextHandler installs the handler for owner messages that are not
// slash commands.
func (m *CommandManager) SetTextHandler(h HandlerFunc) {
	m.mu.Lock()
	m.text = h
	m.mu.Unlock()
}

// SetRegistry replaces the command table, adds /help, and pushes the
// Telegram menu when the adapter supports it.
func (m *CommandManager) SetRegistry(ctx context.Context, cmds []Command) {
	cmds = append(slices.Clone(cmds), Command{
		Route:       "help",
		Aliases:     []string{"h"},
		Description: "show help",
		Usage:       "/help [command]",
		Access:      AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Adapter.SendText(ctx, req.Chat, m.helpText(req.Args), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
			return err
		},
	})

	root := newRoot()
	alias := map[string]*cmdNode{}
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		root.add(route, c)
		leaf := root.find(route)

		// A single-token route never aliases itself: that would hide its
		// subcommands from tree traversal.
		if name := routeCommandName(route); name != "" && (len(route) > 1 || name != route[0]) {
			if _, taken := alias[name]; !taken {
				alias[name] = leaf
			}
		}
		for _, a := range c.Aliases {
			if a = sanitizeTelegramCommand(a); a != "" {
				alias[a] = leaf
			}
		}
	}

	m.mu.Lock()
	m.root, m.alias = root, alias
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		menu := buildTelegramMenuCommands(root, cmds)
		go func() {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(cctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
}

// DispatchLoop routes updates until ctx ends. Commands run on a small
// worker pool; free text runs on its own worker.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	workers := max(runtime.NumCPU(), 2)
	for i := range workers {
		m.startWorker(sup, "command.worker."+strconv.Itoa(i), m.jobs)
	}
	m.startWorker(sup, "text.worker", m.textJobs)
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *CommandManager) startWorker(sup *rtsup.Supervisor, name string, jobs <-chan func(context.Context)) {
	sup.GoRestart(name, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case job := <-jobs:
				job(ctx)
			}
		}
	}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
}

func (m *CommandManager) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	owner := m.isOwner(msg.FromID)

	if !strings.HasPrefix(text, "/") {
		m.mu.RLock()
		h := m.text
		m.mu.RUnlock()
		// Registry edits are operator-only; anyone else is ignored silently.
		if !owner || h == nil {
			return
		}
		m.enqueue(ctx, m.textJobs, Command{Route: "text", Handle: h}, msg, nil)
		return
	}

	tokens := tokenize(text)
	word := strings.TrimPrefix(tokens[0], "/")
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	args := tokens[1:]

	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	node, ok := alias[word]
	if !ok || node.cmd == nil {
		// Walk the tree as far as the args allow: "/list 0_500 final 2 ★ ✦".
		if node, ok = root.child(word); !ok {
			if owner {
				_, _ = m.adapter.SendText(ctx, msg.Target(), "unknown command, try /help", nil)
			}
			return
		}
		path := []string{word}
		for len(args) > 0 {
			next, ok := node.child(args[0])
			if !ok {
				break
			}
			node, path, args = next, append(path, args[0]), args[1:]
		}
		if node.cmd == nil {
			if owner {
				_, _ = m.adapter.SendText(ctx, msg.Target(), m.helpText(path), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
			}
			return
		}
	}

	cmd := *node.cmd
	if cmd.Access == AccessOwnerOnly && !owner {
		m.log.Debug("ignoring command from non-owner", logx.String("cmd", cmd.Route), logx.Int64("from_id", msg.FromID))
		return
	}
	m.enqueue(ctx, m.jobs, cmd, msg, args)
}

// enqueue hands the request to a worker or replies busy when the queue is full.
func (m *CommandManager) enqueue(ctx context.Context, queue chan<- func(context.Context), cmd Command, msg *kit.Message, args []string) {
	id := newRequestID()
	req := &Request{
		ID:      id,
		Chat:    msg.Target(),
		FromID:  msg.FromID,
		Command: cmd.Route,
		Args:    args,
		Text:    msg.Text,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", id),
			logx.String("cmd", cmd.Route),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
		),
	}
	h := Chain(cmd.Handle, Recover(), Log(), ReplyErrors(), Timeout(cmd.Timeout))
	select {
	case queue <- func(wctx context.Context) { _ = h(wctx, req) }:
	default:
		_ = req.Reply(ctx, "busy, try again")
	}
}
