package adapter

import (
	"context"
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "crosspromo/internal/transport"
	logx "crosspromo/pkg/logx"
)

// textLimit stays under Telegram's 4096 rune message cap.
const textLimit = 4000

// chunkText packs whole lines into chunks of at most limit runes. A line
// longer than limit is cut at rune boundaries.
func chunkText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	if len([]rune(s)) <= limit {
		return []string{s}
	}

	var (
		out  []string
		cur  []rune
		push = func() {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
		}
	)
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		r := []rune(line)
		for len(r) > limit {
			push()
			out = append(out, string(r[:limit]))
			r = r[limit:]
		}
		sep := 0
		if len(cur) > 0 {
			sep = 1
		}
		if len(cur)+sep+len(r) > limit {
			push()
			sep = 0
		}
		if sep == 1 {
			cur = append(cur, '\n')
		}
		cur = append(cur, r...)
	}
	push()
	return out
}

// SendText delivers text in as many messages as needed and returns the
// first one.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	send := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}

	var first kit.MessageRef
	for i, chunk := range chunkText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, send)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// UpdateMenuCommands calls setMyCommands only when the list changed.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	list := menuCommands(cmds)

	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if a.menu != nil && slices.Equal(a.menu, list) {
		return nil
	}
	if err := a.bot.SetCommands(list); err != nil {
		return err
	}
	a.menu = list
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}

func menuCommands(cmds []kit.BotCommand) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		desc := c.Description
		if desc == "" {
			desc = c.Command
		}
		out = append(out, tele.Command{Text: c.Command, Description: desc})
	}
	return out
}
