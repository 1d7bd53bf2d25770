package router

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	kit "crosspromo/internal/transport"
)

const (
	maxMenuCommands = 100
	maxCommandLen   = 32
	maxCommandDesc  = 256
)

// sanitizeTelegramCommand folds s into Telegram's [a-z0-9_]{1,32} command
// alphabet. Separators become a single underscore; a leading digit gets a
// "cmd_" prefix.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == '/', unicode.IsSpace(r):
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > maxCommandLen {
		out = strings.TrimRight(out[:maxCommandLen], "_")
	}
	return out
}

// routeCommandName is the underscore shortcut for a route:
// ["list", "0_500", "final"] is reachable as /list_0_500_final.
func routeCommandName(route []string) string {
	return sanitizeTelegramCommand(strings.Join(route, "_"))
}

// buildTelegramMenuCommands lists top-level commands first, then the
// shortcuts of multi-token routes, capped at Telegram's menu limit.
func buildTelegramMenuCommands(root *cmdNode, cmds []Command) []kit.BotCommand {
	type entry struct {
		kit.BotCommand
		prio int
	}
	seen := map[string]bool{}
	var entries []entry
	add := func(name, desc string, prio int) {
		name = sanitizeTelegramCommand(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if r := []rune(desc); len(r) > maxCommandDesc {
			desc = string(r[:maxCommandDesc])
		}
		entries = append(entries, entry{kit.BotCommand{Command: name, Description: desc}, prio})
	}

	for _, name := range root.childNames() {
		add(name, groupDescription(root.children[name]), 0)
	}
	for _, c := range cmds {
		if route := splitRoute(c.Route); len(route) > 1 {
			desc := c.Description
			if strings.TrimSpace(desc) == "" {
				desc = strings.Join(route, " ")
			}
			add(routeCommandName(route), desc, 1)
		}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Or(cmp.Compare(a.prio, b.prio), strings.Compare(a.Command, b.Command))
	})
	out := make([]kit.BotCommand, 0, min(len(entries), maxMenuCommands))
	for _, e := range entries[:min(len(entries), maxMenuCommands)] {
		out = append(out, e.BotCommand)
	}
	return out
}
