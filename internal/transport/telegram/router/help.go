package router

import (
	"html"
	"strings"
)

// helpText renders HTML help. With no path it lists every command by its
// Telegram shortcut; with a path it describes that command or group.
func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	node, route := root, []string(nil)
	if len(path) > 0 {
		if leaf, ok := alias[path[0]]; ok && leaf != nil && leaf.cmd != nil {
			node, route = leaf, splitRoute(leaf.cmd.Route)
		} else if n := root.find(path); n != nil {
			node, route = n, path
		} else {
			return "❓ <b>Unknown command</b>\nSend <code>/help</code> for the list."
		}
	}

	var b strings.Builder
	if len(route) == 0 {
		b.WriteString("📚 <b>Commands</b>\n")
	} else {
		b.WriteString("📚 <code>/" + html.EscapeString(strings.Join(route, " ")) + "</code>\n")
	}

	if c := node.cmd; c != nil && len(route) > 0 {
		if d := strings.TrimSpace(c.Description); d != "" {
			b.WriteString(html.EscapeString(d) + "\n")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			b.WriteString("\n<b>Usage</b>\n<code>" + html.EscapeString(u) + "</code>\n")
		}
		if len(c.Aliases) > 0 {
			b.WriteString("\n<b>Also</b> ")
			for i, a := range c.Aliases {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString("<code>/" + html.EscapeString(a) + "</code>")
			}
			b.WriteString("\n")
		}
	}

	var rows []string
	for _, l := range node.leaves(route) {
		if l.cmd == node.cmd {
			continue
		}
		row := "• <code>/" + html.EscapeString(routeCommandName(l.route)) + "</code>"
		if d := strings.TrimSpace(l.cmd.Description); d != "" {
			row += " " + html.EscapeString(d)
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		b.WriteString("\n" + strings.Join(rows, "\n") + "\n")
	}

	if len(route) == 0 {
		b.WriteString("\nRegistry edits: <code>#new @h desc</code>, <code>#confirm @h</code>, <code>#shared @h</code>, <code>#remove @h</code>.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// groupDescription names a group by its first few subcommands.
func groupDescription(n *cmdNode) string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	shown := kids[:min(3, len(kids))]
	s := strings.Join(shown, ", ")
	if len(kids) > len(shown) {
		s += ", …"
	}
	return "subcommand: " + s
}
