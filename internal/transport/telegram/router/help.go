package router

import (
	"html"
	"strings"
)

// helpText renders help for Telegram HTML parse mode.
func (m *Manager) helpText(args []string) string {
	if len(args) > 0 {
		word := sanitizeTelegramCommand(strings.TrimPrefix(args[0], "/"))
		c, ok := m.lookup(word)
		if !ok {
			return "❓ <b>Unknown command</b>\nType <code>/help</code> for the list."
		}
		return commandHelp(*c)
	}

	lines := []string{"📚 <b>Commands</b>", "Type <code>/help &lt;cmd&gt;</code> for details.", ""}
	for _, c := range m.list() {
		prefix := "• "
		if c.Access == AccessOwnerOnly {
			prefix = "• 🔒 "
		}
		line := prefix + "<code>/" + html.EscapeString(c.Name) + "</code>"
		if d := strings.TrimSpace(c.Description); d != "" {
			line += " : " + html.EscapeString(d)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func commandHelp(c Command) string {
	lines := []string{"📚 <b>Help</b> <code>/" + html.EscapeString(c.Name) + "</code>"}
	if d := strings.TrimSpace(c.Description); d != "" {
		lines = append(lines, html.EscapeString(d))
	}
	if c.Access == AccessOwnerOnly {
		lines = append(lines, "🔒 <i>Owner only</i>")
	}
	if u := strings.TrimSpace(c.Usage); u != "" {
		lines = append(lines, "", "<b>Usage</b>", "<pre>"+html.EscapeString(u)+"</pre>")
	}
	if len(c.Aliases) > 0 {
		al := make([]string, 0, len(c.Aliases))
		for _, a := range c.Aliases {
			al = append(al, "<code>/"+html.EscapeString(a)+"</code>")
		}
		lines = append(lines, "", "<b>Aliases</b> "+strings.Join(al, " "))
	}
	return strings.Join(lines, "\n")
}
