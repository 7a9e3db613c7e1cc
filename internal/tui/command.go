package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// commands are the canonical ':' command names, completed by the prompt.
var commands = []string{"chat", "help", "id", "logout", "offline", "online", "people", "quit", "rename", "theme"}

var commandAliases = map[string]string{
	"q":    "quit",
	"exit": "quit",
	"h":    "help",
	"open": "chat",
	"dm":   "chat",
	"me":   "id",
	"nick": "rename",
}

// ParseCommand parses a command string (without the leading ':'). Aliases resolve to
// their canonical name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if canonical, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = canonical
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
