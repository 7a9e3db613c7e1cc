// Package mode decides whether the sync layer talks to a remote store or runs disconnected.
package mode

import (
	"strings"

	"github.com/matheus3301/chatsync/internal/config"
)

// Mode is the backend the daemon runs against.
type Mode string

const (
	Live  Mode = "live"
	Local Mode = "local"
)

// placeholders are template values shipped in sample configs. They count as unset.
var placeholders = map[string]bool{
	"your_supabase_project_url": true,
	"your_project_url":          true,
	"your_supabase_anon_key":    true,
	"your_anon_key":             true,
	"changeme":                  true,
}

func isPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

// Configured reports whether remote points at a usable store: endpoint and key
// are both set and neither is a placeholder.
func Configured(remote config.Remote) bool {
	endpoint := strings.TrimSpace(remote.Endpoint)
	key := strings.TrimSpace(remote.Key)
	if endpoint == "" || key == "" {
		return false
	}
	return !isPlaceholder(endpoint) && !isPlaceholder(key)
}

// Select returns Live when the remote is configured, Local otherwise.
func Select(remote config.Remote) Mode {
	if Configured(remote) {
		return Live
	}
	return Local
}
