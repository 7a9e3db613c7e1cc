package mode

import (
	"testing"

	"github.com/matheus3301/chatsync/internal/config"
)

func TestConfigured(t *testing.T) {
	tests := []struct {
		name   string
		remote config.Remote
		want   bool
	}{
		{"both set", config.Remote{Endpoint: "https://x.supabase.co", Key: "k"}, true},
		{"empty", config.Remote{}, false},
		{"missing key", config.Remote{Endpoint: "https://x.supabase.co"}, false},
		{"missing endpoint", config.Remote{Key: "k"}, false},
		{"whitespace", config.Remote{Endpoint: "  ", Key: "k"}, false},
		{"placeholder endpoint", config.Remote{Endpoint: "your_supabase_project_url", Key: "k"}, false},
		{"placeholder key", config.Remote{Endpoint: "https://x.supabase.co", Key: "YOUR_ANON_KEY"}, false},
		{"realtime alone", config.Remote{RealtimeEndpoint: "redis://localhost:6379"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Configured(tt.remote); got != tt.want {
				t.Errorf("Configured(%+v) = %v, want %v", tt.remote, got, tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	if got := Select(config.Remote{}); got != Local {
		t.Errorf("Select(empty) = %q, want %q", got, Local)
	}
	if got := Select(config.Remote{Endpoint: "https://x.supabase.co", Key: "k"}); got != Live {
		t.Errorf("Select(configured) = %q, want %q", got, Live)
	}
}
