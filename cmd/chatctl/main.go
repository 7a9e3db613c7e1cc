package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/workspace"
)

var (
	workspaceFlag string
	jsonFlag      bool
	timeoutFlag   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "chatctl",
	Short:         "Control a running chatsync daemon",
	Long:          "Command-line client for chatsyncd.\nInspect the session, list chats and send messages without the TUI.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "workspace name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "per-command timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dialOnly resolves the workspace and dials its daemon.
func dialOnly() (*api.Client, error) {
	name := workspace.Resolve(workspaceFlag)
	if err := workspace.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := api.Dial(workspace.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for workspace %q: %w", name, err)
	}
	return c, nil
}

// connect dials the daemon and returns a context carrying the command timeout.
func connect(cmd *cobra.Command) (*api.Client, context.Context, func(), error) {
	c, err := dialOnly()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	return c, ctx, func() {
		cancel()
		_ = c.Close()
	}, nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func printStatus(st api.StatusInfo) {
	if jsonFlag {
		outputJSON(st)
		return
	}
	fmt.Printf("Workspace: %s\n", st.Workspace)
	fmt.Printf("Mode:      %s\n", st.Mode)
	fmt.Printf("State:     %s\n", st.State)
	if st.Reason != "" {
		fmt.Printf("Reason:    %s\n", st.Reason)
	}
	if st.Authenticated {
		fmt.Printf("User:      %s (%s)\n", st.Username, st.UserID)
		fmt.Printf("Presence:  %s\n", st.Presence)
	} else {
		fmt.Println("User:      (signed out)")
	}
	fmt.Printf("Chats:     %d\n", st.Chats)
	fmt.Printf("Theme:     %s\n", st.Theme)
	fmt.Printf("Uptime:    %dms\n", st.UptimeMs)
}
