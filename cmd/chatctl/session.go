package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/theme"
	"github.com/matheus3301/chatsync/internal/workspace"
)

var (
	secretFlag   string
	usernameFlag string
	avatarFlag   string
)

func init() {
	loginCmd.Flags().StringVar(&secretFlag, "secret", "", "password (read from stdin when empty)")
	signupCmd.Flags().StringVar(&secretFlag, "secret", "", "password (read from stdin when empty)")
	signupCmd.Flags().StringVar(&usernameFlag, "username", "", "username for the new profile")
	signupCmd.Flags().StringVar(&avatarFlag, "avatar", "", "avatar reference for the new profile")

	rootCmd.AddCommand(statusCmd, loginCmd, signupCmd, logoutCmd, presenceCmd, renameCmd,
		profilesCmd, themeCmd, workspacesCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <identity>",
	Short: "Sign in with an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		st, err := c.Login(ctx, args[0], secret)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup <identity>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		st, err := c.SignUp(ctx, args[0], secret, domain.ProfileHints{Username: usernameFlag, AvatarRef: avatarFlag})
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear cached data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		st, err := c.Logout(ctx)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var presenceCmd = &cobra.Command{
	Use:       "presence <online|offline>",
	Short:     "Set your presence",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.StatusOnline), string(domain.StatusOffline)},
	RunE: func(cmd *cobra.Command, args []string) error {
		st := domain.Status(strings.ToLower(args[0]))
		if !st.Valid() {
			return fmt.Errorf("invalid presence %q", args[0])
		}
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		info, err := c.SetPresence(ctx, st)
		if err != nil {
			return err
		}
		printStatus(info)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <username>",
	Short: "Change your username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		info, err := c.SetUsername(ctx, args[0])
		if err != nil {
			return err
		}
		printStatus(info)
		return nil
	},
}

var profilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"people"},
	Short:   "List other users in the directory",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		list, err := c.Profiles(ctx)
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(list)
			return nil
		}
		if len(list) == 0 {
			fmt.Println("No other users.")
			return nil
		}
		for _, p := range list {
			fmt.Printf("%-20s %-8s %s\n", p.Username, p.Status, p.ID)
		}
		return nil
	},
}

var themeCmd = &cobra.Command{
	Use:   "theme [light|dark]",
	Short: "Show or set the theme preference",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		if len(args) == 1 {
			t, err := theme.Parse(args[0])
			if err != nil {
				return err
			}
			if err := c.SetTheme(ctx, t); err != nil {
				return err
			}
		}
		t, err := c.Theme(ctx)
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(map[string]string{"theme": string(t)})
			return nil
		}
		fmt.Println(t)
		return nil
	},
}

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List known workspaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(filepath.Join(workspace.BaseDir(), "workspaces"))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		type row struct {
			Name    string `json:"name"`
			Path    string `json:"path"`
			Running bool   `json:"running"`
		}
		var rows []row
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			_, statErr := os.Stat(workspace.SocketPath(e.Name()))
			rows = append(rows, row{Name: e.Name(), Path: workspace.Dir(e.Name()), Running: statErr == nil})
		}
		if jsonFlag {
			outputJSON(rows)
			return nil
		}
		if len(rows) == 0 {
			fmt.Println("No workspaces found.")
			return nil
		}
		for _, r := range rows {
			running := "stopped"
			if r.Running {
				running = "running"
			}
			fmt.Printf("%-20s %s (%s)\n", r.Name, r.Path, running)
		}
		return nil
	},
}

// readSecret returns --secret or the first line of stdin.
func readSecret(cmd *cobra.Command) (string, error) {
	if secretFlag != "" {
		return secretFlag, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
