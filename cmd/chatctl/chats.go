package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/domain"
)

var (
	imageFlag     string
	unreadFlag    bool
	namespaceFlag string
	byUserFlag    bool
)

func init() {
	chatsCmd.Flags().BoolVar(&unreadFlag, "unread", false, "show only chats with unread messages")
	sendCmd.Flags().StringVar(&imageFlag, "image", "", "send an image reference instead of text")
	openCmd.Flags().BoolVar(&byUserFlag, "id", false, "treat the argument as a user id instead of a username")
	watchCmd.Flags().StringVar(&namespaceFlag, "namespace", "", "only events whose kind starts with this prefix (e.g. chat.)")

	rootCmd.AddCommand(chatsCmd, messagesCmd, openCmd, readCmd, sendCmd, watchCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		list, err := c.Chats(ctx)
		if err != nil {
			return err
		}
		if unreadFlag {
			filtered := list[:0]
			for _, s := range list {
				if s.UnreadCount > 0 {
					filtered = append(filtered, s)
				}
			}
			list = filtered
		}
		if jsonFlag {
			outputJSON(list)
			return nil
		}
		if len(list) == 0 {
			fmt.Println("No chats.")
			return nil
		}
		for _, s := range list {
			name := s.DisplayName
			if name == "" {
				name = s.ID
			}
			fmt.Printf("%-24s %3d unread  %-16s %s\n", name, s.UnreadCount, lastActive(s), s.ID)
		}
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "Print a chat's messages, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		msgs, err := c.Messages(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(msgs)
			return nil
		}
		for _, m := range msgs {
			body := m.Text
			if m.Type == domain.MessageImage {
				body = "[image] " + m.ImageRef
			}
			fmt.Printf("%s  %-16s %s\n", m.Timestamp.Local().Format("2006-01-02 15:04"), m.SenderName, body)
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <username>",
	Short: "Open (or create) the direct chat with a user and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		req := api.OpenChatRequest{Username: args[0]}
		if byUserFlag {
			req = api.OpenChatRequest{UserID: args[0]}
		}
		chatID, err := c.OpenChat(ctx, req)
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(map[string]string{"chat_id": chatID})
			return nil
		}
		fmt.Println(chatID)
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <chat-id>",
	Short: "Mark a chat's messages read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		// Activating then clearing marks read without leaving the chat active.
		if err := c.SetActiveChat(ctx, args[0]); err != nil {
			return err
		}
		return c.SetActiveChat(ctx, "")
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> [text...]",
	Short: "Send a message to a chat",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := api.SendRequest{ChatID: args[0], Text: strings.Join(args[1:], " ")}
		if imageFlag != "" {
			req.Type = domain.MessageImage
			req.ImageRef = imageFlag
		} else if strings.TrimSpace(req.Text) == "" {
			return fmt.Errorf("message text is empty")
		}
		c, ctx, done, err := connect(cmd)
		if err != nil {
			return err
		}
		defer done()
		resp, err := c.Send(ctx, req)
		if err != nil {
			return err
		}
		if jsonFlag {
			outputJSON(resp)
			return nil
		}
		switch {
		case resp.Queued:
			fmt.Println("Backend unreachable: message queued for retry.")
		case resp.Dropped:
			fmt.Println("Chat not found: message dropped.")
		case resp.Message != nil:
			fmt.Printf("Sent %s\n", resp.Message.ID)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream daemon events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialOnly()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events, err := c.WatchEvents(ctx, namespaceFlag)
		if err != nil {
			return err
		}
		for evt := range events {
			if jsonFlag {
				outputJSON(evt)
				continue
			}
			fmt.Printf("%s  %-26s %s\n", evt.Timestamp.Local().Format(time.TimeOnly), evt.Kind, string(evt.Payload))
		}
		return nil
	},
}

func lastActive(s domain.ChatSummary) string {
	t := s.LastMessageAt
	if t.IsZero() {
		t = s.CreatedAt
	}
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
