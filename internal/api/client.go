package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/theme"
)

// Client is a typed client for the daemon's RPC service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket. The connection is lazy: errors
// surface on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return fromStatus(method, err)
	}
	if resp == nil {
		return nil
	}
	return fromStruct(out, resp)
}

func (c *Client) Status(ctx context.Context) (StatusInfo, error) {
	var info StatusInfo
	err := c.call(ctx, MethodGetStatus, nil, &info)
	return info, err
}

func (c *Client) Login(ctx context.Context, identity, secret string) (StatusInfo, error) {
	var info StatusInfo
	err := c.call(ctx, MethodLogin, Credentials{Identity: identity, Secret: secret}, &info)
	return info, err
}

func (c *Client) SignUp(ctx context.Context, identity, secret string, hints domain.ProfileHints) (StatusInfo, error) {
	var info StatusInfo
	req := Credentials{Identity: identity, Secret: secret, Username: hints.Username, AvatarRef: hints.AvatarRef}
	err := c.call(ctx, MethodSignUp, req, &info)
	return info, err
}

func (c *Client) Logout(ctx context.Context) (StatusInfo, error) {
	var info StatusInfo
	err := c.call(ctx, MethodLogout, nil, &info)
	return info, err
}

func (c *Client) SetPresence(ctx context.Context, st domain.Status) (StatusInfo, error) {
	var info StatusInfo
	err := c.call(ctx, MethodSetPresence, PresenceRequest{Status: st}, &info)
	return info, err
}

func (c *Client) SetUsername(ctx context.Context, name string) (StatusInfo, error) {
	var info StatusInfo
	err := c.call(ctx, MethodSetUsername, UsernameRequest{Username: name}, &info)
	return info, err
}

func (c *Client) Profiles(ctx context.Context) ([]domain.Profile, error) {
	var resp ProfilesResponse
	err := c.call(ctx, MethodListProfiles, nil, &resp)
	return resp.Profiles, err
}

func (c *Client) Chats(ctx context.Context) ([]domain.ChatSummary, error) {
	var resp ChatsResponse
	err := c.call(ctx, MethodListChats, nil, &resp)
	return resp.Chats, err
}

// OpenChat returns the id of the direct chat with the user, creating it when needed.
func (c *Client) OpenChat(ctx context.Context, req OpenChatRequest) (string, error) {
	var resp ChatRequest
	err := c.call(ctx, MethodOpenChat, req, &resp)
	return resp.ChatID, err
}

func (c *Client) SetActiveChat(ctx context.Context, chatID string) error {
	return c.call(ctx, MethodSetActiveChat, ChatRequest{ChatID: chatID}, nil)
}

func (c *Client) Messages(ctx context.Context, chatID string) ([]domain.Message, error) {
	var resp MessagesResponse
	err := c.call(ctx, MethodListMessages, ChatRequest{ChatID: chatID}, &resp)
	return resp.Messages, err
}

func (c *Client) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	var resp SendResponse
	err := c.call(ctx, MethodSendMessage, req, &resp)
	return resp, err
}

func (c *Client) Theme(ctx context.Context) (theme.Theme, error) {
	var resp ThemeMessage
	if err := c.call(ctx, MethodGetTheme, nil, &resp); err != nil {
		return "", err
	}
	return theme.Parse(resp.Theme)
}

func (c *Client) SetTheme(ctx context.Context, t theme.Theme) error {
	return c.call(ctx, MethodSetTheme, ThemeMessage{Theme: string(t)}, nil)
}

// WatchEvents streams events whose kind starts with namespace. The channel is closed
// when ctx is done or the stream breaks.
func (c *Client) WatchEvents(ctx context.Context, namespace string) (<-chan Event, error) {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: MethodWatchEvents, ServerStreams: true}, fullMethod(MethodWatchEvents))
	if err != nil {
		return nil, fromStatus(MethodWatchEvents, err)
	}
	in, err := toStruct(WatchRequest{Namespace: namespace})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, fromStatus(MethodWatchEvents, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fromStatus(MethodWatchEvents, err)
	}

	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		for {
			out := new(structpb.Struct)
			if err := stream.RecvMsg(out); err != nil {
				return
			}
			var evt Event
			if err := fromStruct(out, &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
