package api

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/theme"
)

func (s *Service) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	info := StatusInfo{
		Workspace:     s.deps.Workspace,
		Mode:          string(s.deps.Mode),
		Authenticated: s.deps.Sessions.Authenticated(),
		Chats:         len(s.deps.Chats.ChatList()),
		ActiveChat:    s.deps.Chats.ActiveChat(),
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
	}
	if s.deps.Status != nil {
		info.State = string(s.deps.Status.Current())
		info.Reason = s.deps.Status.Reason()
	}
	if u, ok := s.deps.Sessions.CurrentUser(); ok {
		info.UserID = u.ID
		info.Username = u.Username
		info.Presence = string(u.Status)
	}
	if s.deps.Themes != nil {
		info.Theme = string(s.deps.Themes.Current())
	}
	return toStruct(info)
}

func (s *Service) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req Credentials
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.deps.Sessions.Login(ctx, req.Identity, req.Secret); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx, nil)
}

func (s *Service) SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req Credentials
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	hints := domain.ProfileHints{Username: req.Username, AvatarRef: req.AvatarRef}
	if err := s.deps.Sessions.SignUp(ctx, req.Identity, req.Secret, hints); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx, nil)
}

func (s *Service) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.deps.Sessions.Logout(ctx); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx, nil)
}

func (s *Service) SetPresence(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req PresenceRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	if !req.Status.Valid() {
		return nil, invalid("status must be online or offline")
	}
	if err := s.deps.Sessions.SetStatus(ctx, req.Status); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx, nil)
}

func (s *Service) SetUsername(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req UsernameRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.deps.Sessions.SetUsername(ctx, req.Username); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx, nil)
}

func (s *Service) GetTheme(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(ThemeMessage{Theme: string(s.deps.Themes.Current())})
}

func (s *Service) SetTheme(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ThemeMessage
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	t, err := theme.Parse(req.Theme)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.deps.Themes.Set(t); err != nil {
		return nil, err
	}
	return toStruct(ThemeMessage{Theme: string(t)})
}
