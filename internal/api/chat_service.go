package api

import (
	"context"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/domain"
)

func (s *Service) ListProfiles(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	self := ""
	if u, ok := s.deps.Sessions.CurrentUser(); ok {
		self = u.ID
	}
	var out []domain.Profile
	for _, p := range s.deps.Directory.All() {
		if p.ID != self {
			out = append(out, p)
		}
	}
	return toStruct(ProfilesResponse{Profiles: out})
}

func (s *Service) ListChats(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(ChatsResponse{Chats: s.deps.Chats.ChatList()})
}

// OpenChat returns the direct chat with a user, creating it when needed.
func (s *Service) OpenChat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req OpenChatRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	me, err := s.signedIn("open chat")
	if err != nil {
		return nil, err
	}

	var counterpart domain.Profile
	switch {
	case req.UserID != "":
		counterpart, err = s.deps.Directory.Lookup(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
	case strings.TrimSpace(req.Username) != "":
		p, ok := s.deps.Directory.ResolveByUsername(strings.TrimSpace(req.Username))
		if !ok {
			return nil, apperr.Errorf(apperr.NotFound, "open chat", "no user named %q", req.Username)
		}
		counterpart = p
	default:
		return nil, invalid("user_id or username is required")
	}
	if counterpart.ID == me.ID {
		return nil, invalid("cannot open a chat with yourself")
	}

	id, err := s.deps.Chats.CreateOrGetChat(ctx, counterpart.ID, counterpart.Username, counterpart.AvatarRef, me.ID)
	if err != nil {
		return nil, err
	}
	return toStruct(ChatRequest{ChatID: id})
}

func (s *Service) SetActiveChat(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ChatRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	if !s.deps.Chats.SetActiveChat(req.ChatID) {
		return nil, apperr.Errorf(apperr.NotFound, "set active chat", "no chat %s", req.ChatID)
	}
	return toStruct(req)
}

func (s *Service) signedIn(op string) (domain.Profile, error) {
	u, ok := s.deps.Sessions.CurrentUser()
	if !ok || !s.deps.Sessions.Authenticated() {
		return domain.Profile{}, apperr.Errorf(apperr.Auth, op, "not signed in")
	}
	return u, nil
}
