package api

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/chats"
	"github.com/matheus3301/chatsync/internal/domain"
)

func (s *Service) ListMessages(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ChatRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	if _, ok := s.deps.Chats.Chat(req.ChatID); !ok {
		return nil, apperr.Errorf(apperr.NotFound, "list messages", "no chat %s", req.ChatID)
	}
	return toStruct(MessagesResponse{Messages: s.deps.Chats.Messages(req.ChatID)})
}

func (s *Service) SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SendRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, invalid(err.Error())
	}
	if strings.TrimSpace(req.Text) == "" && req.ImageRef == "" {
		return nil, invalid("message is empty")
	}
	me, err := s.signedIn("send message")
	if err != nil {
		return nil, err
	}

	msg, err := s.deps.Chats.SendMessage(ctx, req.ChatID, domain.Draft{
		SenderID:   me.ID,
		SenderName: me.Username,
		Text:       req.Text,
		Type:       req.Type,
		ImageRef:   req.ImageRef,
	})
	switch {
	case errors.Is(err, chats.ErrQueued):
		return toStruct(SendResponse{Queued: true})
	case err != nil:
		return nil, err
	case msg == nil:
		return toStruct(SendResponse{Dropped: true})
	}
	return toStruct(SendResponse{Message: msg})
}
