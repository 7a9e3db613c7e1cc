package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

func chatTopic(chatID string) string { return "chat:" + chatID }

type chatRecord struct {
	ID            string    `json:"id"`
	IsGroup       bool      `json:"is_group"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatar_url"`
	CreatedAt     time.Time `json:"created_at"`
	ParticipantID string    `json:"participant_id"`
}

type messageRecord struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
	Type       string    `json:"type"`
	ImageURL   string    `json:"image_url"`
}

func (r messageRecord) toDomain() domain.Message {
	typ := domain.MessageType(r.Type)
	if typ != domain.MessageImage {
		typ = domain.MessageText
	}
	return domain.Message{
		ID:         r.ID,
		ChatID:     r.ChatID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Text:       r.Content,
		Timestamp:  r.CreatedAt,
		Read:       r.Read,
		Type:       typ,
		ImageRef:   r.ImageURL,
	}
}

func (c *Client) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	var recs []chatRecord
	err := c.do(ctx, request{
		op:     "list chats",
		method: http.MethodGet,
		path:   "/rest/v1/users/" + url.PathEscape(userID) + "/chats",
	}, &recs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chat, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.Chat{
			ID:                r.ID,
			IsGroup:           r.IsGroup,
			DisplayName:       r.Name,
			AvatarRef:         r.AvatarURL,
			CreatedAt:         r.CreatedAt,
			ParticipantUserID: r.ParticipantID,
			CurrentUserID:     userID,
		})
	}
	return out, nil
}

// CreateOrGetDirectChat calls the store's atomic get-or-create procedure.
func (c *Client) CreateOrGetDirectChat(ctx context.Context, userA, userB string) (string, error) {
	var resp struct {
		ChatID string `json:"chat_id"`
	}
	err := c.do(ctx, request{
		op:     "create direct chat",
		method: http.MethodPost,
		path:   "/rest/v1/rpc/create_or_get_direct_chat",
		body:   map[string]string{"user_a": userA, "user_b": userB},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ChatID == "" {
		return "", apperr.Errorf(apperr.Transient, "create direct chat", "empty chat id in response")
	}
	return resp.ChatID, nil
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	var recs []messageRecord
	err := c.do(ctx, request{
		op:     "list messages",
		method: http.MethodGet,
		path:   "/rest/v1/chats/" + url.PathEscape(chatID) + "/messages",
		query:  url.Values{"order": {"created_at.asc"}},
	}, &recs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(recs))
	for _, r := range recs {
		if r.ChatID == "" {
			r.ChatID = chatID
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// InsertMessage posts the draft. The draft's ClientID is sent as the idempotency key so a
// retried send is stored once.
func (c *Client) InsertMessage(ctx context.Context, chatID string, draft domain.Draft) (domain.Message, error) {
	draft = draft.Normalize()
	header := http.Header{}
	if draft.ClientID != "" {
		header.Set("Idempotency-Key", draft.ClientID)
	}
	body := map[string]string{
		"sender_id":   draft.SenderID,
		"sender_name": draft.SenderName,
		"content":     draft.Text,
		"type":        string(draft.Type),
	}
	if draft.ImageRef != "" {
		body["image_url"] = draft.ImageRef
	}
	var rec messageRecord
	err := c.do(ctx, request{
		op:     "insert message",
		method: http.MethodPost,
		path:   "/rest/v1/chats/" + url.PathEscape(chatID) + "/messages",
		body:   body,
		header: header,
	}, &rec)
	if err != nil {
		return domain.Message{}, err
	}
	if rec.ID == "" {
		return domain.Message{}, apperr.Errorf(apperr.Transient, "insert message", "store did not return the message")
	}
	if rec.ChatID == "" {
		rec.ChatID = chatID
	}
	return rec.toDomain(), nil
}

func (c *Client) OnMessageInsert(ctx context.Context, chatID string, fn func(domain.Message)) (backend.Subscription, error) {
	return c.rt.subscribe(ctx, chatTopic(chatID), func(env envelope) {
		if env.Type != eventInsert {
			return
		}
		var rec messageRecord
		if err := json.Unmarshal(env.Record, &rec); err != nil || rec.ID == "" {
			c.logger.Debug("drop malformed message event", zap.String("chat_id", chatID), zap.Error(err))
			return
		}
		if rec.ChatID == "" {
			rec.ChatID = chatID
		}
		if rec.ChatID != chatID {
			return
		}
		fn(rec.toDomain())
	})
}
