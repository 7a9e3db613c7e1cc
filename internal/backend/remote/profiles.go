package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

const profilesTopic = "profiles"

type profileRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r profileRecord) toDomain() domain.Profile {
	status := domain.Status(r.Status)
	if !status.Valid() {
		status = domain.StatusOffline
	}
	return domain.Profile{
		ID:        r.ID,
		Username:  r.Username,
		AvatarRef: r.AvatarURL,
		Status:    status,
		UpdatedAt: r.UpdatedAt,
	}
}

func (c *Client) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var rec profileRecord
	err := c.do(ctx, request{
		op:     "get profile",
		method: http.MethodGet,
		path:   "/rest/v1/profiles/" + url.PathEscape(userID),
	}, &rec)
	if err != nil {
		return domain.Profile{}, err
	}
	return rec.toDomain(), nil
}

func (c *Client) CreateProfile(ctx context.Context, userID string, hints domain.ProfileHints) (domain.Profile, error) {
	name := hints.Username
	if name == "" {
		name = "user"
	}
	avatar := hints.AvatarRef
	if avatar == "" {
		avatar = domain.DefaultAvatar(name)
	}
	var rec profileRecord
	err := c.do(ctx, request{
		op:     "create profile",
		method: http.MethodPost,
		path:   "/rest/v1/profiles",
		body: map[string]string{
			"id":         userID,
			"username":   name,
			"avatar_url": avatar,
			"status":     string(domain.StatusOffline),
		},
	}, &rec)
	if err != nil {
		return domain.Profile{}, err
	}
	if rec.ID == "" {
		rec = profileRecord{ID: userID, Username: name, AvatarURL: avatar, Status: string(domain.StatusOffline), UpdatedAt: c.now()}
	}
	return rec.toDomain(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) error {
	fields := map[string]any{"updated_at": c.now().UTC()}
	if upd.Username != nil {
		fields["username"] = *upd.Username
	}
	if upd.Status != nil {
		fields["status"] = string(*upd.Status)
	}
	return c.do(ctx, request{
		op:     "update profile",
		method: http.MethodPatch,
		path:   "/rest/v1/profiles/" + url.PathEscape(userID),
		body:   fields,
	}, nil)
}

func (c *Client) ListProfiles(ctx context.Context, excluding string) ([]domain.Profile, error) {
	var q url.Values
	if excluding != "" {
		q = url.Values{"exclude": {excluding}}
	}
	var recs []profileRecord
	err := c.do(ctx, request{
		op:     "list profiles",
		method: http.MethodGet,
		path:   "/rest/v1/profiles",
		query:  q,
	}, &recs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Profile, 0, len(recs))
	for _, r := range recs {
		if r.ID == excluding {
			continue
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) OnProfileChange(ctx context.Context, fn func(domain.ProfileEvent)) (backend.Subscription, error) {
	return c.rt.subscribe(ctx, profilesTopic, func(env envelope) {
		var rec profileRecord
		if err := json.Unmarshal(env.Record, &rec); err != nil || rec.ID == "" {
			c.logger.Debug("drop malformed profile event", zap.String("type", env.Type), zap.Error(err))
			return
		}
		var kind domain.ProfileEventKind
		switch env.Type {
		case eventInsert:
			kind = domain.ProfileInserted
		case eventUpdate:
			kind = domain.ProfileUpdated
		case eventDelete:
			kind = domain.ProfileDeleted
		default:
			return
		}
		fn(domain.ProfileEvent{Kind: kind, Profile: rec.toDomain()})
	})
}
