// Package fixture holds the deterministic data shown when no remote store is reachable.
package fixture

import (
	"time"

	"github.com/matheus3301/chatsync/internal/domain"
)

// GroupChatID is the id of the fixture team chat.
const GroupChatID = "group"

const groupName = "Team Chat"

var seedProfiles = []domain.Profile{
	{ID: "1", Username: "Ahmet", AvatarRef: "https://ui-avatars.com/api/?name=Ahmet&background=4A90E2", Status: domain.StatusOnline},
	{ID: "2", Username: "Ayşe", AvatarRef: "https://ui-avatars.com/api/?name=Ay%C5%9Fe&background=E94A90", Status: domain.StatusOnline},
	{ID: "3", Username: "Mehmet", AvatarRef: "https://ui-avatars.com/api/?name=Mehmet&background=4AE990", Status: domain.StatusOffline},
	{ID: "4", Username: "Zeynep", AvatarRef: "https://ui-avatars.com/api/?name=Zeynep&background=E9904A", Status: domain.StatusOnline},
}

// Profiles returns a copy of the seed directory.
func Profiles() []domain.Profile {
	out := make([]domain.Profile, len(seedProfiles))
	copy(out, seedProfiles)
	return out
}

// GroupChat returns the team chat as seen by currentUserID.
func GroupChat(currentUserID string, createdAt time.Time) domain.Chat {
	return domain.Chat{
		ID:            GroupChatID,
		IsGroup:       true,
		DisplayName:   groupName,
		AvatarRef:     "https://ui-avatars.com/api/?name=Team+Chat&background=00a884&color=ffffff&format=svg",
		CreatedAt:     createdAt,
		CurrentUserID: currentUserID,
	}
}

type line struct {
	id      string
	sender  string // "" is the current user
	text    string
	minutes int
	read    bool
}

var groupHistory = []line{
	{"m1", "1", "Morning team! The coffee machine is acting up again.", 240, true},
	{"m2", "2", "Morning! I rinsed the filter, it's flowing now.", 236, true},
	{"m3", "", "Great, grabbing a cup. Who's in the office today?", 232, true},
	{"m4", "3", "I'm in. The internet dropped for a minute this morning but it's back.", 228, true},
	{"m5", "4", "Working from home. The cat is trying to take over my keyboard.", 224, true},
	{"m6", "1", "Stand-up at 10:15, see you on the call in ten.", 196, true},
	{"m7", "", "I'll open it at 10:17. Who wants to go first?", 180, true},
	{"m8", "1", "Me: small refactor yesterday, tests are green.", 176, true},
	{"m9", "2", "I fixed the spacing in the UI, mobile looks much cleaner.", 172, true},
	{"m10", "3", "Logs are cleaned up, the console is quiet now.", 168, true},
	{"m11", "", "Lunch walk at 12:30?", 120, true},
	{"m12", "4", "I'm in. Bubble tea on the way back?", 84, false},
	{"m13", "1", "See you all at the demo.", 76, false},
}

// GroupHistory returns the team chat's history relative to now, ascending. Lines
// authored by the current user carry selfID and selfName.
func GroupHistory(selfID, selfName string, now time.Time) []domain.Message {
	names := make(map[string]string, len(seedProfiles))
	for _, p := range seedProfiles {
		names[p.ID] = p.Username
	}
	out := make([]domain.Message, 0, len(groupHistory))
	for _, l := range groupHistory {
		sender, name := l.sender, names[l.sender]
		if sender == "" {
			sender, name = selfID, selfName
		}
		out = append(out, domain.Message{
			ID:         l.id,
			ChatID:     GroupChatID,
			SenderID:   sender,
			SenderName: name,
			Text:       l.text,
			Timestamp:  now.Add(-time.Duration(l.minutes) * time.Minute),
			Read:       l.read,
			Type:       domain.MessageText,
		})
	}
	return out
}
