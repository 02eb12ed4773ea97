package domain

import "time"

// ConversationSummary is one inbox row for an actor
type ConversationSummary struct {
	LastActivityAt time.Time  `json:"last_activity_at"`
	Counterpart    *ActorView `json:"counterpart,omitempty"`
	LastMessageID  *uint64    `json:"last_message_id,omitempty"`
	ConversationID string     `json:"conversation_id"`
	RealmID        string     `json:"realm_id"`
	Preview        string     `json:"preview"`
	Folder         Folder     `json:"folder"`
	UnreadCount    int64      `json:"unread_count"`
	Archived       bool       `json:"archived"`
	IsGroup        bool       `json:"is_group"`
}

// HasContent reports whether the conversation is worth showing when empty
// conversations are hidden
func (s *ConversationSummary) HasContent() bool {
	return s.LastMessageID != nil || s.UnreadCount > 0 || s.Preview != ""
}

// InboxChanges is the long-poll answer of GET /inbox/changes
type InboxChanges struct {
	Version uint64 `json:"version"`
	Changed bool   `json:"changed"`
}

// UnreadTotal represents GET /inbox/unread
type UnreadTotal struct {
	Total int64 `json:"total"`
}
