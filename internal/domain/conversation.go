package domain

import (
	"time"
)

// DefaultRealm is used when a resolve request omits the realm
const DefaultRealm = "public"

// Conversation 대화방. 1:1 대화는 (realm, actor_low, actor_high) 로 유일하다.
type Conversation struct {
	CreatedAt        time.Time `gorm:"column:created_at;precision:6;not null" json:"created_at"`
	ActorLow         *string   `gorm:"column:actor_low;type:varchar(64);uniqueIndex:idx_conv_pair,priority:2" json:"-"`
	ActorHigh        *string   `gorm:"column:actor_high;type:varchar(64);uniqueIndex:idx_conv_pair,priority:3" json:"-"`
	ID               string    `gorm:"column:id;primaryKey;type:char(36)" json:"id"`
	RealmID          string    `gorm:"column:realm_id;type:varchar(32);not null;uniqueIndex:idx_conv_pair,priority:1" json:"realm_id"`
	CreatedByActorID string    `gorm:"column:created_by_actor_id;type:varchar(64);not null" json:"created_by_actor_id"`
	IsGroup          bool      `gorm:"column:is_group;not null" json:"is_group"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// CanonicalPair orders two actor ids so that (a, b) and (b, a) map to the same key
func CanonicalPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// MemberRole 대화방 내 역할
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// Folder inbox classification of a membership
type Folder string

const (
	FolderInbox    Folder = "inbox"
	FolderSpam     Folder = "spam"
	FolderRequests Folder = "requests"
	FolderArchived Folder = "archived"
)

// Valid reports whether f is a listable folder
func (f Folder) Valid() bool {
	switch f {
	case FolderInbox, FolderSpam, FolderRequests, FolderArchived:
		return true
	}
	return false
}

// Assignable reports whether f can be stored on a member row.
// "archived" is derived from archived_at and never stored.
func (f Folder) Assignable() bool {
	return f.Valid() && f != FolderArchived
}

// ConversationMember 대화 참여자 (읽음 포인터, 보관함 상태 포함)
type ConversationMember struct {
	JoinedAt          time.Time  `gorm:"column:joined_at;precision:6;not null" json:"joined_at"`
	LastReadMessageID *uint64    `gorm:"column:last_read_message_id" json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `gorm:"column:last_read_at;precision:6" json:"last_read_at,omitempty"`
	ArchivedAt        *time.Time `gorm:"column:archived_at;precision:6" json:"archived_at,omitempty"`
	ConversationID    string     `gorm:"column:conversation_id;primaryKey;type:char(36)" json:"conversation_id"`
	ActorID           string     `gorm:"column:actor_id;primaryKey;type:varchar(64);index" json:"actor_id"`
	Role              MemberRole `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Folder            Folder     `gorm:"column:folder;type:varchar(16);not null" json:"folder"`
	IsActive          bool       `gorm:"column:is_active;not null" json:"is_active"`
	ArchivedUntilNew  bool       `gorm:"column:archived_until_new;not null" json:"archived_until_new"`
}

func (ConversationMember) TableName() string {
	return "conversation_members"
}

// Archived is the canonical archive flag
func (m *ConversationMember) Archived() bool {
	return m.ArchivedAt != nil
}

// ConversationView represents a conversation in API responses
type ConversationView struct {
	CreatedAt        time.Time     `json:"created_at"`
	Counterpart      *ActorView    `json:"counterpart,omitempty"`
	ID               string        `json:"id"`
	RealmID          string        `json:"realm_id"`
	CreatedByActorID string        `json:"created_by_actor_id"`
	Members          []*MemberView `json:"members"`
	IsGroup          bool          `json:"is_group"`
}

// MemberView represents a member in API responses
type MemberView struct {
	LastReadMessageID *uint64    `json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
	ActorID           string     `json:"actor_id"`
	Role              MemberRole `json:"role"`
	Folder            Folder     `json:"folder"`
	IsActive          bool       `json:"is_active"`
	Archived          bool       `json:"archived"`
}

// View converts ConversationMember to MemberView
func (m *ConversationMember) View() *MemberView {
	return &MemberView{
		ActorID:           m.ActorID,
		Role:              m.Role,
		IsActive:          m.IsActive,
		LastReadMessageID: m.LastReadMessageID,
		LastReadAt:        m.LastReadAt,
		Folder:            m.Folder,
		Archived:          m.Archived(),
	}
}

// View converts Conversation plus its members to ConversationView
func (c *Conversation) View(members []*ConversationMember) *ConversationView {
	v := &ConversationView{
		ID:               c.ID,
		RealmID:          c.RealmID,
		IsGroup:          c.IsGroup,
		CreatedByActorID: c.CreatedByActorID,
		CreatedAt:        c.CreatedAt,
		Members:          make([]*MemberView, len(members)),
	}
	for i, m := range members {
		v.Members[i] = m.View()
	}
	return v
}

// Counterpart returns the first member other than actorID, or "" when there is none
func Counterpart(actorID string, members []*ConversationMember) string {
	for _, m := range members {
		if m.ActorID != actorID {
			return m.ActorID
		}
	}
	return ""
}

// ResolveConversationRequest represents POST /conversations/resolve
type ResolveConversationRequest struct {
	PeerActorID string `json:"peer_actor_id" binding:"required"`
	RealmID     string `json:"realm_id"`
}

// ArchiveRequest represents POST /conversations/:id/archive
type ArchiveRequest struct {
	UntilNew bool `json:"until_new"`
}

// SetFolderRequest represents PUT /conversations/:id/folder
type SetFolderRequest struct {
	Folder Folder `json:"folder" binding:"required,folder"`
}
