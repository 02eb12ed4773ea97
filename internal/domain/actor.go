package domain

import "time"

// ActorKind user 또는 vport(관리형 비즈니스 페르소나)
type ActorKind string

const (
	ActorKindUser  ActorKind = "user"
	ActorKindVport ActorKind = "vport"
)

// Actor is the presentation record of an identity that can send/receive messages.
// Owned by the identity service; the messenger only reads it.
type Actor struct {
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	OwnerUserID *string   `gorm:"column:owner_user_id;type:varchar(64);index" json:"-"`
	ID          string    `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Kind        ActorKind `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	DisplayName string    `gorm:"column:display_name;type:varchar(100)" json:"display_name"`
	AvatarURL   string    `gorm:"column:avatar_url;type:varchar(500)" json:"avatar_url,omitempty"`
}

func (Actor) TableName() string {
	return "actors"
}

// ActorRef is the acting identity attached to a request
type ActorRef struct {
	ID     string    `json:"id"`
	Kind   ActorKind `json:"kind"`
	UserID string    `json:"-"`
}

// ActorView represents an actor in API responses
type ActorView struct {
	ID          string    `json:"id"`
	Kind        ActorKind `json:"kind"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

// View converts Actor to ActorView
func (a *Actor) View() *ActorView {
	return &ActorView{
		ID:          a.ID,
		Kind:        a.Kind,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
	}
}

// UnknownActor is shown for counterparts missing from the actor directory
func UnknownActor(id string) *ActorView {
	return &ActorView{ID: id, Kind: ActorKindUser}
}

// ActorSetting per-actor inbox display preferences
type ActorSetting struct {
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	ActorID                string    `gorm:"column:actor_id;primaryKey;type:varchar(64)" json:"actor_id"`
	HideEmptyConversations bool      `gorm:"column:hide_empty_conversations;not null" json:"hide_empty_conversations"`
}

func (ActorSetting) TableName() string {
	return "actor_settings"
}

// UpdateInboxSettingsRequest represents PUT /settings/inbox
type UpdateInboxSettingsRequest struct {
	HideEmptyConversations *bool `json:"hide_empty_conversations" binding:"required"`
}
