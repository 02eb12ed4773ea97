package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType 메시지 종류
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeFile  MessageType = "file"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

// IsMedia reports whether t carries a media_url
func (t MessageType) IsMedia() bool {
	return t == MessageTypeImage || t == MessageTypeVideo || t == MessageTypeFile
}

// Message is an entry of the conversation log. Rows are never hard-deleted;
// DeletedAt is terminal.
type Message struct {
	CreatedAt        time.Time   `gorm:"column:created_at;precision:6;not null;index:idx_msg_conv_pos,priority:2" json:"created_at"`
	EditedAt         *time.Time  `gorm:"column:edited_at;precision:6" json:"edited_at,omitempty"`
	DeletedAt        *time.Time  `gorm:"column:deleted_at;precision:6" json:"deleted_at,omitempty"`
	Body             *string     `gorm:"column:body;type:text" json:"body,omitempty"`
	MediaURL         *string     `gorm:"column:media_url;type:varchar(1000)" json:"media_url,omitempty"`
	DeletedByActorID *string     `gorm:"column:deleted_by_actor_id;type:varchar(64)" json:"-"`
	ConversationID   string      `gorm:"column:conversation_id;type:char(36);not null;index:idx_msg_conv_pos,priority:1;uniqueIndex:idx_msg_client,priority:1" json:"conversation_id"`
	SenderActorID    string      `gorm:"column:sender_actor_id;type:varchar(64);not null;uniqueIndex:idx_msg_client,priority:2" json:"sender_actor_id"`
	ClientID         string      `gorm:"column:client_id;type:varchar(64);not null;uniqueIndex:idx_msg_client,priority:3" json:"client_id"`
	Type             MessageType `gorm:"column:type;type:varchar(16);not null" json:"type"`
	ID               uint64      `gorm:"column:id;primaryKey;autoIncrement;index:idx_msg_conv_pos,priority:3" json:"id"`
}

func (Message) TableName() string {
	return "messages"
}

// IsDeleted reports whether the message was unsent
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Before reports whether m sorts strictly before o in (created_at, id) order
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}

// MessageView represents a message in API responses.
// Deletion masks body, media and the edited flag.
type MessageView struct {
	CreatedAt      time.Time   `json:"created_at"`
	EditedAt       *time.Time  `json:"edited_at,omitempty"`
	Body           *string     `json:"body"`
	MediaURL       *string     `json:"media_url"`
	ConversationID string      `json:"conversation_id"`
	SenderActorID  string      `json:"sender_actor_id"`
	ClientID       string      `json:"client_id"`
	Type           MessageType `json:"type"`
	ID             uint64      `json:"id"`
	IsEdited       bool        `json:"is_edited"`
	IsDeleted      bool        `json:"is_deleted"`
}

// View converts Message to MessageView
func (m *Message) View() *MessageView {
	v := &MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderActorID:  m.SenderActorID,
		ClientID:       m.ClientID,
		Type:           m.Type,
		CreatedAt:      m.CreatedAt,
	}
	if m.IsDeleted() {
		v.IsDeleted = true
		return v
	}
	v.Body = m.Body
	v.MediaURL = m.MediaURL
	v.EditedAt = m.EditedAt
	v.IsEdited = m.EditedAt != nil
	return v
}

const previewRunes = 80

// Preview returns the inbox preview text for the message
func (m *Message) Preview() string {
	if m.IsDeleted() {
		return ""
	}
	if m.Type.IsMedia() {
		return "[" + string(m.Type) + "]"
	}
	if m.Body == nil {
		return ""
	}
	s := strings.TrimSpace(*m.Body)
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes]) + "…"
}

// SendMessageRequest represents POST /conversations/:id/messages
type SendMessageRequest struct {
	Body     *string     `json:"body"`
	MediaURL *string     `json:"media_url"`
	ClientID string      `json:"client_id" binding:"required,max=64"`
	Type     MessageType `json:"type" binding:"required,msgtype"`
}

// EditMessageRequest represents PATCH /messages/:id. An empty body is
// rejected by the message service.
type EditMessageRequest struct {
	Body string `json:"body"`
}
