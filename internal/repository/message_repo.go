package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository message log data access interface
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id uint64) (*domain.Message, error)
	FindByClientID(ctx context.Context, conversationID, senderActorID, clientID string) (*domain.Message, error)
	// ListBefore returns up to limit messages older than cursor, in ascending order
	ListBefore(ctx context.Context, conversationID string, cursor *domain.Message, limit int) ([]*domain.Message, error)
	// Latest returns the newest message by (created_at, id); deleted rows are skipped unless includeDeleted
	Latest(ctx context.Context, conversationID string, includeDeleted bool) (*domain.Message, error)
	UpdateBody(ctx context.Context, id uint64, body string, editedAt time.Time) (int64, error)
	MarkDeleted(ctx context.Context, id uint64, actorID string, at time.Time) (int64, error)
	// CountAfter counts non-deleted messages by other senders positioned after pointerID (all when nil)
	CountAfter(ctx context.Context, conversationID, actorID string, pointerID *uint64) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts a message
func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindByID returns a message by id
func (r *messageRepository) FindByID(ctx context.Context, id uint64) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByClientID finds the row written by an earlier attempt of the same send
func (r *messageRepository) FindByClientID(ctx context.Context, conversationID, senderActorID, clientID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_actor_id = ? AND client_id = ?", conversationID, senderActorID, clientID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListBefore returns a page of messages in display order
func (r *messageRepository) ListBefore(ctx context.Context, conversationID string, cursor *domain.Message, limit int) ([]*domain.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if cursor != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var msgs []*domain.Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Latest returns the newest message of a conversation
func (r *messageRepository) Latest(ctx context.Context, conversationID string, includeDeleted bool) (*domain.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	var msg domain.Message
	if err := q.Order("created_at DESC, id DESC").First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateBody edits a live message; a deleted row is left untouched
func (r *messageRepository) UpdateBody(ctx context.Context, id uint64, body string, editedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"body":      body,
			"edited_at": editedAt,
		})
	return result.RowsAffected, result.Error
}

// MarkDeleted soft-deletes a message once
func (r *messageRepository) MarkDeleted(ctx context.Context, id uint64, actorID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at":          at,
			"deleted_by_actor_id": actorID,
		})
	return result.RowsAffected, result.Error
}

// CountAfter is recomputed from the log on each call
func (r *messageRepository) CountAfter(ctx context.Context, conversationID, actorID string, pointerID *uint64) (int64, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_actor_id <> ? AND deleted_at IS NULL", conversationID, actorID)
	if pointerID != nil {
		notAfter := db.Table("messages AS p").Select("1").
			Where("p.id = ?", *pointerID).
			Where("p.created_at > messages.created_at OR (p.created_at = messages.created_at AND p.id >= messages.id)")
		q = q.Where("NOT EXISTS (?)", notAfter)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}
