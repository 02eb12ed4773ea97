package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// MemberRepository conversation membership data access interface
type MemberRepository interface {
	Find(ctx context.Context, conversationID, actorID string) (*domain.ConversationMember, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.ConversationMember, error)
	ListByConversations(ctx context.Context, conversationIDs []string) (map[string][]*domain.ConversationMember, error)
	ListForActor(ctx context.Context, actorID string, folder domain.Folder) ([]*domain.ConversationMember, error)
	ListActive(ctx context.Context, actorID string) ([]*domain.ConversationMember, error)
	SetActive(ctx context.Context, conversationID, actorID string, active bool) error
	SetArchive(ctx context.Context, conversationID, actorID string, archivedAt *time.Time, untilNew bool) error
	SetFolder(ctx context.Context, conversationID, actorID string, folder domain.Folder) error
	// Unarchive clears until-new archives of every member except the sender
	UnarchiveForNewMessage(ctx context.Context, conversationID, senderActorID string) (int64, error)
	// AdvanceReadPointer moves the pointer to target unless the stored one is strictly newer
	AdvanceReadPointer(ctx context.Context, conversationID, actorID string, target *domain.Message, at time.Time) (bool, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) scoped(ctx context.Context, conversationID, actorID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND actor_id = ?", conversationID, actorID)
}

// Find returns one membership row
func (r *memberRepository) Find(ctx context.Context, conversationID, actorID string) (*domain.ConversationMember, error) {
	var m domain.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND actor_id = ?", conversationID, actorID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByConversation returns all members of a conversation
func (r *memberRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.ConversationMember, error) {
	var members []*domain.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC, actor_id ASC").
		Find(&members).Error
	return members, err
}

// ListByConversations groups members by conversation id
func (r *memberRepository) ListByConversations(ctx context.Context, conversationIDs []string) (map[string][]*domain.ConversationMember, error) {
	out := make(map[string][]*domain.ConversationMember, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var members []*domain.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id IN ?", conversationIDs).
		Order("joined_at ASC, actor_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		out[m.ConversationID] = append(out[m.ConversationID], m)
	}
	return out, nil
}

// ListForActor returns the actor's active memberships in a folder.
// "archived" selects by archived_at, the other folders exclude archived rows.
func (r *memberRepository) ListForActor(ctx context.Context, actorID string, folder domain.Folder) ([]*domain.ConversationMember, error) {
	q := r.db.WithContext(ctx).Where("actor_id = ? AND is_active = ?", actorID, true)
	if folder == domain.FolderArchived {
		q = q.Where("archived_at IS NOT NULL")
	} else {
		q = q.Where("archived_at IS NULL AND folder = ?", folder)
	}
	var members []*domain.ConversationMember
	err := q.Find(&members).Error
	return members, err
}

// ListActive returns every active membership of the actor
func (r *memberRepository) ListActive(ctx context.Context, actorID string) ([]*domain.ConversationMember, error) {
	var members []*domain.ConversationMember
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND is_active = ?", actorID, true).
		Find(&members).Error
	return members, err
}

// SetActive toggles soft-leave
func (r *memberRepository) SetActive(ctx context.Context, conversationID, actorID string, active bool) error {
	return r.scoped(ctx, conversationID, actorID).Update("is_active", active).Error
}

// SetArchive sets or clears the archive state
func (r *memberRepository) SetArchive(ctx context.Context, conversationID, actorID string, archivedAt *time.Time, untilNew bool) error {
	return r.scoped(ctx, conversationID, actorID).Updates(map[string]interface{}{
		"archived_at":        archivedAt,
		"archived_until_new": untilNew,
	}).Error
}

// SetFolder changes the folder classification
func (r *memberRepository) SetFolder(ctx context.Context, conversationID, actorID string, folder domain.Folder) error {
	return r.scoped(ctx, conversationID, actorID).Update("folder", folder).Error
}

// UnarchiveForNewMessage restores until-new archives when a foreign message arrives
func (r *memberRepository) UnarchiveForNewMessage(ctx context.Context, conversationID, senderActorID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND actor_id <> ? AND archived_until_new = ?", conversationID, senderActorID, true).
		Updates(map[string]interface{}{
			"archived_at":        nil,
			"archived_until_new": false,
		})
	return result.RowsAffected, result.Error
}

// AdvanceReadPointer is a single conditional UPDATE so concurrent calls never move the pointer backward
func (r *memberRepository) AdvanceReadPointer(ctx context.Context, conversationID, actorID string, target *domain.Message, at time.Time) (bool, error) {
	newer := r.db.WithContext(ctx).Table("messages AS p").Select("1").
		Where("p.id = conversation_members.last_read_message_id").
		Where("p.created_at > ? OR (p.created_at = ? AND p.id > ?)", target.CreatedAt, target.CreatedAt, target.ID)

	result := r.scoped(ctx, conversationID, actorID).
		Where("last_read_message_id IS NULL OR NOT EXISTS (?)", newer).
		Updates(map[string]interface{}{
			"last_read_message_id": target.ID,
			"last_read_at":         at,
		})
	return result.RowsAffected > 0, result.Error
}
