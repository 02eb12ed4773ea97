package repository

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errPairTaken signals that another writer inserted the same pair first
var errPairTaken = errors.New("conversation pair already exists")

// ConversationRepository conversation data access interface
type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Conversation, error)
	FindPair(ctx context.Context, realmID, low, high string) (*domain.Conversation, error)
	// CreatePair inserts the conversation and its members in one transaction.
	// It returns false without error when the pair already exists.
	CreatePair(ctx context.Context, conv *domain.Conversation, members []*domain.ConversationMember) (bool, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindByID returns a conversation by id
func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByIDs returns conversations keyed by id
func (r *conversationRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Conversation, error) {
	out := make(map[string]*domain.Conversation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var convs []*domain.Conversation
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&convs).Error; err != nil {
		return nil, err
	}
	for _, c := range convs {
		out[c.ID] = c
	}
	return out, nil
}

// FindPair looks up the 1:1 conversation of a canonical pair
func (r *conversationRepository) FindPair(ctx context.Context, realmID, low, high string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).
		Where("realm_id = ? AND actor_low = ? AND actor_high = ?", realmID, low, high).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreatePair inserts a conversation keyed by the (realm, low, high) unique index
func (r *conversationRepository) CreatePair(ctx context.Context, conv *domain.Conversation, members []*domain.ConversationMember) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
		if result.Error != nil {
			if IsDuplicateKey(result.Error) {
				return errPairTaken
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errPairTaken
		}
		if err := tx.Create(&members).Error; err != nil {
			if IsDuplicateKey(err) {
				return errPairTaken
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errPairTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
