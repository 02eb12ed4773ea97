package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository block data access interface
type BlockRepository interface {
	Create(ctx context.Context, actorID, blockedActorID string) (*domain.ActorBlock, error)
	Delete(ctx context.Context, actorID, blockedActorID string) (int64, error)
	FindByActor(ctx context.Context, actorID string) ([]*domain.ActorBlock, error)
	// AnyBlocks reports whether any of blockers has blocked target
	AnyBlocks(ctx context.Context, blockers []string, target string) (bool, error)
	// FindBlockers returns the subset of candidates that blocked target
	FindBlockers(ctx context.Context, candidates []string, target string) ([]string, error)
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

// Create adds a block; blocking twice keeps the first row
func (r *blockRepository) Create(ctx context.Context, actorID, blockedActorID string) (*domain.ActorBlock, error) {
	block := &domain.ActorBlock{
		ActorID:        actorID,
		BlockedActorID: blockedActorID,
		CreatedAt:      time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(block)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var existing domain.ActorBlock
		err := r.db.WithContext(ctx).
			Where("actor_id = ? AND blocked_actor_id = ?", actorID, blockedActorID).
			First(&existing).Error
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return block, nil
}

// Delete removes a block
func (r *blockRepository) Delete(ctx context.Context, actorID, blockedActorID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("actor_id = ? AND blocked_actor_id = ?", actorID, blockedActorID).
		Delete(&domain.ActorBlock{})
	return result.RowsAffected, result.Error
}

// FindByActor returns all blocks made by an actor
func (r *blockRepository) FindByActor(ctx context.Context, actorID string) ([]*domain.ActorBlock, error) {
	var blocks []*domain.ActorBlock
	err := r.db.WithContext(ctx).Where("actor_id = ?", actorID).Order("id DESC").Find(&blocks).Error
	return blocks, err
}

func (r *blockRepository) AnyBlocks(ctx context.Context, blockers []string, target string) (bool, error) {
	if len(blockers) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ActorBlock{}).
		Where("actor_id IN ? AND blocked_actor_id = ?", blockers, target).
		Count(&count).Error
	return count > 0, err
}

func (r *blockRepository) FindBlockers(ctx context.Context, candidates []string, target string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.ActorBlock{}).
		Where("actor_id IN ? AND blocked_actor_id = ?", candidates, target).
		Pluck("actor_id", &ids).Error
	return ids, err
}
