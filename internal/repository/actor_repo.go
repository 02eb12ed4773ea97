package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// ActorRepository read access to the actor directory
type ActorRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Actor, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Actor, error)
	FindOwned(ctx context.Context, userID, actorID string) (*domain.Actor, error)
}

type actorRepository struct {
	db *gorm.DB
}

// NewActorRepository creates a new ActorRepository
func NewActorRepository(db *gorm.DB) ActorRepository {
	return &actorRepository{db: db}
}

// FindByID returns an actor by id
func (r *actorRepository) FindByID(ctx context.Context, id string) (*domain.Actor, error) {
	var a domain.Actor
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIDs returns actors keyed by id; unknown ids are absent from the map
func (r *actorRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Actor, error) {
	out := make(map[string]*domain.Actor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var actors []*domain.Actor
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&actors).Error; err != nil {
		return nil, err
	}
	for _, a := range actors {
		out[a.ID] = a
	}
	return out, nil
}

// FindOwned returns actorID when it is the user itself or a vport owned by the user
func (r *actorRepository) FindOwned(ctx context.Context, userID, actorID string) (*domain.Actor, error) {
	var a domain.Actor
	err := r.db.WithContext(ctx).
		Where("id = ?", actorID).
		Where("(kind = ? AND id = ?) OR (kind = ? AND owner_user_id = ?)",
			domain.ActorKindUser, userID, domain.ActorKindVport, userID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}
