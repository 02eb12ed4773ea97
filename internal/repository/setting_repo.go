package repository

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository per-actor inbox settings
type SettingRepository interface {
	// Get returns the stored settings or the zero defaults
	Get(ctx context.Context, actorID string) (*domain.ActorSetting, error)
	Save(ctx context.Context, setting *domain.ActorSetting) error
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, actorID string) (*domain.ActorSetting, error) {
	var s domain.ActorSetting
	err := r.db.WithContext(ctx).Where("actor_id = ?", actorID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ActorSetting{ActorID: actorID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingRepository) Save(ctx context.Context, setting *domain.ActorSetting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hide_empty_conversations", "updated_at"}),
	}).Create(setting).Error
}
