package migration

import (
	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models lists every table owned by the messenger
func Models() []interface{} {
	return []interface{}{
		&domain.Actor{},
		&domain.ActorSetting{},
		&domain.Conversation{},
		&domain.ConversationMember{},
		&domain.Message{},
		&domain.ActorBlock{},
		&domain.Report{},
	}
}

// Run executes AutoMigrate for all messenger tables.
// 테이블 없으면 생성, 있으면 누락된 컬럼/인덱스만 추가
func Run(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// SeedActors upserts actor directory rows (local/dev environments)
func SeedActors(db *gorm.DB, actors []domain.Actor) (int64, error) {
	if len(actors) == 0 {
		return 0, nil
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "display_name", "avatar_url", "owner_user_id"}),
	}).Create(&actors)
	return result.RowsAffected, result.Error
}
