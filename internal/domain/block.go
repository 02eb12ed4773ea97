package domain

import "time"

// ActorBlock actor_id 가 blocked_actor_id 를 차단한 기록
type ActorBlock struct {
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ActorID        string    `gorm:"column:actor_id;type:varchar(64);not null;uniqueIndex:idx_block_pair,priority:1" json:"actor_id"`
	BlockedActorID string    `gorm:"column:blocked_actor_id;type:varchar(64);not null;uniqueIndex:idx_block_pair,priority:2;index" json:"blocked_actor_id"`
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
}

func (ActorBlock) TableName() string {
	return "actor_blocks"
}

// BlockView represents a block item in API responses
type BlockView struct {
	BlockedAt time.Time  `json:"blocked_at"`
	Actor     *ActorView `json:"actor"`
	BlockID   uint64     `json:"block_id"`
}

// BlockRequest represents POST /blocks
type BlockRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}
