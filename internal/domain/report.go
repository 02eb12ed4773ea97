package domain

import "time"

// ReportObjectType what a report points at
type ReportObjectType string

const (
	ReportObjectMessage      ReportObjectType = "message"
	ReportObjectConversation ReportObjectType = "conversation"
	ReportObjectActor        ReportObjectType = "actor"
)

// Valid reports whether t is a reportable object type
func (t ReportObjectType) Valid() bool {
	switch t {
	case ReportObjectMessage, ReportObjectConversation, ReportObjectActor:
		return true
	}
	return false
}

// Report is a write-only moderation record. Review happens elsewhere.
type Report struct {
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ReporterActorID string           `gorm:"column:reporter_actor_id;type:varchar(64);not null;index" json:"reporter_actor_id"`
	ObjectType      ReportObjectType `gorm:"column:object_type;type:varchar(32);not null" json:"object_type"`
	ObjectID        string           `gorm:"column:object_id;type:varchar(64);not null" json:"object_id"`
	ReasonCode      string           `gorm:"column:reason_code;type:varchar(32);not null" json:"reason_code"`
	ID              uint64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
}

func (Report) TableName() string {
	return "message_reports"
}

// ReportRequest represents POST /reports
type ReportRequest struct {
	ObjectType ReportObjectType `json:"object_type" binding:"required"`
	ObjectID   string           `json:"object_id" binding:"required,max=64"`
	ReasonCode string           `json:"reason_code" binding:"required,max=32"`
}
