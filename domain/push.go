package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PushStatusSent    = "sent"
	PushStatusFailed  = "failed"
	PushStatusSkipped = "skipped"
)

// PushRecord is the persisted outcome of one scheduled push.
type PushRecord struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	TaskID       string            `gorm:"column:task_id;not null;index" json:"task_id"`
	UserID       string            `gorm:"column:user_id;not null;index" json:"user_id"`
	VideoID      *string           `gorm:"column:video_id" json:"video_id,omitempty"`
	Status       string            `gorm:"column:status;not null" json:"status"`
	StatusCode   int               `gorm:"column:status_code" json:"status_code"`
	Reason       string            `gorm:"column:reason" json:"reason,omitempty"`
	ScheduledFor time.Time         `gorm:"column:scheduled_for" json:"scheduled_for"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	Context      datatypes.JSONMap `gorm:"column:context;type:jsonb" json:"context"`
}

func (PushRecord) TableName() string {
	return "push_records"
}

// DeliveryResult is the per-recipient outcome reported by the push transport.
type DeliveryResult struct {
	Device     string `json:"device"`
	Sent       bool   `json:"sent"`
	StatusCode int    `json:"status_code"`
	Reason     string `json:"reason,omitempty"`
	ID         string `json:"id,omitempty"`
}

// ScheduledPush describes a pending push as exposed to operators.
type ScheduledPush struct {
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}
