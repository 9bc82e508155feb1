package domain

import (
	"time"
)

// User is a registered device owner. The ID is the opaque identity the
// device registers with; DeviceToken is the push channel (defaults to ID).
type User struct {
	ID           string            `gorm:"column:id;primaryKey" json:"user_id"`
	DeviceToken  string            `gorm:"column:device_token;not null" json:"-"`
	FlaggedAt    *time.Time        `gorm:"column:flagged_at" json:"flagged_at,omitempty"`
	FlagReason   string            `gorm:"column:flag_reason" json:"flag_reason,omitempty"`
	Logs         []ConnectivityLog `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AppUsageLogs []AppUsageLog     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Ratings      []Rating          `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	CachedVideos []Video           `gorm:"many2many:user_cached_videos;constraint:OnDelete:CASCADE" json:"cached_videos,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// PushChannel returns the device channel pushes for this user go to.
func (u User) PushChannel() string {
	if u.DeviceToken != "" {
		return u.DeviceToken
	}
	return u.ID
}
