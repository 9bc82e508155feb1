package domain

import "time"

// Rating is unique per (user, video). UserID is nullable so ratings left
// behind by a deleted user survive as orphans until purged.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    *string   `gorm:"column:user_id;uniqueIndex:idx_rating_user_video" json:"user_id"`
	VideoID   string    `gorm:"column:video_id;not null;uniqueIndex:idx_rating_user_video" json:"video_id"`
	Video     *Video    `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
	Score     float64   `gorm:"column:score;not null" json:"score"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Rating) TableName() string {
	return "ratings"
}

// Valid reports whether the rating still belongs to a user.
func (r Rating) Valid() bool {
	return r.UserID != nil && *r.UserID != ""
}
