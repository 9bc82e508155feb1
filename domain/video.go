package domain

import "time"

type Video struct {
	ID            string    `gorm:"column:id;primaryKey" json:"youtubeID"`
	Title         string    `gorm:"column:title;not null" json:"title"`
	FilePath      *string   `gorm:"column:file_path" json:"filePath,omitempty"`
	ThumbnailPath *string   `gorm:"column:thumbnail_path" json:"thumbnailPath,omitempty"`
	Category      *string   `gorm:"column:category" json:"category,omitempty"`
	UploadDate    time.Time `gorm:"column:upload_date;autoCreateTime" json:"uploadDate"`
}

func (Video) TableName() string {
	return "videos"
}
