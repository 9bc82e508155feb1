package domain

import "time"

const NetworkStatusWiFi = "WiFi"

// ConnectivityLog is an append-only network/battery/location sample.
type ConnectivityLog struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	UserID            string    `gorm:"column:user_id;not null;index" json:"-"`
	Timestamp         time.Time `gorm:"column:time_stamp;not null;index" json:"timeStamp"`
	NetworkStatus     string    `gorm:"column:network_status;not null" json:"networkStatus"`
	BatteryPercentage *int      `gorm:"column:battery_percentage" json:"batteryPercentage,omitempty"`
	BatteryState      *string   `gorm:"column:battery_state" json:"batteryState,omitempty"`
	Latitude          *float64  `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude         *float64  `gorm:"column:longitude" json:"longitude,omitempty"`
}

func (ConnectivityLog) TableName() string {
	return "connectivity_logs"
}

func (l ConnectivityLog) OnWiFi() bool {
	return l.NetworkStatus == NetworkStatusWiFi
}

// AppUsageLog is an append-only app-open sample. The cached-video counters
// are only reported once a proactive push has landed on the device.
type AppUsageLog struct {
	ID                          uint      `gorm:"primaryKey" json:"-"`
	UserID                      string    `gorm:"column:user_id;not null;index" json:"-"`
	AppOpeningTime              time.Time `gorm:"column:app_opening_time;not null" json:"appOpeningTime"`
	WatchedVideosCount          int       `gorm:"column:watched_videos_count;not null" json:"watchedVideosCount"`
	WatchedCachedVideosCount    *int      `gorm:"column:watched_cached_videos_count" json:"watchedCachedVideosCount,omitempty"`
	NotWatchedCachedVideosCount *int      `gorm:"column:not_watched_cached_videos_count" json:"notWatchedCachedVideosCount,omitempty"`
}

func (AppUsageLog) TableName() string {
	return "app_usage_logs"
}
