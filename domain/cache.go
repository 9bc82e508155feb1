package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("record already exists")
)

// Recommendation is one (video, predicted score) pair for a user.
type Recommendation struct {
	VideoID string  `json:"video_id"`
	Score   float64 `json:"score"`
}

// HitRate is the empirical success ratio of past caching decisions.
type HitRate struct {
	HitRate     float64   `json:"hitrate"`
	GoodCount   int       `json:"good_count"`
	BadCount    int       `json:"bad_count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// CachingDecision is what makeCachingDecision scheduled for a user.
type CachingDecision struct {
	TaskID   string    `json:"task_id"`
	UserID   string    `json:"user_id"`
	PushAt   time.Time `json:"push_at"`
	Replaced bool      `json:"replaced"`
}
