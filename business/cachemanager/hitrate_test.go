package cachemanager

import (
	"proactiveCacher/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usageLog(opened time.Time, watched, notWatched *int) domain.AppUsageLog {
	return domain.AppUsageLog{
		UserID:                      "u1",
		AppOpeningTime:              opened,
		WatchedVideosCount:          1,
		WatchedCachedVideosCount:    watched,
		NotWatchedCachedVideosCount: notWatched,
	}
}

func TestEvaluateHitRate(t *testing.T) {
	t.Run("single log", func(t *testing.T) {
		hr, err := EvaluateHitRate([]domain.AppUsageLog{
			usageLog(at(1, 9, 0), intPtr(3), intPtr(1)),
		})
		require.NoError(t, err)
		assert.Equal(t, 0.75, hr.HitRate)
		assert.Equal(t, 3, hr.GoodCount)
		assert.Equal(t, 1, hr.BadCount)
	})

	t.Run("irrelevant logs are ignored", func(t *testing.T) {
		hr, err := EvaluateHitRate([]domain.AppUsageLog{
			usageLog(at(1, 9, 0), intPtr(1), nil),
			usageLog(at(5, 9, 0), nil, nil),
			usageLog(at(6, 9, 0), intPtr(0), intPtr(0)),
			usageLog(at(3, 9, 0), nil, intPtr(1)),
		})
		require.NoError(t, err)
		assert.Equal(t, 0.5, hr.HitRate)
		assert.True(t, at(1, 9, 0).Equal(hr.WindowStart))
		assert.True(t, at(3, 9, 0).Equal(hr.WindowEnd))
	})

	t.Run("no logs", func(t *testing.T) {
		_, err := EvaluateHitRate(nil)
		assert.ErrorIs(t, err, ErrNoHitRateData)
	})

	t.Run("only zero counts", func(t *testing.T) {
		_, err := EvaluateHitRate([]domain.AppUsageLog{
			usageLog(at(1, 9, 0), intPtr(0), nil),
		})
		assert.ErrorIs(t, err, ErrNoHitRateData)
	})
}
