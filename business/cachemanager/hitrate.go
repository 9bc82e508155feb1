package cachemanager

import (
	"proactiveCacher/domain"
)

func cacheRelevant(l domain.AppUsageLog) bool {
	return (l.WatchedCachedVideosCount != nil && *l.WatchedCachedVideosCount != 0) ||
		(l.NotWatchedCachedVideosCount != nil && *l.NotWatchedCachedVideosCount != 0)
}

// EvaluateHitRate scores past caching decisions from app-usage logs taken
// while a proactively cached video was on the device. It returns
// ErrNoHitRateData when no such log exists.
func EvaluateHitRate(logs []domain.AppUsageLog) (domain.HitRate, error) {
	var result domain.HitRate
	seen := false

	for _, l := range logs {
		if !cacheRelevant(l) {
			continue
		}
		if l.WatchedCachedVideosCount != nil {
			result.GoodCount += *l.WatchedCachedVideosCount
		}
		if l.NotWatchedCachedVideosCount != nil {
			result.BadCount += *l.NotWatchedCachedVideosCount
		}
		if !seen || l.AppOpeningTime.Before(result.WindowStart) {
			result.WindowStart = l.AppOpeningTime
		}
		if !seen || l.AppOpeningTime.After(result.WindowEnd) {
			result.WindowEnd = l.AppOpeningTime
		}
		seen = true
	}

	total := result.GoodCount + result.BadCount
	if total <= 0 {
		return domain.HitRate{}, ErrNoHitRateData
	}
	result.HitRate = float64(result.GoodCount) / float64(total)
	return result, nil
}
