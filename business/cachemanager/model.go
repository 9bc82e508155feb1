package cachemanager

import (
	"proactiveCacher/business/recommender"
	"proactiveCacher/domain"
	"sort"
	"time"
)

// RecommendationModel is built fresh for each decision cycle and never
// persisted. A nil model, or one built from an empty matrix, recommends
// nothing.
type RecommendationModel struct {
	model   recommender.Model
	users   int
	videos  int
	BuiltAt time.Time
}

func (m *RecommendationModel) Empty() bool {
	return m == nil || m.model == nil || m.users == 0 || m.videos == 0
}

// Recommendations returns the user's predictions sorted by descending score.
func (m *RecommendationModel) Recommendations(userID string) []domain.Recommendation {
	if m.Empty() {
		return []domain.Recommendation{}
	}
	recs := append([]domain.Recommendation(nil), m.model.Recommendations(userID)...)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	return recs
}

// Top returns the best-scored video not in exclude.
func (m *RecommendationModel) Top(userID string, exclude map[string]struct{}) (domain.Recommendation, bool) {
	for _, r := range m.Recommendations(userID) {
		if _, skip := exclude[r.VideoID]; skip {
			continue
		}
		return r, true
	}
	return domain.Recommendation{}, false
}
