package cachemanager

import (
	"proactiveCacher/business/recommender"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
)

// BuildRatingMatrix lays ratings out as one row per user and one column per
// video, in the order users and videos are given. Unrated cells are 0.
// Ratings without a user, or naming a user or video outside the given lists,
// are skipped.
func BuildRatingMatrix(users []domain.User, videos []domain.Video, ratings []domain.Rating) recommender.Matrix {
	rowLabels := make([]string, len(users))
	rowIndex := make(map[string]int, len(users))
	for i, u := range users {
		rowLabels[i] = u.ID
		rowIndex[u.ID] = i
	}

	colLabels := make([]string, len(videos))
	colIndex := make(map[string]int, len(videos))
	for j, v := range videos {
		colLabels[j] = v.ID
		colIndex[v.ID] = j
	}

	values := make([][]float64, len(users))
	for i := range values {
		values[i] = make([]float64, len(videos))
	}

	skipped := 0
	for _, r := range ratings {
		if !r.Valid() {
			skipped++
			continue
		}
		i, ok := rowIndex[*r.UserID]
		if !ok {
			skipped++
			continue
		}
		j, ok := colIndex[r.VideoID]
		if !ok {
			skipped++
			continue
		}
		values[i][j] = r.Score
	}
	if skipped > 0 {
		logger.Debug("Skipped ratings while building matrix", "skipped", skipped)
	}

	return recommender.Matrix{
		Values:    values,
		RowLabels: rowLabels,
		ColLabels: colLabels,
	}
}
