// Package recommender holds the rating predictor behind the caching engine.
// The engine only depends on Factorizer and Model, so the algorithm can be
// replaced without touching the decision code.
package recommender

import (
	"context"
	"fmt"
	"proactiveCacher/domain"
)

// Matrix is a dense users x videos rating matrix. RowLabels[i] names row i
// and ColLabels[j] names column j; unrated cells hold 0.
type Matrix struct {
	Values    [][]float64
	RowLabels []string
	ColLabels []string
}

func (m Matrix) Rows() int { return len(m.RowLabels) }

func (m Matrix) Cols() int { return len(m.ColLabels) }

// Empty reports whether there is nothing to recommend from.
func (m Matrix) Empty() bool {
	return m.Rows() == 0 || m.Cols() == 0
}

// Validate checks the labels stay index-aligned with the values.
func (m Matrix) Validate() error {
	if len(m.Values) != len(m.RowLabels) {
		return fmt.Errorf("matrix has %d rows but %d row labels", len(m.Values), len(m.RowLabels))
	}
	for i, row := range m.Values {
		if len(row) != len(m.ColLabels) {
			return fmt.Errorf("matrix row %d has %d columns but %d column labels", i, len(row), len(m.ColLabels))
		}
	}
	return nil
}

// Model yields a predicted score for every (row, column) pair. The order of
// the returned list is not guaranteed.
type Model interface {
	Recommendations(rowLabel string) []domain.Recommendation
}

// Factorizer learns a Model from a rating matrix.
type Factorizer interface {
	Fit(ctx context.Context, m Matrix) (Model, error)
}
