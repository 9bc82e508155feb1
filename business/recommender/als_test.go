package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoresByVideo(t *testing.T, m Model, user string) map[string]float64 {
	t.Helper()
	out := map[string]float64{}
	for _, r := range m.Recommendations(user) {
		out[r.VideoID] = r.Score
	}
	return out
}

func TestNewALS(t *testing.T) {
	a := NewALS(ALSConfig{})
	assert.Equal(t, DefaultALSConfig(), a.config)

	a = NewALS(ALSConfig{NumFactors: 3, NumIterations: 2, Regularization: 0.5, NumWorkers: 1, Seed: 7})
	assert.Equal(t, 3, a.config.NumFactors)
	assert.Equal(t, 2, a.config.NumIterations)
	assert.Equal(t, 0.5, a.config.Regularization)
}

func TestALS_Fit(t *testing.T) {
	ctx := context.Background()

	t.Run("full prediction row per user", func(t *testing.T) {
		m := Matrix{
			Values:    [][]float64{{5, 0, 0}, {0, 0, 0}},
			RowLabels: []string{"a", "b"},
			ColLabels: []string{"v1", "v2", "v3"},
		}
		model, err := NewALS(DefaultALSConfig()).Fit(ctx, m)
		require.NoError(t, err)

		recs := model.Recommendations("b")
		require.Len(t, recs, 3)
		assert.Equal(t, "v1", recs[0].VideoID)
		assert.Equal(t, "v2", recs[1].VideoID)
		assert.Equal(t, "v3", recs[2].VideoID)
	})

	t.Run("cold start user receives video means", func(t *testing.T) {
		m := Matrix{
			Values:    [][]float64{{5, 1, 0}, {4, 2, 0}, {0, 0, 0}},
			RowLabels: []string{"a", "b", "new"},
			ColLabels: []string{"v1", "v2", "v3"},
		}
		model, err := NewALS(DefaultALSConfig()).Fit(ctx, m)
		require.NoError(t, err)

		got := scoresByVideo(t, model, "new")
		assert.InDelta(t, 4.5, got["v1"], 1e-9)
		assert.InDelta(t, 1.5, got["v2"], 1e-9)
		assert.InDelta(t, 3.0, got["v3"], 1e-9)
	})

	t.Run("keeps a user's preference order", func(t *testing.T) {
		m := Matrix{
			Values:    [][]float64{{5, 1, 0}, {4, 2, 0}, {0, 0, 0}},
			RowLabels: []string{"a", "b", "new"},
			ColLabels: []string{"v1", "v2", "v3"},
		}
		model, err := NewALS(DefaultALSConfig()).Fit(ctx, m)
		require.NoError(t, err)

		got := scoresByVideo(t, model, "a")
		assert.Greater(t, got["v1"], got["v2"])
	})

	t.Run("no videos yields empty recommendations", func(t *testing.T) {
		m := Matrix{
			Values:    [][]float64{{}, {}},
			RowLabels: []string{"a", "b"},
		}
		model, err := NewALS(DefaultALSConfig()).Fit(ctx, m)
		require.NoError(t, err)
		assert.Empty(t, model.Recommendations("a"))
	})

	t.Run("unknown user yields empty recommendations", func(t *testing.T) {
		m := Matrix{
			Values:    [][]float64{{3}},
			RowLabels: []string{"a"},
			ColLabels: []string{"v1"},
		}
		model, err := NewALS(DefaultALSConfig()).Fit(ctx, m)
		require.NoError(t, err)
		assert.Empty(t, model.Recommendations("ghost"))
	})

	t.Run("misaligned labels fail", func(t *testing.T) {
		m := Matrix{
			Values:    [][]float64{{1, 2}},
			RowLabels: []string{"a"},
			ColLabels: []string{"v1"},
		}
		_, err := NewALS(DefaultALSConfig()).Fit(ctx, m)
		require.Error(t, err)
	})

	t.Run("cancelled context aborts training", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		m := Matrix{
			Values:    [][]float64{{1}},
			RowLabels: []string{"a"},
			ColLabels: []string{"v1"},
		}
		_, err := NewALS(DefaultALSConfig()).Fit(cctx, m)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCholeskySolve(t *testing.T) {
	A := [][]float64{{4, 2}, {2, 3}}
	b := []float64{2, 1}

	x, err := choleskySolve(A, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, x[0], 1e-12)
	assert.InDelta(t, 0.0, x[1], 1e-12)

	_, err = choleskySolve([][]float64{{0}}, []float64{1})
	require.Error(t, err)
}
