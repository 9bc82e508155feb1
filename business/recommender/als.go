package recommender

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"proactiveCacher/domain"

	"golang.org/x/sync/errgroup"
)

// ALSConfig contains configuration for the ALS factorizer.
type ALSConfig struct {
	// NumFactors is the dimension of the latent factor vectors.
	NumFactors int

	// NumIterations is the number of alternating passes.
	NumIterations int

	// Regularization is the L2 penalty on the factor vectors.
	Regularization float64

	// NumWorkers bounds the goroutines used per half-step.
	NumWorkers int

	// Seed makes factor initialisation reproducible.
	Seed int64
}

func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		NumFactors:     8,
		NumIterations:  15,
		Regularization: 0.1,
		NumWorkers:     4,
		Seed:           42,
	}
}

// ALS is explicit-feedback alternating least squares over the observed
// (non-zero) cells, fitted on ratings centred by each video's mean.
//
// prediction(u, i) = mean(i) + x_u . y_i
//
// A user with no ratings has x_u = 0 and therefore receives the video means,
// which is how cold start is handled.
type ALS struct {
	config ALSConfig
}

func NewALS(cfg ALSConfig) *ALS {
	def := DefaultALSConfig()
	if cfg.NumFactors <= 0 {
		cfg.NumFactors = def.NumFactors
	}
	if cfg.NumIterations <= 0 {
		cfg.NumIterations = def.NumIterations
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = def.Regularization
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &ALS{config: cfg}
}

type observation struct {
	index    int
	residual float64
}

// Fit trains the factors and materialises the full prediction matrix.
func (a *ALS) Fit(ctx context.Context, m Matrix) (Model, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	numUsers, numItems := m.Rows(), m.Cols()
	model := &DenseModel{
		rowIndex:  make(map[string]int, numUsers),
		colLabels: append([]string(nil), m.ColLabels...),
	}
	for i, label := range m.RowLabels {
		model.rowIndex[label] = i
	}
	if numUsers == 0 || numItems == 0 {
		model.scores = make([][]float64, numUsers)
		return model, nil
	}

	means := columnMeans(m)

	byUser := make([][]observation, numUsers)
	byItem := make([][]observation, numItems)
	for u, row := range m.Values {
		for i, v := range row {
			if v == 0 {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("rating at (%s, %s) is not finite", m.RowLabels[u], m.ColLabels[i])
			}
			r := v - means[i]
			byUser[u] = append(byUser[u], observation{index: i, residual: r})
			byItem[i] = append(byItem[i], observation{index: u, residual: r})
		}
	}

	k := a.config.NumFactors
	rng := rand.New(rand.NewSource(a.config.Seed))
	X := initFactors(rng, numUsers, k)
	Y := initFactors(rng, numItems, k)

	for range a.config.NumIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.solveSide(ctx, X, Y, byUser); err != nil {
			return nil, err
		}
		if err := a.solveSide(ctx, Y, X, byItem); err != nil {
			return nil, err
		}
	}

	model.scores = make([][]float64, numUsers)
	for u := range numUsers {
		model.scores[u] = make([]float64, numItems)
		for i := range numItems {
			p := means[i] + dot(X[u], Y[i])
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, errors.New("factorization diverged")
			}
			model.scores[u][i] = p
		}
	}

	return model, nil
}

// solveSide recomputes every vector in target with other held fixed.
func (a *ALS) solveSide(ctx context.Context, target, other [][]float64, obs [][]observation) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(a.config.NumWorkers)

	chunk := (len(target) + a.config.NumWorkers - 1) / a.config.NumWorkers
	for start := 0; start < len(target); start += chunk {
		end := min(start+chunk, len(target))
		g.Go(func() error {
			for row := start; row < end; row++ {
				x, err := a.solveRow(other, obs[row])
				if err != nil {
					return err
				}
				target[row] = x
			}
			return nil
		})
	}
	return g.Wait()
}

// solveRow solves (sum y y' + lambda I) x = sum r y over the observed cells.
func (a *ALS) solveRow(other [][]float64, obs []observation) ([]float64, error) {
	k := a.config.NumFactors
	A := make([][]float64, k)
	for f := range A {
		A[f] = make([]float64, k)
		A[f][f] = a.config.Regularization
	}
	b := make([]float64, k)

	for _, o := range obs {
		y := other[o.index]
		for f1 := range k {
			for f2 := f1; f2 < k; f2++ {
				A[f1][f2] += y[f1] * y[f2]
				if f1 != f2 {
					A[f2][f1] = A[f1][f2]
				}
			}
			b[f1] += o.residual * y[f1]
		}
	}

	return choleskySolve(A, b)
}

func columnMeans(m Matrix) []float64 {
	sums := make([]float64, m.Cols())
	counts := make([]int, m.Cols())
	var total float64
	var n int
	for _, row := range m.Values {
		for i, v := range row {
			if v == 0 {
				continue
			}
			sums[i] += v
			counts[i]++
			total += v
			n++
		}
	}

	global := 0.0
	if n > 0 {
		global = total / float64(n)
	}

	means := make([]float64, m.Cols())
	for i := range means {
		if counts[i] == 0 {
			means[i] = global
			continue
		}
		means[i] = sums[i] / float64(counts[i])
	}
	return means
}

func initFactors(rng *rand.Rand, n, k int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, k)
		for f := range out[i] {
			out[i][f] = 0.1 * (rng.Float64() - 0.5)
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// choleskySolve solves A x = b for symmetric positive definite A.
func choleskySolve(A [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := range n {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := range j {
				sum -= L[i][k] * L[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, errors.New("matrix is not positive definite")
				}
				L[i][i] = math.Sqrt(sum)
			} else {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// forward: L z = b
	z := make([]float64, n)
	for i := range n {
		sum := b[i]
		for k := range i {
			sum -= L[i][k] * z[k]
		}
		z[i] = sum / L[i][i]
	}

	// backward: L' x = z
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < n; k++ {
			sum -= L[k][i] * x[k]
		}
		x[i] = sum / L[i][i]
	}
	return x, nil
}

// DenseModel holds every predicted score computed at fit time.
type DenseModel struct {
	rowIndex  map[string]int
	colLabels []string
	scores    [][]float64
}

// Recommendations returns one entry per column in column order. Unknown
// rows and column-less models yield an empty list.
func (d *DenseModel) Recommendations(rowLabel string) []domain.Recommendation {
	u, ok := d.rowIndex[rowLabel]
	if !ok || len(d.colLabels) == 0 {
		return []domain.Recommendation{}
	}
	out := make([]domain.Recommendation, 0, len(d.colLabels))
	for i, label := range d.colLabels {
		out = append(out, domain.Recommendation{VideoID: label, Score: d.scores[u][i]})
	}
	return out
}
