package recommender

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// FactorizationParams controls the biased matrix-factorization fit.
// Seed makes training reproducible; inference itself never draws
// randomness.
type FactorizationParams struct {
	Factors        int     `json:"factors"`
	Epochs         int     `json:"epochs"`
	LearningRate   float64 `json:"learning_rate"`
	Regularization float64 `json:"regularization"`
	InitStdDev     float64 `json:"init_std_dev"`
	Seed           int64   `json:"seed"`
}

func DefaultFactorizationParams() FactorizationParams {
	return FactorizationParams{
		Factors:        100,
		Epochs:         20,
		LearningRate:   0.005,
		Regularization: 0.02,
		InitStdDev:     0.1,
		Seed:           42,
	}
}

// FactorizationScorer learns rank-k user and item factor vectors plus
// per-user/per-item biases by regularized SGD over the observed entries
// only. The global bias μ is the rating global mean and is not trained.
//
//	r̂(u, i) = μ + b_u + b_i + p_u · q_i
//
// The prediction is clipped to the rating scale. An unseen user or item
// drops its bias and the interaction term, leaving the bias-only
// estimate; with both sides unseen that is exactly μ.
type FactorizationScorer struct {
	params FactorizationParams

	matrix *RatingMatrix

	globalBias  float64
	userBias    []float64
	itemBias    []float64
	userFactors [][]float64
	itemFactors [][]float64
}

func NewFactorizationScorer(params FactorizationParams) *FactorizationScorer {
	if params.Factors <= 0 {
		params.Factors = 100
	}
	if params.LearningRate <= 0 {
		params.LearningRate = 0.005
	}
	if params.Regularization < 0 {
		params.Regularization = 0.02
	}
	if params.InitStdDev <= 0 {
		params.InitStdDev = 0.1
	}
	return &FactorizationScorer{params: params}
}

func (s *FactorizationScorer) Name() string { return "matrix_factorization" }

func (s *FactorizationScorer) Fit(data *TrainingData) error {
	if data == nil || data.Matrix == nil {
		return fitDataErrorf("factorization fit requires a rating matrix")
	}
	m := data.Matrix
	userCount, itemCount := m.UserCount(), m.MovieCount()
	k := s.params.Factors

	rng := rand.New(rand.NewSource(s.params.Seed))

	s.globalBias = m.GlobalMean()
	s.userBias = make([]float64, userCount)
	s.itemBias = make([]float64, itemCount)
	s.userFactors = newFactorMatrix(userCount, k, s.params.InitStdDev, rng)
	s.itemFactors = newFactorMatrix(itemCount, k, s.params.InitStdDev, rng)

	lr := s.params.LearningRate
	reg := s.params.Regularization
	entries := m.entries()

	for epoch := 0; epoch < s.params.Epochs; epoch++ {
		for _, e := range entries {
			pu := s.userFactors[e.userIdx]
			qi := s.itemFactors[e.movieIdx]

			est := s.globalBias + s.userBias[e.userIdx] + s.itemBias[e.movieIdx] + floats.Dot(pu, qi)
			residual := e.rating - est

			// The global bias stays fixed at the global mean; only the
			// per-user/per-item biases and factors absorb residuals.
			s.userBias[e.userIdx] += lr * (residual - reg*s.userBias[e.userIdx])
			s.itemBias[e.movieIdx] += lr * (residual - reg*s.itemBias[e.movieIdx])

			// Both factor updates use the values from before this step.
			for f := 0; f < k; f++ {
				puf, qif := pu[f], qi[f]
				pu[f] += lr * (residual*qif - reg*puf)
				qi[f] += lr * (residual*puf - reg*qif)
			}
		}
	}

	s.matrix = m
	return nil
}

func newFactorMatrix(rows, cols int, std float64, rng *rand.Rand) [][]float64 {
	factors := make([][]float64, rows)
	for i := range factors {
		vec := make([]float64, cols)
		for j := range vec {
			vec[j] = rng.NormFloat64() * std
		}
		factors[i] = vec
	}
	return factors
}

// Predict is deterministic and clipped to the rating scale. Unknown ids
// fall back to the bias-only estimate with ColdStart set.
func (s *FactorizationScorer) Predict(userID, movieID int64) Score {
	uIdx, knownUser := s.matrix.UserIdx(userID)
	iIdx, knownItem := s.matrix.MovieIdx(movieID)

	est := s.globalBias
	if knownUser {
		est += s.userBias[uIdx]
	}
	if knownItem {
		est += s.itemBias[iIdx]
	}
	if knownUser && knownItem {
		est += floats.Dot(s.userFactors[uIdx], s.itemFactors[iIdx])
	}

	est = clamp(est, s.matrix.MinRating(), s.matrix.MaxRating())

	confidence := 0.3
	switch {
	case knownUser && knownItem:
		confidence = 0.8
	case knownUser || knownItem:
		confidence = 0.5
	}

	return Score{
		Value:      est,
		Confidence: confidence,
		ColdStart:  !knownUser || !knownItem,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
