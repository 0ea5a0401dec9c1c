package recommender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsense/engine/pkg/models"
)

func factorizationFixture(t *testing.T) *TrainingData {
	t.Helper()
	ratings := []models.Rating{
		{UserID: 1, MovieID: 10, Rating: 5.0},
		{UserID: 1, MovieID: 20, Rating: 3.0},
		{UserID: 2, MovieID: 10, Rating: 4.0},
		{UserID: 2, MovieID: 30, Rating: 2.0},
		{UserID: 3, MovieID: 20, Rating: 4.5},
		{UserID: 3, MovieID: 30, Rating: 1.5},
	}
	m, err := NewRatingMatrix(ratings, 0.5, 5.0)
	require.NoError(t, err)
	return &TrainingData{Ratings: ratings, Matrix: m}
}

func testFactorizationParams() FactorizationParams {
	return FactorizationParams{
		Factors:        4,
		Epochs:         5,
		LearningRate:   0.005,
		Regularization: 0.02,
		InitStdDev:     0.1,
		Seed:           42,
	}
}

func TestFactorizationPredictClipped(t *testing.T) {
	data := factorizationFixture(t)
	scorer := NewFactorizationScorer(testFactorizationParams())
	require.NoError(t, scorer.Fit(data))

	for _, userID := range []int64{1, 2, 3, 99} {
		for _, movieID := range []int64{10, 20, 30, 99} {
			score := scorer.Predict(userID, movieID)
			assert.GreaterOrEqual(t, score.Value, 0.5)
			assert.LessOrEqual(t, score.Value, 5.0)
		}
	}
}

func TestFactorizationUnseenUserBiasOnly(t *testing.T) {
	data := factorizationFixture(t)
	params := testFactorizationParams()
	params.Epochs = 0
	scorer := NewFactorizationScorer(params)
	require.NoError(t, scorer.Fit(data))

	// Without training epochs all biases stay zero, so an unseen user
	// paired with an unseen movie predicts exactly the global mean.
	score := scorer.Predict(99, 999)
	assert.True(t, score.ColdStart)
	assert.Equal(t, data.Matrix.GlobalMean(), score.Value)
	assert.InDelta(t, 0.3, score.Confidence, 1e-12)
}

func TestFactorizationGlobalMeanPreservedByTraining(t *testing.T) {
	data := factorizationFixture(t)
	params := testFactorizationParams()
	params.Epochs = 20
	scorer := NewFactorizationScorer(params)
	require.NoError(t, scorer.Fit(data))

	// Training moves the per-user/per-item biases and factors, never μ,
	// so a fully unseen pair still predicts exactly the global mean.
	assert.Equal(t, data.Matrix.GlobalMean(), scorer.globalBias)

	score := scorer.Predict(99999, 999)
	assert.True(t, score.ColdStart)
	assert.Equal(t, data.Matrix.GlobalMean(), score.Value)
}

func TestFactorizationColdStartConfidence(t *testing.T) {
	data := factorizationFixture(t)
	scorer := NewFactorizationScorer(testFactorizationParams())
	require.NoError(t, scorer.Fit(data))

	tests := []struct {
		name       string
		userID     int64
		movieID    int64
		confidence float64
		coldStart  bool
	}{
		{"both known", 1, 10, 0.8, false},
		{"unknown movie", 1, 99, 0.5, true},
		{"unknown user", 99, 10, 0.5, true},
		{"both unknown", 99, 99, 0.3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.Predict(tt.userID, tt.movieID)
			assert.InDelta(t, tt.confidence, score.Confidence, 1e-12)
			assert.Equal(t, tt.coldStart, score.ColdStart)
		})
	}
}

func TestFactorizationSeedDeterminism(t *testing.T) {
	data := factorizationFixture(t)

	first := NewFactorizationScorer(testFactorizationParams())
	require.NoError(t, first.Fit(data))
	second := NewFactorizationScorer(testFactorizationParams())
	require.NoError(t, second.Fit(data))

	for _, userID := range []int64{1, 2, 3} {
		for _, movieID := range []int64{10, 20, 30} {
			assert.Equal(t, first.Predict(userID, movieID).Value, second.Predict(userID, movieID).Value)
		}
	}
}

func TestFactorizationTrainingReducesError(t *testing.T) {
	data := factorizationFixture(t)

	untrained := NewFactorizationScorer(func() FactorizationParams {
		p := testFactorizationParams()
		p.Epochs = 0
		return p
	}())
	require.NoError(t, untrained.Fit(data))

	trained := NewFactorizationScorer(func() FactorizationParams {
		p := testFactorizationParams()
		p.Epochs = 50
		return p
	}())
	require.NoError(t, trained.Fit(data))

	sse := func(s *FactorizationScorer) float64 {
		total := 0.0
		for _, r := range data.Ratings {
			diff := s.Predict(r.UserID, r.MovieID).Value - r.Rating
			total += diff * diff
		}
		return total
	}
	assert.Less(t, sse(trained), sse(untrained))
}

func TestFactorizationFitRequiresMatrix(t *testing.T) {
	scorer := NewFactorizationScorer(testFactorizationParams())
	var fitErr *FitDataError
	assert.ErrorAs(t, scorer.Fit(nil), &fitErr)
}
