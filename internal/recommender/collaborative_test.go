package recommender

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsense/engine/pkg/models"
)

func collaborativeFixture(t *testing.T) *TrainingData {
	t.Helper()
	ratings := []models.Rating{
		{UserID: 1, MovieID: 10, Rating: 5.0},
		{UserID: 1, MovieID: 20, Rating: 5.0},
		{UserID: 2, MovieID: 10, Rating: 5.0},
		{UserID: 2, MovieID: 20, Rating: 5.0},
		{UserID: 2, MovieID: 30, Rating: 4.0},
		{UserID: 3, MovieID: 10, Rating: 1.0},
	}
	m, err := NewRatingMatrix(ratings, 0.5, 5.0)
	require.NoError(t, err)
	return &TrainingData{Ratings: ratings, Matrix: m}
}

func TestSparseCosine(t *testing.T) {
	a := map[int]float64{0: 3.0, 1: 4.0}
	normA := 5.0

	t.Run("identical vectors", func(t *testing.T) {
		assert.InDelta(t, 1.0, sparseCosine(a, a, normA, normA), 1e-12)
	})

	t.Run("symmetric", func(t *testing.T) {
		b := map[int]float64{1: 2.0, 2: 1.0}
		normB := math.Sqrt(5.0)
		assert.Equal(t, sparseCosine(a, b, normA, normB), sparseCosine(b, a, normB, normA))
	})

	t.Run("no overlap", func(t *testing.T) {
		b := map[int]float64{5: 4.0}
		assert.Zero(t, sparseCosine(a, b, normA, 4.0))
	})

	t.Run("zero norm", func(t *testing.T) {
		assert.Zero(t, sparseCosine(a, map[int]float64{}, normA, 0))
	})
}

func TestCollaborativePredict(t *testing.T) {
	data := collaborativeFixture(t)
	scorer := NewCollaborativeScorer(30)
	require.NoError(t, scorer.Fit(data))

	// Only user 2 among user 1's neighbors rated movie 30, so the
	// weighted average collapses to user 2's rating.
	score := scorer.Predict(1, 30)
	assert.False(t, score.ColdStart)
	assert.InDelta(t, 4.0, score.Value, 1e-12)
	assert.Greater(t, score.Confidence, 0.0)
	assert.LessOrEqual(t, score.Confidence, 1.0)
}

func TestCollaborativePredictBounds(t *testing.T) {
	data := collaborativeFixture(t)
	scorer := NewCollaborativeScorer(30)
	require.NoError(t, scorer.Fit(data))

	for _, userID := range []int64{1, 2, 3} {
		for _, movieID := range []int64{10, 20, 30} {
			score := scorer.Predict(userID, movieID)
			assert.GreaterOrEqual(t, score.Value, 0.5)
			assert.LessOrEqual(t, score.Value, 5.0)
		}
	}
}

func TestCollaborativeColdStart(t *testing.T) {
	data := collaborativeFixture(t)
	scorer := NewCollaborativeScorer(30)
	require.NoError(t, scorer.Fit(data))

	tests := []struct {
		name    string
		userID  int64
		movieID int64
	}{
		{"unknown user", 99, 10},
		{"unknown movie", 1, 99},
		{"both unknown", 99, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.Predict(tt.userID, tt.movieID)
			assert.True(t, score.ColdStart)
			assert.Equal(t, data.Matrix.GlobalMean(), score.Value)
			assert.InDelta(t, 0.1, score.Confidence, 1e-12)
		})
	}
}

func TestCollaborativeNeighborTruncation(t *testing.T) {
	data := collaborativeFixture(t)
	scorer := NewCollaborativeScorer(1)
	require.NoError(t, scorer.Fit(data))

	for _, list := range scorer.neighbors {
		assert.LessOrEqual(t, len(list), 1)
	}

	// User 2 shares two identical rating columns with user 1 but only
	// one with user 3, so user 1 must win the single slot.
	assert.Greater(t, scorer.similarity(2, 1), 0.0)
}

func TestCollaborativeSimilaritySelf(t *testing.T) {
	data := collaborativeFixture(t)
	scorer := NewCollaborativeScorer(30)
	require.NoError(t, scorer.Fit(data))

	assert.Equal(t, 1.0, scorer.similarity(1, 1))
	assert.Zero(t, scorer.similarity(1, 99))
}

func TestCollaborativeFitRequiresMatrix(t *testing.T) {
	scorer := NewCollaborativeScorer(30)
	var fitErr *FitDataError
	assert.ErrorAs(t, scorer.Fit(nil), &fitErr)
	assert.ErrorAs(t, scorer.Fit(&TrainingData{}), &fitErr)
}
