package recommender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsense/engine/pkg/models"
)

func noveltyFixture() *TrainingData {
	return &TrainingData{
		Ratings: []models.Rating{
			{UserID: 1, MovieID: 10, Rating: 5.0},
			{UserID: 2, MovieID: 10, Rating: 4.0},
			{UserID: 3, MovieID: 10, Rating: 3.0},
			{UserID: 1, MovieID: 20, Rating: 4.0},
		},
	}
}

func TestNoveltyScores(t *testing.T) {
	scorer := NewNoveltyScorer(0.3)
	require.NoError(t, scorer.Fit(noveltyFixture()))

	t.Run("most popular movie scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.NoveltyScore(10))
	})

	t.Run("less popular scores higher", func(t *testing.T) {
		assert.Greater(t, scorer.NoveltyScore(20), scorer.NoveltyScore(10))
	})

	t.Run("unseen movie scores exactly one", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.NoveltyScore(30))
	})

	t.Run("scores stay in unit interval", func(t *testing.T) {
		for _, movieID := range []int64{10, 20, 30} {
			score := scorer.NoveltyScore(movieID)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})
}

func TestNoveltyPredict(t *testing.T) {
	scorer := NewNoveltyScorer(0.3)
	require.NoError(t, scorer.Fit(noveltyFixture()))

	seen := scorer.Predict(1, 20)
	assert.False(t, seen.ColdStart)
	assert.Equal(t, 1.0, seen.Confidence)

	unseen := scorer.Predict(1, 999)
	assert.True(t, unseen.ColdStart)
	assert.Equal(t, 1.0, unseen.Value)
	assert.InDelta(t, 0.5, unseen.Confidence, 1e-12)
}

func TestNoveltyFitRequiresRatings(t *testing.T) {
	scorer := NewNoveltyScorer(0.3)
	var fitErr *FitDataError
	assert.ErrorAs(t, scorer.Fit(nil), &fitErr)
	assert.ErrorAs(t, scorer.Fit(&TrainingData{}), &fitErr)
}
