package recommender

import "math"

const defaultNoveltyDampening = 0.3

// NoveltyScorer favors long-tail movies through inverse popularity:
//
//	novelty(i) = (1 - count(i)/maxCount)^dampening
//
// Dampening < 1 lifts the mid-tail while keeping novelty monotonically
// non-increasing in rating count. A movie unseen at fit time scores
// exactly 1 -- an explicit maximum-novelty policy (a minimum or neutral
// default would be equally defensible; kept as-is rather than silently
// changed).
type NoveltyScorer struct {
	dampening float64
	scores    map[int64]float64
}

func NewNoveltyScorer(dampening float64) *NoveltyScorer {
	if dampening <= 0 {
		dampening = defaultNoveltyDampening
	}
	return &NoveltyScorer{dampening: dampening}
}

func (s *NoveltyScorer) Name() string { return "novelty" }

func (s *NoveltyScorer) Fit(data *TrainingData) error {
	if data == nil || len(data.Ratings) == 0 {
		return fitDataErrorf("novelty fit requires ratings")
	}

	counts := make(map[int64]int)
	maxCount := 0
	for _, r := range data.Ratings {
		counts[r.MovieID]++
		if counts[r.MovieID] > maxCount {
			maxCount = counts[r.MovieID]
		}
	}

	s.scores = make(map[int64]float64, len(counts))
	for movieID, count := range counts {
		popularity := float64(count) / float64(maxCount)
		s.scores[movieID] = math.Pow(1.0-popularity, s.dampening)
	}
	return nil
}

// NoveltyScore returns the precomputed score in [0, 1]; unseen movies
// return 1.
func (s *NoveltyScorer) NoveltyScore(movieID int64) float64 {
	if score, ok := s.scores[movieID]; ok {
		return score
	}
	return 1.0
}

func (s *NoveltyScorer) Predict(userID, movieID int64) Score {
	score, seen := s.scores[movieID]
	if !seen {
		return Score{Value: 1.0, Confidence: 0.5, ColdStart: true}
	}
	return Score{Value: score, Confidence: 1.0, ColdStart: false}
}
