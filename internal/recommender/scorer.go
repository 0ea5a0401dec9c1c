package recommender

import "github.com/reelsense/engine/pkg/models"

// Score is the result of a single user-movie prediction. ColdStart marks
// the documented fallback paths (unseen id, no neighbor overlap, empty
// history); it is informational, never an error.
type Score struct {
	Value      float64
	Confidence float64
	ColdStart  bool
}

// TrainingData is the validated snapshot every scorer fits from. Matrix
// is shared and immutable; scorers read it, never mutate it.
type TrainingData struct {
	Ratings []models.Rating
	Movies  []models.Movie
	Tags    []models.Tag
	Matrix  *RatingMatrix
}

// Scorer is the contract each of the four scoring signals implements.
// Fit builds all internal state exactly once; Predict is read-only and
// safe for concurrent use after Fit returns.
type Scorer interface {
	Name() string
	Fit(data *TrainingData) error
	Predict(userID, movieID int64) Score
}
