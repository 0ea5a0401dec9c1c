package models

// ScoreBreakdown carries the per-signal normalized scores and weights
// behind a composite score. All sub-scores are in [0, 1].
type ScoreBreakdown struct {
	CFScore        float64 `json:"cf_score"`
	CFWeight       float64 `json:"cf_weight"`
	ContentScore   float64 `json:"content_score"`
	ContentWeight  float64 `json:"content_weight"`
	SVDScore       float64 `json:"svd_score"`
	SVDWeight      float64 `json:"svd_weight"`
	NoveltyScore   float64 `json:"novelty_score"`
	NoveltyWeight  float64 `json:"novelty_weight"`
	CompositeScore float64 `json:"composite_score"`
}

// Recommendation is a single ranked item returned by Recommend.
type Recommendation struct {
	MovieID     int64           `json:"movie_id"`
	Title       string          `json:"title"`
	Genres      []string        `json:"genres"`
	Score       float64         `json:"score"`
	Position    int             `json:"position"`
	Explanation *ScoreBreakdown `json:"explanation,omitempty"`
}

// Explanation is the human-readable answer to "why this movie".
// PrimaryReason names the signal with the largest weighted contribution.
type Explanation struct {
	MovieID       int64          `json:"movie_id"`
	Title         string         `json:"title"`
	Genres        []string       `json:"genres"`
	OverallScore  float64        `json:"overall_score"`
	PrimaryReason string         `json:"primary_reason"`
	Breakdown     ScoreBreakdown `json:"score_breakdown"`
	Text          string         `json:"text"`
}
