package recommender

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelsense/engine/pkg/models"
)

// Weights is the (alpha, beta, gamma, delta) tuple applied to the
// normalized sub-scores. The weights need not sum to 1.
type Weights struct {
	Collaborative float64 `json:"collaborative"`
	Content       float64 `json:"content"`
	Factorization float64 `json:"factorization"`
	Novelty       float64 `json:"novelty"`
}

func DefaultWeights() Weights {
	return Weights{Collaborative: 0.25, Content: 0.25, Factorization: 0.35, Novelty: 0.15}
}

// HybridParams bundles everything the orchestrator needs at construction
// time. It is passed by value and never mutated after NewHybridRecommender,
// replacing any notion of process-wide weight configuration.
type HybridParams struct {
	Weights          Weights
	MinRating        float64
	MaxRating        float64
	KNeighbors       int
	MaxFeatures      int
	Factorization    FactorizationParams
	NoveltyDampening float64
	DiversityLambda  float64
}

func DefaultHybridParams() HybridParams {
	return HybridParams{
		Weights:          DefaultWeights(),
		MinRating:        0.5,
		MaxRating:        5.0,
		KNeighbors:       defaultKNeighbors,
		MaxFeatures:      defaultMaxFeatures,
		Factorization:    DefaultFactorizationParams(),
		NoveltyDampening: defaultNoveltyDampening,
		DiversityLambda:  defaultDiversityLambda,
	}
}

// RecommendOptions mirror the recommend operation's switches.
type RecommendOptions struct {
	ExcludeRated bool
	Diversify    bool
	Explain      bool
}

func DefaultRecommendOptions() RecommendOptions {
	return RecommendOptions{ExcludeRated: true}
}

// HybridRecommender fits and holds the four scorers and blends their
// normalized outputs into one composite score. Once Fit (or a bundle
// load) completes, every structure is immutable and all read operations
// are safe for unsynchronized concurrent use.
type HybridRecommender struct {
	params HybridParams
	logger *logrus.Logger

	cf        *CollaborativeScorer
	content   *ContentScorer
	mf        *FactorizationScorer
	novelty   *NoveltyScorer
	diversity *DiversitySelector

	matrix   *RatingMatrix
	movies   map[int64]models.Movie
	movieIDs []int64

	fitID    uuid.UUID
	fittedAt time.Time
	fitted   bool
}

func NewHybridRecommender(params HybridParams, logger *logrus.Logger) *HybridRecommender {
	if logger == nil {
		logger = logrus.New()
	}
	return &HybridRecommender{
		params:  params,
		logger:  logger,
		cf:      NewCollaborativeScorer(params.KNeighbors),
		content: NewContentScorer(params.MaxFeatures),
		mf:      NewFactorizationScorer(params.Factorization),
		novelty: NewNoveltyScorer(params.NoveltyDampening),
	}
}

// Fit builds the shared rating matrix and then fits the four scorers
// concurrently -- they share no mutable state, each publishing its
// immutable result when its own fit returns. The recommender is not
// usable until Fit returns nil.
func (h *HybridRecommender) Fit(ctx context.Context, ratings []models.Rating, movies []models.Movie, tags []models.Tag) error {
	start := time.Now()

	if len(movies) == 0 {
		return fitDataErrorf("no movies")
	}
	matrix, err := NewRatingMatrix(ratings, h.params.MinRating, h.params.MaxRating)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := &TrainingData{Ratings: ratings, Movies: movies, Tags: tags, Matrix: matrix}

	scorers := []Scorer{h.cf, h.content, h.mf, h.novelty}
	errs := make([]error, len(scorers))
	var wg sync.WaitGroup
	for i, scorer := range scorers {
		wg.Add(1)
		go func(i int, scorer Scorer) {
			defer wg.Done()
			errs[i] = scorer.Fit(data)
		}(i, scorer)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("fitting %s: %w", scorers[i].Name(), err)
		}
	}

	movieMap := make(map[int64]models.Movie, len(movies))
	movieIDs := make([]int64, 0, len(movies))
	for _, mv := range movies {
		if _, dup := movieMap[mv.MovieID]; dup {
			return fitDataErrorf("duplicate movie id %d", mv.MovieID)
		}
		movieMap[mv.MovieID] = mv
		movieIDs = append(movieIDs, mv.MovieID)
	}
	sort.Slice(movieIDs, func(i, j int) bool { return movieIDs[i] < movieIDs[j] })

	h.matrix = matrix
	h.movies = movieMap
	h.movieIDs = movieIDs
	h.diversity = NewDiversitySelector(h.params.DiversityLambda, movies)
	h.fitID = uuid.New()
	h.fittedAt = time.Now().UTC()
	h.fitted = true

	h.logger.WithFields(logrus.Fields{
		"fit_id":   h.fitID,
		"users":    matrix.UserCount(),
		"movies":   len(movieIDs),
		"ratings":  matrix.RatingCount(),
		"duration": time.Since(start),
	}).Info("Hybrid recommender fitted")

	return nil
}

// FitID identifies the fit pass that produced the active bundle.
func (h *HybridRecommender) FitID() uuid.UUID    { return h.fitID }
func (h *HybridRecommender) FittedAt() time.Time { return h.fittedAt }
func (h *HybridRecommender) Weights() Weights    { return h.params.Weights }

// Predict computes the composite score for a user-movie pair. Each
// sub-score is min-max normalized to [0, 1] before weighting: the
// collaborative and factorization signals live on the rating scale while
// content and novelty are already unit-interval, so skipping this step
// would silently distort the configured weights.
func (h *HybridRecommender) Predict(userID, movieID int64, explain bool) (float64, *models.ScoreBreakdown, error) {
	if !h.fitted {
		return 0, nil, ErrNotFitted
	}
	if userID <= 0 || movieID <= 0 {
		return 0, nil, fmt.Errorf("invalid id (user=%d, movie=%d): %w", userID, movieID, ErrNotFound)
	}
	if _, ok := h.movies[movieID]; !ok {
		return 0, nil, fmt.Errorf("movie %d: %w", movieID, ErrNotFound)
	}

	breakdown := h.scorePair(userID, movieID)
	if !explain {
		return breakdown.CompositeScore, nil, nil
	}
	return breakdown.CompositeScore, &breakdown, nil
}

// scorePair assumes the movie is in the catalog.
func (h *HybridRecommender) scorePair(userID, movieID int64) models.ScoreBreakdown {
	w := h.params.Weights

	cfNorm := h.normalizeRating(h.cf.Predict(userID, movieID).Value)
	contentNorm := clamp(h.content.Predict(userID, movieID).Value, 0, 1)
	mfNorm := h.normalizeRating(h.mf.Predict(userID, movieID).Value)
	noveltyNorm := clamp(h.novelty.Predict(userID, movieID).Value, 0, 1)

	composite := w.Collaborative*cfNorm + w.Content*contentNorm +
		w.Factorization*mfNorm + w.Novelty*noveltyNorm

	return models.ScoreBreakdown{
		CFScore:        cfNorm,
		CFWeight:       w.Collaborative,
		ContentScore:   contentNorm,
		ContentWeight:  w.Content,
		SVDScore:       mfNorm,
		SVDWeight:      w.Factorization,
		NoveltyScore:   noveltyNorm,
		NoveltyWeight:  w.Novelty,
		CompositeScore: composite,
	}
}

func (h *HybridRecommender) normalizeRating(v float64) float64 {
	return clamp((v-h.params.MinRating)/(h.params.MaxRating-h.params.MinRating), 0, 1)
}

// Recommend ranks the candidate set (the catalog minus, optionally, the
// user's rated movies) by composite score and returns exactly
// min(n, |candidates|) results with no duplicates. Ordering is
// deterministic: descending score, ties by ascending movie id. With
// Diversify set the score-ranked pool is handed to the diversity
// selector instead of plain truncation. Cancellation is honored between
// candidates; a cancelled call returns the context error, never a
// silently truncated ranking.
func (h *HybridRecommender) Recommend(ctx context.Context, userID int64, n int, opts RecommendOptions) ([]models.Recommendation, error) {
	if !h.fitted {
		return nil, ErrNotFitted
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id %d: %w", userID, ErrNotFound)
	}
	if n <= 0 {
		return nil, nil
	}

	rated := make(map[int64]struct{})
	if opts.ExcludeRated {
		for _, id := range h.matrix.RatedMovies(userID) {
			rated[id] = struct{}{}
		}
	}

	type scoredCandidate struct {
		movieID   int64
		breakdown models.ScoreBreakdown
	}
	scored := make([]scoredCandidate, 0, len(h.movieIDs))
	for _, movieID := range h.movieIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, skip := rated[movieID]; skip {
			continue
		}
		scored = append(scored, scoredCandidate{movieID: movieID, breakdown: h.scorePair(userID, movieID)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].breakdown.CompositeScore != scored[j].breakdown.CompositeScore {
			return scored[i].breakdown.CompositeScore > scored[j].breakdown.CompositeScore
		}
		return scored[i].movieID < scored[j].movieID
	})

	order := make([]int64, 0, n)
	if opts.Diversify {
		poolSize := 2 * n
		if poolSize > len(scored) {
			poolSize = len(scored)
		}
		pool := make([]ScoredMovie, poolSize)
		for i := 0; i < poolSize; i++ {
			pool[i] = ScoredMovie{MovieID: scored[i].movieID, Score: scored[i].breakdown.CompositeScore}
		}
		for _, sm := range h.diversity.Rerank(pool, n) {
			order = append(order, sm.MovieID)
		}
	} else {
		limit := n
		if limit > len(scored) {
			limit = len(scored)
		}
		for i := 0; i < limit; i++ {
			order = append(order, scored[i].movieID)
		}
	}

	breakdowns := make(map[int64]models.ScoreBreakdown, len(scored))
	for _, sc := range scored {
		breakdowns[sc.movieID] = sc.breakdown
	}

	recs := make([]models.Recommendation, 0, len(order))
	for i, movieID := range order {
		mv := h.movies[movieID]
		bd := breakdowns[movieID]
		rec := models.Recommendation{
			MovieID:  movieID,
			Title:    mv.Title,
			Genres:   mv.Genres,
			Score:    bd.CompositeScore,
			Position: i + 1,
		}
		if opts.Explain {
			b := bd
			rec.Explanation = &b
		}
		recs = append(recs, rec)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Signal names and their one-sentence templates, keyed in the fixed
// order used to break primary-reason ties.
var explanationTemplates = []struct {
	reason   string
	template string
}{
	{"collaborative filtering", "Users with similar taste to yours loved this movie"},
	{"content similarity", "This movie matches the genres and themes you enjoy"},
	{"rating prediction", "Our algorithm predicts you'll rate this highly"},
	{"novelty/discovery", "This is a hidden gem you might not have discovered otherwise"},
}

// Explain recomputes the four sub-scores and names the signal with the
// largest weighted contribution as the primary reason, mapped to a fixed
// template sentence. The output is purely deterministic given the
// sub-scores.
func (h *HybridRecommender) Explain(userID, movieID int64) (*models.Explanation, error) {
	if !h.fitted {
		return nil, ErrNotFitted
	}
	if userID <= 0 || movieID <= 0 {
		return nil, fmt.Errorf("invalid id (user=%d, movie=%d): %w", userID, movieID, ErrNotFound)
	}
	mv, ok := h.movies[movieID]
	if !ok {
		return nil, fmt.Errorf("movie %d: %w", movieID, ErrNotFound)
	}

	bd := h.scorePair(userID, movieID)
	contributions := []float64{
		bd.CFWeight * bd.CFScore,
		bd.ContentWeight * bd.ContentScore,
		bd.SVDWeight * bd.SVDScore,
		bd.NoveltyWeight * bd.NoveltyScore,
	}
	primary := 0
	for i, c := range contributions {
		if c > contributions[primary] {
			primary = i
		}
	}

	return &models.Explanation{
		MovieID:       movieID,
		Title:         mv.Title,
		Genres:        mv.Genres,
		OverallScore:  bd.CompositeScore,
		PrimaryReason: explanationTemplates[primary].reason,
		Breakdown:     bd,
		Text:          explanationTemplates[primary].template,
	}, nil
}
