package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/reelsense/engine/internal/config"
	"github.com/reelsense/engine/internal/recommender"
	"github.com/reelsense/engine/pkg/models"
)

// RecommenderService owns the active model bundle. Fit and Load build a
// complete replacement off to the side and publish it with one atomic
// pointer swap, so readers either see the previous bundle or the new
// one, never a partially constructed model. Read paths take no locks:
// a published bundle is immutable.
type RecommenderService struct {
	cfg     config.RecommenderConfig
	logger  *logrus.Logger
	metrics *Metrics

	active atomic.Pointer[recommender.HybridRecommender]
}

func NewRecommenderService(cfg config.RecommenderConfig, logger *logrus.Logger, reg prometheus.Registerer) *RecommenderService {
	return &RecommenderService{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(reg),
	}
}

func hybridParams(cfg config.RecommenderConfig) recommender.HybridParams {
	return recommender.HybridParams{
		Weights: recommender.Weights{
			Collaborative: cfg.Weights.Collaborative,
			Content:       cfg.Weights.Content,
			Factorization: cfg.Weights.Factorization,
			Novelty:       cfg.Weights.Novelty,
		},
		MinRating:   cfg.RatingScale.Min,
		MaxRating:   cfg.RatingScale.Max,
		KNeighbors:  cfg.Collaborative.KNeighbors,
		MaxFeatures: cfg.Content.MaxFeatures,
		Factorization: recommender.FactorizationParams{
			Factors:        cfg.Factorization.Factors,
			Epochs:         cfg.Factorization.Epochs,
			LearningRate:   cfg.Factorization.LearningRate,
			Regularization: cfg.Factorization.Regularization,
			InitStdDev:     cfg.Factorization.InitStdDev,
			Seed:           cfg.Factorization.Seed,
		},
		NoveltyDampening: cfg.Novelty.Dampening,
		DiversityLambda:  cfg.Diversity.Lambda,
	}
}

// Fit trains a fresh bundle from the full training set and publishes it
// on success. A failed fit leaves the previously active bundle in place.
func (s *RecommenderService) Fit(ctx context.Context, ratings []models.Rating, movies []models.Movie, tags []models.Tag) error {
	start := time.Now()

	model := recommender.NewHybridRecommender(hybridParams(s.cfg), s.logger)
	if err := model.Fit(ctx, ratings, movies, tags); err != nil {
		s.logger.WithError(err).Error("Model fit failed")
		return err
	}

	s.active.Store(model)
	s.metrics.fitDuration.Observe(time.Since(start).Seconds())
	s.metrics.activeModelAge.Set(0)
	s.logger.WithField("fit_id", model.FitID()).Info("New model bundle published")
	return nil
}

// Load replaces the active bundle with one read from disk. Validation
// happens entirely before publication; a bad bundle never becomes
// visible to readers.
func (s *RecommenderService) Load(path string) error {
	model, err := recommender.LoadBundleFile(path, s.logger)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Error("Bundle load rejected")
		return err
	}

	s.active.Store(model)
	s.metrics.activeModelAge.Set(time.Since(model.FittedAt()).Seconds())
	s.logger.WithFields(logrus.Fields{
		"path":   path,
		"fit_id": model.FitID(),
	}).Info("Model bundle loaded")
	return nil
}

// Save writes the active bundle to disk as a single atomic unit.
func (s *RecommenderService) Save(path string) error {
	model := s.active.Load()
	if model == nil {
		return recommender.ErrNotFitted
	}
	return model.SaveFile(path)
}

func (s *RecommenderService) Ready() bool {
	return s.active.Load() != nil
}

func (s *RecommenderService) Predict(userID, movieID int64, explain bool) (float64, *models.ScoreBreakdown, error) {
	model := s.active.Load()
	if model == nil {
		return 0, nil, recommender.ErrNotFitted
	}

	score, breakdown, err := model.Predict(userID, movieID, explain)
	if err != nil {
		s.metrics.predictRequests.WithLabelValues("error").Inc()
		return 0, nil, err
	}
	s.metrics.predictRequests.WithLabelValues("ok").Inc()
	return score, breakdown, nil
}

func (s *RecommenderService) Recommend(ctx context.Context, userID int64, n int, opts recommender.RecommendOptions) ([]models.Recommendation, error) {
	model := s.active.Load()
	if model == nil {
		return nil, recommender.ErrNotFitted
	}

	start := time.Now()
	recs, err := model.Recommend(ctx, userID, n, opts)
	s.metrics.recommendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.recommendRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	s.metrics.recommendRequests.WithLabelValues("ok").Inc()
	return recs, nil
}

func (s *RecommenderService) Explain(userID, movieID int64) (*models.Explanation, error) {
	model := s.active.Load()
	if model == nil {
		return nil, recommender.ErrNotFitted
	}
	return model.Explain(userID, movieID)
}
