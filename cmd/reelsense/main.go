package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/reelsense/engine/internal/config"
	"github.com/reelsense/engine/internal/dataset"
	"github.com/reelsense/engine/internal/recommender"
	"github.com/reelsense/engine/internal/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := setupLogger(cfg)

	if len(args) == 0 {
		return fmt.Errorf("usage: reelsense <train|recommend|predict|explain> [flags]")
	}

	service := services.NewRecommenderService(cfg.Recommender, logger, nil)

	switch args[0] {
	case "train":
		return runTrain(args[1:], cfg, logger, service)
	case "recommend":
		return runRecommend(args[1:], service)
	case "predict":
		return runPredict(args[1:], service)
	case "explain":
		return runExplain(args[1:], service)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runTrain(args []string, cfg *config.Config, logger *logrus.Logger, service *services.RecommenderService) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	out := fs.String("out", "model.bundle.json", "path to write the fitted model bundle")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := dataset.NewLoader(cfg.Data, logger)
	ratings, movies, tags, err := loader.LoadAll()
	if err != nil {
		return err
	}

	if err := service.Fit(context.Background(), ratings, movies, tags); err != nil {
		return err
	}
	if err := service.Save(*out); err != nil {
		return err
	}

	logger.WithField("path", *out).Info("Model bundle written")
	return nil
}

func runRecommend(args []string, service *services.RecommenderService) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	bundle := fs.String("bundle", "model.bundle.json", "path to a fitted model bundle")
	userID := fs.Int64("user", 0, "user id to recommend for")
	n := fs.Int("n", 10, "number of recommendations")
	diversify := fs.Bool("diversify", false, "rerank for genre diversity")
	explain := fs.Bool("explain", false, "attach per-signal score breakdowns")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := service.Load(*bundle); err != nil {
		return err
	}

	opts := recommender.DefaultRecommendOptions()
	opts.Diversify = *diversify
	opts.Explain = *explain

	recs, err := service.Recommend(context.Background(), *userID, *n, opts)
	if err != nil {
		return err
	}
	return writeJSON(recs)
}

func runPredict(args []string, service *services.RecommenderService) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	bundle := fs.String("bundle", "model.bundle.json", "path to a fitted model bundle")
	userID := fs.Int64("user", 0, "user id")
	movieID := fs.Int64("movie", 0, "movie id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := service.Load(*bundle); err != nil {
		return err
	}

	score, breakdown, err := service.Predict(*userID, *movieID, true)
	if err != nil {
		return err
	}
	return writeJSON(map[string]any{"score": score, "breakdown": breakdown})
}

func runExplain(args []string, service *services.RecommenderService) error {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	bundle := fs.String("bundle", "model.bundle.json", "path to a fitted model bundle")
	userID := fs.Int64("user", 0, "user id")
	movieID := fs.Int64("movie", 0, "movie id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := service.Load(*bundle); err != nil {
		return err
	}

	explanation, err := service.Explain(*userID, *movieID)
	if err != nil {
		return err
	}
	return writeJSON(explanation)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
