package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reelsense/engine/internal/config"
	"github.com/reelsense/engine/pkg/models"
)

// Loader reads the three validated MovieLens-style tables the engine
// fits from: ratings, movies, and free-text tags. A malformed row is a
// fatal load error; the loader never silently cleans input.
type Loader struct {
	cfg    config.DataConfig
	logger *logrus.Logger
}

func NewLoader(cfg config.DataConfig, logger *logrus.Logger) *Loader {
	return &Loader{cfg: cfg, logger: logger}
}

// LoadAll reads the full training set from the configured directory.
func (l *Loader) LoadAll() ([]models.Rating, []models.Movie, []models.Tag, error) {
	ratings, err := l.LoadRatings(filepath.Join(l.cfg.Dir, l.cfg.RatingsFile))
	if err != nil {
		return nil, nil, nil, err
	}
	movies, err := l.LoadMovies(filepath.Join(l.cfg.Dir, l.cfg.MoviesFile))
	if err != nil {
		return nil, nil, nil, err
	}
	tags, err := l.LoadTags(filepath.Join(l.cfg.Dir, l.cfg.TagsFile))
	if err != nil {
		return nil, nil, nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"ratings": len(ratings),
		"movies":  len(movies),
		"tags":    len(tags),
	}).Info("Training data loaded")

	return ratings, movies, tags, nil
}

// LoadRatings parses a ratings table: userId,movieId,rating,timestamp.
func (l *Loader) LoadRatings(path string) ([]models.Rating, error) {
	var ratings []models.Rating
	err := readTable(path, []string{"userId", "movieId", "rating", "timestamp"}, func(line int, record []string) error {
		userID, err := parseID(record[0])
		if err != nil {
			return fmt.Errorf("line %d: user id: %w", line, err)
		}
		movieID, err := parseID(record[1])
		if err != nil {
			return fmt.Errorf("line %d: movie id: %w", line, err)
		}
		value, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return fmt.Errorf("line %d: rating: %w", line, err)
		}
		ts, err := parseTimestamp(record[3])
		if err != nil {
			return fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		ratings = append(ratings, models.Rating{UserID: userID, MovieID: movieID, Rating: value, Timestamp: ts})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading ratings from %s: %w", path, err)
	}
	return ratings, nil
}

// LoadMovies parses a movies table: movieId,title,genres. Genres are
// pipe-separated.
func (l *Loader) LoadMovies(path string) ([]models.Movie, error) {
	var movies []models.Movie
	err := readTable(path, []string{"movieId", "title", "genres"}, func(line int, record []string) error {
		movieID, err := parseID(record[0])
		if err != nil {
			return fmt.Errorf("line %d: movie id: %w", line, err)
		}
		movies = append(movies, models.Movie{
			MovieID: movieID,
			Title:   record[1],
			Genres:  splitGenres(record[2]),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading movies from %s: %w", path, err)
	}
	return movies, nil
}

// LoadTags parses a tags table: userId,movieId,tag,timestamp. A missing
// file yields no tags; the content scorer then works from genres alone.
func (l *Loader) LoadTags(path string) ([]models.Tag, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		l.logger.WithField("path", path).Warn("Tags file not found, continuing without tags")
		return nil, nil
	}

	var tags []models.Tag
	err := readTable(path, []string{"userId", "movieId", "tag", "timestamp"}, func(line int, record []string) error {
		userID, err := parseID(record[0])
		if err != nil {
			return fmt.Errorf("line %d: user id: %w", line, err)
		}
		movieID, err := parseID(record[1])
		if err != nil {
			return fmt.Errorf("line %d: movie id: %w", line, err)
		}
		ts, err := parseTimestamp(record[3])
		if err != nil {
			return fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		tags = append(tags, models.Tag{UserID: userID, MovieID: movieID, Tag: record[2], Timestamp: ts})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading tags from %s: %w", path, err)
	}
	return tags, nil
}

func readTable(path string, header []string, row func(line int, record []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	first, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(first[i]), want) {
			return fmt.Errorf("unexpected header column %d: got %q, want %q", i, first[i], want)
		}
	}

	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if err := row(line, record); err != nil {
			return err
		}
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("non-positive id %d", id)
	}
	return id, nil
}

func parseTimestamp(s string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func splitGenres(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			genres = append(genres, p)
		}
	}
	return genres
}
