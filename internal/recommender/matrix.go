package recommender

import (
	"math"
	"sort"

	"github.com/reelsense/engine/pkg/models"
)

// RatingMatrix is the sparse user-item matrix every scorer reads from.
// It is built once per fit and never mutated afterwards. External ids are
// mapped to dense indices assigned in ascending id order, so the mapping
// is reproducible for identical input.
type RatingMatrix struct {
	userIDs  []int64
	movieIDs []int64

	userIndex  map[int64]int
	movieIndex map[int64]int

	// rows[u] maps movie index -> rating for user index u.
	rows []map[int]float64

	userMeans  []float64
	globalMean float64

	minRating float64
	maxRating float64

	ratingCount int
}

type ratingEntry struct {
	userIdx  int
	movieIdx int
	rating   float64
}

// NewRatingMatrix validates the rating table and builds the matrix.
// Duplicate (user, movie) pairs keep the last value, matching the
// de-duplicated contract of the ingestion collaborator.
func NewRatingMatrix(ratings []models.Rating, minRating, maxRating float64) (*RatingMatrix, error) {
	if len(ratings) == 0 {
		return nil, fitDataErrorf("no ratings")
	}
	if !(minRating < maxRating) {
		return nil, fitDataErrorf("rating scale [%g, %g] is empty", minRating, maxRating)
	}

	userSet := make(map[int64]struct{})
	movieSet := make(map[int64]struct{})
	for _, r := range ratings {
		if r.UserID <= 0 || r.MovieID <= 0 {
			return nil, fitDataErrorf("non-positive id in rating (user=%d, movie=%d)", r.UserID, r.MovieID)
		}
		if math.IsNaN(r.Rating) || math.IsInf(r.Rating, 0) {
			return nil, fitDataErrorf("non-finite rating for user=%d movie=%d", r.UserID, r.MovieID)
		}
		if r.Rating < minRating || r.Rating > maxRating {
			return nil, fitDataErrorf("rating %g outside scale [%g, %g]", r.Rating, minRating, maxRating)
		}
		userSet[r.UserID] = struct{}{}
		movieSet[r.MovieID] = struct{}{}
	}

	m := &RatingMatrix{
		userIDs:    sortedIDs(userSet),
		movieIDs:   sortedIDs(movieSet),
		userIndex:  make(map[int64]int, len(userSet)),
		movieIndex: make(map[int64]int, len(movieSet)),
		minRating:  minRating,
		maxRating:  maxRating,
	}
	for i, id := range m.userIDs {
		m.userIndex[id] = i
	}
	for i, id := range m.movieIDs {
		m.movieIndex[id] = i
	}

	m.rows = make([]map[int]float64, len(m.userIDs))
	for i := range m.rows {
		m.rows[i] = make(map[int]float64)
	}
	for _, r := range ratings {
		m.rows[m.userIndex[r.UserID]][m.movieIndex[r.MovieID]] = r.Rating
	}

	// Sums run in sorted column order so rebuilding the matrix from a
	// saved bundle reproduces bit-identical means.
	m.userMeans = make([]float64, len(m.userIDs))
	total := 0.0
	for u, row := range m.rows {
		cols := make([]int, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		sum := 0.0
		for _, c := range cols {
			sum += row[c]
		}
		m.ratingCount += len(row)
		total += sum
		if len(row) > 0 {
			m.userMeans[u] = sum / float64(len(row))
		}
	}
	m.globalMean = total / float64(m.ratingCount)

	return m, nil
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *RatingMatrix) UserCount() int  { return len(m.userIDs) }
func (m *RatingMatrix) MovieCount() int { return len(m.movieIDs) }
func (m *RatingMatrix) RatingCount() int {
	return m.ratingCount
}

func (m *RatingMatrix) GlobalMean() float64 { return m.globalMean }
func (m *RatingMatrix) MinRating() float64  { return m.minRating }
func (m *RatingMatrix) MaxRating() float64  { return m.maxRating }

// UserIdx returns the dense row index for an external user id.
func (m *RatingMatrix) UserIdx(userID int64) (int, bool) {
	idx, ok := m.userIndex[userID]
	return idx, ok
}

// MovieIdx returns the dense column index for an external movie id.
func (m *RatingMatrix) MovieIdx(movieID int64) (int, bool) {
	idx, ok := m.movieIndex[movieID]
	return idx, ok
}

func (m *RatingMatrix) UserID(idx int) int64   { return m.userIDs[idx] }
func (m *RatingMatrix) MovieIDFor(idx int) int64 { return m.movieIDs[idx] }

// Row returns the sparse rating row for a user index. Callers must treat
// the returned map as read-only.
func (m *RatingMatrix) Row(userIdx int) map[int]float64 {
	return m.rows[userIdx]
}

// Rating looks up a single cell by dense indices.
func (m *RatingMatrix) Rating(userIdx, movieIdx int) (float64, bool) {
	v, ok := m.rows[userIdx][movieIdx]
	return v, ok
}

func (m *RatingMatrix) UserMean(userIdx int) float64 {
	return m.userMeans[userIdx]
}

// RatedMovies returns the external ids of every movie the user rated,
// in ascending id order. Unknown users get an empty slice.
func (m *RatingMatrix) RatedMovies(userID int64) []int64 {
	uIdx, ok := m.userIndex[userID]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(m.rows[uIdx]))
	for mIdx := range m.rows[uIdx] {
		ids = append(ids, m.movieIDs[mIdx])
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// entries returns every observed rating sorted by (user index, movie
// index). The deterministic order matters to seeded SGD training.
func (m *RatingMatrix) entries() []ratingEntry {
	entries := make([]ratingEntry, 0, m.ratingCount)
	for u, row := range m.rows {
		cols := make([]int, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		for _, c := range cols {
			entries = append(entries, ratingEntry{userIdx: u, movieIdx: c, rating: row[c]})
		}
	}
	return entries
}
