package recommender

import (
	"math"
	"sort"
)

const defaultKNeighbors = 30

// CollaborativeScorer implements user-based collaborative filtering:
// cosine similarity between sparse rating vectors, top-K neighbor lists
// retained per user at fit time, similarity-weighted rating averages at
// prediction time. Fit cost is O(U^2 * overlap), accepted because fit is
// an offline pass.
type CollaborativeScorer struct {
	k      int
	matrix *RatingMatrix

	// neighbors[u] is sorted by descending similarity, ties broken by
	// ascending neighbor index so equal-similarity users rank
	// deterministically.
	neighbors [][]neighbor
}

type neighbor struct {
	Index      int     `json:"index"`
	Similarity float64 `json:"similarity"`
}

func NewCollaborativeScorer(kNeighbors int) *CollaborativeScorer {
	if kNeighbors <= 0 {
		kNeighbors = defaultKNeighbors
	}
	return &CollaborativeScorer{k: kNeighbors}
}

func (s *CollaborativeScorer) Name() string { return "collaborative_filtering" }

func (s *CollaborativeScorer) Fit(data *TrainingData) error {
	if data == nil || data.Matrix == nil {
		return fitDataErrorf("collaborative fit requires a rating matrix")
	}
	m := data.Matrix
	userCount := m.UserCount()

	norms := make([]float64, userCount)
	for u := 0; u < userCount; u++ {
		row := m.Row(u)
		cols := make([]int, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		sum := 0.0
		for _, c := range cols {
			sum += row[c] * row[c]
		}
		norms[u] = math.Sqrt(sum)
	}

	sims := make([][]neighbor, userCount)
	for a := 0; a < userCount; a++ {
		for b := a + 1; b < userCount; b++ {
			sim := sparseCosine(m.Row(a), m.Row(b), norms[a], norms[b])
			if sim <= 0 {
				continue
			}
			sims[a] = append(sims[a], neighbor{Index: b, Similarity: sim})
			sims[b] = append(sims[b], neighbor{Index: a, Similarity: sim})
		}
	}

	s.neighbors = make([][]neighbor, userCount)
	for u := range sims {
		list := sims[u]
		sort.Slice(list, func(i, j int) bool {
			if list[i].Similarity != list[j].Similarity {
				return list[i].Similarity > list[j].Similarity
			}
			return list[i].Index < list[j].Index
		})
		if len(list) > s.k {
			list = list[:s.k]
		}
		s.neighbors[u] = list
	}

	s.matrix = m
	return nil
}

// sparseCosine computes cosine similarity over the overlap of two sparse
// rows using precomputed full-vector norms. The overlap is accumulated
// in sorted index order so a refit over identical data reproduces the
// exact same similarities. All-zero rows are a degenerate case and map
// to similarity 0 instead of NaN.
func sparseCosine(a, b map[int]float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	overlap := make([]int, 0, len(a))
	for idx := range a {
		if _, ok := b[idx]; ok {
			overlap = append(overlap, idx)
		}
	}
	sort.Ints(overlap)
	dot := 0.0
	for _, idx := range overlap {
		dot += a[idx] * b[idx]
	}
	return dot / (normA * normB)
}

// Predict returns the similarity-weighted average of the movie's rating
// among the user's top-K neighbors who rated it. An unseen user, an
// unseen movie, or an empty neighbor overlap falls back to the global
// mean with ColdStart set; none of these are errors.
func (s *CollaborativeScorer) Predict(userID, movieID int64) Score {
	m := s.matrix
	uIdx, okU := m.UserIdx(userID)
	mIdx, okM := m.MovieIdx(movieID)
	if !okU || !okM {
		return Score{Value: m.GlobalMean(), Confidence: 0.1, ColdStart: true}
	}

	var weightedSum, weightSum float64
	contributors := 0
	for _, nb := range s.neighbors[uIdx] {
		rating, ok := m.Rating(nb.Index, mIdx)
		if !ok {
			continue
		}
		weightedSum += nb.Similarity * rating
		weightSum += nb.Similarity
		contributors++
	}

	if weightSum == 0 {
		return Score{Value: m.GlobalMean(), Confidence: 0.1, ColdStart: true}
	}

	return Score{
		Value:      weightedSum / weightSum,
		Confidence: collaborativeConfidence(contributors, weightSum),
		ColdStart:  false,
	}
}

// More contributing neighbors and more similarity mass both raise
// confidence, saturating at 1.
func collaborativeConfidence(contributors int, weightSum float64) float64 {
	contributorFactor := math.Min(float64(contributors)/10.0, 1.0)
	weightFactor := math.Min(weightSum/5.0, 1.0)
	return (contributorFactor + weightFactor) / 2.0
}

// similarity exposes the fitted user-user cosine for a pair of external
// ids, searching the retained neighbor lists. Used by tests and
// explanations; 0 when the pair is outside each other's top-K.
func (s *CollaborativeScorer) similarity(userA, userB int64) float64 {
	aIdx, okA := s.matrix.UserIdx(userA)
	bIdx, okB := s.matrix.UserIdx(userB)
	if !okA || !okB {
		return 0
	}
	if aIdx == bIdx {
		return 1
	}
	for _, nb := range s.neighbors[aIdx] {
		if nb.Index == bIdx {
			return nb.Similarity
		}
	}
	return 0
}
