package recommender

import (
	"github.com/reelsense/engine/pkg/models"
)

const defaultDiversityLambda = 0.3

// ScoredMovie pairs a candidate with its composite relevance score.
type ScoredMovie struct {
	MovieID int64
	Score   float64
}

// DiversitySelector reranks a score-ordered candidate pool so the final
// list covers more of the genre space. Selection greedily maximizes
//
//	relevance + lambda * marginal diversity contribution
//
// which is a greedy approximation to a submodular maximization problem:
// it is deliberately not globally optimal.
type DiversitySelector struct {
	lambda float64
	genres map[int64]map[string]struct{}
}

func NewDiversitySelector(lambda float64, movies []models.Movie) *DiversitySelector {
	if lambda <= 0 {
		lambda = defaultDiversityLambda
	}
	genres := make(map[int64]map[string]struct{}, len(movies))
	for _, mv := range movies {
		set := make(map[string]struct{}, len(mv.Genres))
		for _, g := range mv.Genres {
			set[g] = struct{}{}
		}
		genres[mv.MovieID] = set
	}
	return &DiversitySelector{lambda: lambda, genres: genres}
}

// Diversity is the mean pairwise Jaccard distance between the genre sets
// of the listed movies, in [0, 1]. Lists shorter than two have no pairs
// and score 0.
func (d *DiversitySelector) Diversity(movieIDs []int64) float64 {
	if len(movieIDs) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(movieIDs); i++ {
		for j := i + 1; j < len(movieIDs); j++ {
			total += 1.0 - d.genreJaccard(movieIDs[i], movieIDs[j])
			pairs++
		}
	}
	return total / float64(pairs)
}

// Two empty genre sets count as identical, matching set semantics.
func (d *DiversitySelector) genreJaccard(a, b int64) float64 {
	setA, setB := d.genres[a], d.genres[b]
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	intersection := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Rerank selects n movies from a relevance-sorted pool. The first pick
// is the most relevant candidate; each following pick maximizes
// relevance + lambda * (diversity gained by adding it). Score ties break
// on ascending movie id for determinism.
func (d *DiversitySelector) Rerank(pool []ScoredMovie, n int) []ScoredMovie {
	if n <= 0 {
		return nil
	}
	if len(pool) <= n {
		out := make([]ScoredMovie, len(pool))
		copy(out, pool)
		return out
	}

	selected := []ScoredMovie{pool[0]}
	selectedIDs := []int64{pool[0].MovieID}
	remaining := make([]ScoredMovie, len(pool)-1)
	copy(remaining, pool[1:])

	baseDiversity := 0.0
	for len(selected) < n && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		bestMarginal := 0.0
		for i, candidate := range remaining {
			withCandidate := d.Diversity(append(selectedIDs, candidate.MovieID))
			marginal := withCandidate - baseDiversity
			combined := candidate.Score + d.lambda*marginal
			if bestIdx == -1 || combined > bestScore ||
				(combined == bestScore && candidate.MovieID < remaining[bestIdx].MovieID) {
				bestIdx = i
				bestScore = combined
				bestMarginal = marginal
			}
		}

		picked := remaining[bestIdx]
		selected = append(selected, picked)
		selectedIDs = append(selectedIDs, picked.MovieID)
		baseDiversity += bestMarginal
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
