package recommender

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/floats"

	"github.com/reelsense/engine/pkg/models"
)

const defaultMaxFeatures = 500

// ContentScorer scores a movie by its metadata similarity to the movies
// a user has already rated. Genre and free-text tag tokens become TF-IDF
// vectors over the corpus vocabulary; item-item similarity is cosine
// between those vectors, computed once at fit time.
type ContentScorer struct {
	maxFeatures int

	terms []string
	idf   []float64

	movieIDs   []int64
	movieIndex map[int64]int

	// vectors are L2-normalized, so cosine reduces to a dot product.
	vectors [][]float64
	sim     [][]float64

	matrix *RatingMatrix
}

func NewContentScorer(maxFeatures int) *ContentScorer {
	if maxFeatures <= 0 {
		maxFeatures = defaultMaxFeatures
	}
	return &ContentScorer{maxFeatures: maxFeatures}
}

func (s *ContentScorer) Name() string { return "content_similarity" }

func (s *ContentScorer) Fit(data *TrainingData) error {
	if data == nil || data.Matrix == nil {
		return fitDataErrorf("content fit requires a rating matrix")
	}
	if len(data.Movies) == 0 {
		return fitDataErrorf("no movies")
	}

	tagText := make(map[int64][]string)
	for _, t := range data.Tags {
		tagText[t.MovieID] = append(tagText[t.MovieID], t.Tag)
	}

	movies := make([]models.Movie, len(data.Movies))
	copy(movies, data.Movies)
	sort.Slice(movies, func(i, j int) bool { return movies[i].MovieID < movies[j].MovieID })

	s.movieIDs = make([]int64, len(movies))
	s.movieIndex = make(map[int64]int, len(movies))
	docs := make([][]string, len(movies))
	for i, mv := range movies {
		if mv.MovieID <= 0 {
			return fitDataErrorf("non-positive movie id %d", mv.MovieID)
		}
		s.movieIDs[i] = mv.MovieID
		s.movieIndex[mv.MovieID] = i

		parts := append([]string{}, mv.Genres...)
		parts = append(parts, tagText[mv.MovieID]...)
		docs[i] = tokenize(strings.Join(parts, " "))
	}

	s.buildVocabulary(docs)
	s.buildVectors(docs)
	s.buildSimilarity()
	s.matrix = data.Matrix
	return nil
}

// tokenize lowercases, folds diacritics, and splits on anything that is
// not a letter or digit. Pipe-separated genre strings fall out of the
// same split.
func tokenize(text string) []string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		text,
	)
	if err != nil {
		folded = text
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildVocabulary keeps the maxFeatures terms with the highest document
// frequency, ties broken lexicographically for a reproducible vocabulary.
func (s *ContentScorer) buildVocabulary(docs [][]string) {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, term := range doc {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > s.maxFeatures {
		terms = terms[:s.maxFeatures]
	}
	sort.Strings(terms)

	s.terms = terms
	s.idf = make([]float64, len(terms))
	n := float64(len(docs))
	for i, term := range terms {
		s.idf[i] = math.Log(n/(1.0+float64(df[term]))) + 1.0
	}
}

func (s *ContentScorer) buildVectors(docs [][]string) {
	col := make(map[string]int, len(s.terms))
	for i, term := range s.terms {
		col[term] = i
	}

	s.vectors = make([][]float64, len(docs))
	for i, doc := range docs {
		vec := make([]float64, len(s.terms))
		if len(doc) > 0 {
			for _, term := range doc {
				if c, ok := col[term]; ok {
					vec[c]++
				}
			}
			invLen := 1.0 / float64(len(doc))
			for c := range vec {
				vec[c] *= invLen * s.idf[c]
			}
		}
		if n := floats.Norm(vec, 2); n > 0 {
			floats.Scale(1.0/n, vec)
		}
		s.vectors[i] = vec
	}
}

func (s *ContentScorer) buildSimilarity() {
	n := len(s.vectors)
	s.sim = make([][]float64, n)
	for i := range s.sim {
		s.sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		s.sim[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			v := floats.Dot(s.vectors[i], s.vectors[j])
			s.sim[i][j] = v
			s.sim[j][i] = v
		}
	}
}

// Predict returns the rating-weighted average similarity between the
// target movie and the user's rated movies, with ratings scaled into
// [0, 1]. A user without history scores 0 with ColdStart set -- the
// documented content default, deliberately different from the
// collaborative scorer's global-mean fallback.
func (s *ContentScorer) Predict(userID, movieID int64) Score {
	targetIdx, ok := s.movieIndex[movieID]
	if !ok {
		return Score{Value: 0, Confidence: 0, ColdStart: true}
	}
	uIdx, ok := s.matrix.UserIdx(userID)
	if !ok {
		return Score{Value: 0, Confidence: 0, ColdStart: true}
	}

	// Accumulate in sorted column order; float summation order must not
	// depend on map iteration for predictions to be reproducible.
	row := s.matrix.Row(uIdx)
	ratedCols := make([]int, 0, len(row))
	for c := range row {
		ratedCols = append(ratedCols, c)
	}
	sort.Ints(ratedCols)

	maxRating := s.matrix.MaxRating()
	var weightedSum, simSum float64
	for _, ratedIdx := range ratedCols {
		rating := row[ratedIdx]
		ratedID := s.matrix.MovieIDFor(ratedIdx)
		contentIdx, ok := s.movieIndex[ratedID]
		if !ok || contentIdx == targetIdx {
			continue
		}
		sim := s.sim[targetIdx][contentIdx]
		if sim <= 0 {
			continue
		}
		weightedSum += sim * (rating / maxRating)
		simSum += sim
	}

	// Zero similarity mass is the degenerate denominator case; the
	// neutral fallback is 0, same as an empty history.
	if simSum == 0 {
		return Score{Value: 0, Confidence: 0, ColdStart: true}
	}

	return Score{
		Value:      weightedSum / simSum,
		Confidence: math.Min(simSum, 1.0),
		ColdStart:  false,
	}
}

// Similarity returns the fitted item-item cosine for two external movie
// ids, or 0 when either movie is outside the catalog.
func (s *ContentScorer) Similarity(movieA, movieB int64) float64 {
	a, okA := s.movieIndex[movieA]
	b, okB := s.movieIndex[movieB]
	if !okA || !okB {
		return 0
	}
	return s.sim[a][b]
}
