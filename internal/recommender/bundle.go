package recommender

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelsense/engine/pkg/models"
)

// Bundle container format: a JSON envelope whose header is validated in
// full -- schema version, component inventory, component versions --
// before any component payload is decoded. Loading is all-or-nothing; a
// mismatch is a SerializationError, never a silent downgrade.
const bundleSchemaVersion = 1

const (
	componentMatrix        = "rating_matrix"
	componentCollaborative = "collaborative"
	componentContent       = "content"
	componentFactorization = "factorization"
	componentNovelty       = "novelty"
	componentCatalog       = "catalog"
)

var componentVersions = map[string]int{
	componentMatrix:        1,
	componentCollaborative: 1,
	componentContent:       1,
	componentFactorization: 1,
	componentNovelty:       1,
	componentCatalog:       1,
}

type bundleHeader struct {
	SchemaVersion int            `json:"schema_version"`
	FitID         uuid.UUID      `json:"fit_id"`
	FittedAt      time.Time      `json:"fitted_at"`
	Components    map[string]int `json:"components"`
	Params        HybridParams   `json:"params"`
}

type bundleEnvelope struct {
	Header     bundleHeader               `json:"header"`
	Components map[string]json.RawMessage `json:"payloads"`
}

type matrixState struct {
	Users  []int64   `json:"users"`
	Movies []int64   `json:"movies"`
	Values []float64 `json:"values"`
}

type collaborativeState struct {
	K         int          `json:"k"`
	Neighbors [][]neighbor `json:"neighbors"`
}

type contentState struct {
	MaxFeatures int         `json:"max_features"`
	Terms       []string    `json:"terms"`
	IDF         []float64   `json:"idf"`
	MovieIDs    []int64     `json:"movie_ids"`
	Vectors     [][]float64 `json:"vectors"`
	Sim         [][]float64 `json:"sim"`
}

type factorizationState struct {
	Params      FactorizationParams `json:"params"`
	GlobalBias  float64             `json:"global_bias"`
	UserBias    []float64           `json:"user_bias"`
	ItemBias    []float64           `json:"item_bias"`
	UserFactors [][]float64         `json:"user_factors"`
	ItemFactors [][]float64         `json:"item_factors"`
}

type noveltyState struct {
	Dampening float64           `json:"dampening"`
	Scores    map[int64]float64 `json:"scores"`
}

type catalogState struct {
	Movies []models.Movie `json:"movies"`
}

// Save writes the entire fitted bundle -- all four scorers, the rating
// matrix, the catalog, the id maps and the weight tuple -- as one unit.
func (h *HybridRecommender) Save(w io.Writer) error {
	if !h.fitted {
		return ErrNotFitted
	}

	payloads := make(map[string]json.RawMessage, len(componentVersions))
	encode := func(name string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return serializationErrorf(err, "encoding component %q", name)
		}
		payloads[name] = raw
		return nil
	}

	components := []struct {
		name  string
		state interface{}
	}{
		{componentMatrix, h.matrix.state()},
		{componentCollaborative, collaborativeState{K: h.cf.k, Neighbors: h.cf.neighbors}},
		{componentContent, h.content.state()},
		{componentFactorization, h.mf.state()},
		{componentNovelty, noveltyState{Dampening: h.novelty.dampening, Scores: h.novelty.scores}},
		{componentCatalog, catalogState{Movies: h.catalogMovies()}},
	}
	for _, c := range components {
		if err := encode(c.name, c.state); err != nil {
			return err
		}
	}

	envelope := bundleEnvelope{
		Header: bundleHeader{
			SchemaVersion: bundleSchemaVersion,
			FitID:         h.fitID,
			FittedAt:      h.fittedAt,
			Components:    componentVersions,
			Params:        h.params,
		},
		Components: payloads,
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(&envelope); err != nil {
		return serializationErrorf(err, "writing bundle")
	}
	return nil
}

// SaveFile writes the bundle to a temporary file in the target directory
// and renames it into place, so a reader never observes a partial bundle.
func (h *HybridRecommender) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating bundle temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := h.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing bundle temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publishing bundle: %w", err)
	}
	return nil
}

// LoadBundle reconstructs a complete, immediately usable recommender
// from a saved bundle. The header is validated before any component is
// decoded; every failure surfaces as a SerializationError with nothing
// partially loaded.
func LoadBundle(r io.Reader, logger *logrus.Logger) (*HybridRecommender, error) {
	var envelope bundleEnvelope
	dec := json.NewDecoder(r)
	if err := dec.Decode(&envelope); err != nil {
		return nil, serializationErrorf(err, "decoding bundle envelope")
	}

	header := envelope.Header
	if header.SchemaVersion != bundleSchemaVersion {
		return nil, serializationErrorf(nil, "schema version %d, expected %d", header.SchemaVersion, bundleSchemaVersion)
	}
	for name, version := range componentVersions {
		got, ok := header.Components[name]
		if !ok {
			return nil, serializationErrorf(nil, "header missing component %q", name)
		}
		if got != version {
			return nil, serializationErrorf(nil, "component %q version %d, expected %d", name, got, version)
		}
		if _, ok := envelope.Components[name]; !ok {
			return nil, serializationErrorf(nil, "payload missing component %q", name)
		}
	}

	decode := func(name string, v interface{}) error {
		if err := json.Unmarshal(envelope.Components[name], v); err != nil {
			return serializationErrorf(err, "decoding component %q", name)
		}
		return nil
	}

	var (
		mState  matrixState
		cfState collaborativeState
		ctState contentState
		mfState factorizationState
		nvState noveltyState
		catalog catalogState
	)
	if err := decode(componentMatrix, &mState); err != nil {
		return nil, err
	}
	if err := decode(componentCollaborative, &cfState); err != nil {
		return nil, err
	}
	if err := decode(componentContent, &ctState); err != nil {
		return nil, err
	}
	if err := decode(componentFactorization, &mfState); err != nil {
		return nil, err
	}
	if err := decode(componentNovelty, &nvState); err != nil {
		return nil, err
	}
	if err := decode(componentCatalog, &catalog); err != nil {
		return nil, err
	}

	matrix, err := restoreMatrix(mState, header.Params.MinRating, header.Params.MaxRating)
	if err != nil {
		return nil, serializationErrorf(err, "restoring rating matrix")
	}

	h := NewHybridRecommender(header.Params, logger)
	h.matrix = matrix

	h.cf.k = cfState.K
	h.cf.neighbors = cfState.Neighbors
	h.cf.matrix = matrix
	if len(h.cf.neighbors) != matrix.UserCount() {
		return nil, serializationErrorf(nil, "collaborative neighbor lists cover %d users, matrix has %d", len(h.cf.neighbors), matrix.UserCount())
	}

	if err := h.content.restore(ctState, matrix); err != nil {
		return nil, err
	}
	if err := h.mf.restore(mfState, matrix); err != nil {
		return nil, err
	}

	h.novelty.dampening = nvState.Dampening
	h.novelty.scores = nvState.Scores

	h.movies = make(map[int64]models.Movie, len(catalog.Movies))
	h.movieIDs = make([]int64, 0, len(catalog.Movies))
	for _, mv := range catalog.Movies {
		h.movies[mv.MovieID] = mv
		h.movieIDs = append(h.movieIDs, mv.MovieID)
	}
	h.diversity = NewDiversitySelector(header.Params.DiversityLambda, catalog.Movies)

	h.fitID = header.FitID
	h.fittedAt = header.FittedAt
	h.fitted = true
	return h, nil
}

// LoadBundleFile opens and loads a bundle from disk.
func LoadBundleFile(path string, logger *logrus.Logger) (*HybridRecommender, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()
	return LoadBundle(f, logger)
}

func (m *RatingMatrix) state() matrixState {
	st := matrixState{
		Users:  make([]int64, 0, m.ratingCount),
		Movies: make([]int64, 0, m.ratingCount),
		Values: make([]float64, 0, m.ratingCount),
	}
	for _, e := range m.entries() {
		st.Users = append(st.Users, m.userIDs[e.userIdx])
		st.Movies = append(st.Movies, m.movieIDs[e.movieIdx])
		st.Values = append(st.Values, e.rating)
	}
	return st
}

func restoreMatrix(st matrixState, minRating, maxRating float64) (*RatingMatrix, error) {
	if len(st.Users) != len(st.Movies) || len(st.Users) != len(st.Values) {
		return nil, fmt.Errorf("entry arrays disagree on length")
	}
	ratings := make([]models.Rating, len(st.Users))
	for i := range st.Users {
		ratings[i] = models.Rating{UserID: st.Users[i], MovieID: st.Movies[i], Rating: st.Values[i]}
	}
	return NewRatingMatrix(ratings, minRating, maxRating)
}

func (s *ContentScorer) state() contentState {
	return contentState{
		MaxFeatures: s.maxFeatures,
		Terms:       s.terms,
		IDF:         s.idf,
		MovieIDs:    s.movieIDs,
		Vectors:     s.vectors,
		Sim:         s.sim,
	}
}

func (s *ContentScorer) restore(st contentState, matrix *RatingMatrix) error {
	if len(st.Terms) != len(st.IDF) {
		return serializationErrorf(nil, "content vocabulary and idf lengths disagree")
	}
	if len(st.MovieIDs) != len(st.Vectors) || len(st.MovieIDs) != len(st.Sim) {
		return serializationErrorf(nil, "content movie arrays disagree on length")
	}
	s.maxFeatures = st.MaxFeatures
	s.terms = st.Terms
	s.idf = st.IDF
	s.movieIDs = st.MovieIDs
	s.vectors = st.Vectors
	s.sim = st.Sim
	s.movieIndex = make(map[int64]int, len(st.MovieIDs))
	for i, id := range st.MovieIDs {
		s.movieIndex[id] = i
	}
	s.matrix = matrix
	return nil
}

func (s *FactorizationScorer) state() factorizationState {
	return factorizationState{
		Params:      s.params,
		GlobalBias:  s.globalBias,
		UserBias:    s.userBias,
		ItemBias:    s.itemBias,
		UserFactors: s.userFactors,
		ItemFactors: s.itemFactors,
	}
}

func (s *FactorizationScorer) restore(st factorizationState, matrix *RatingMatrix) error {
	if len(st.UserBias) != matrix.UserCount() || len(st.UserFactors) != matrix.UserCount() {
		return serializationErrorf(nil, "factorization user state does not match matrix")
	}
	if len(st.ItemBias) != matrix.MovieCount() || len(st.ItemFactors) != matrix.MovieCount() {
		return serializationErrorf(nil, "factorization item state does not match matrix")
	}
	s.params = st.Params
	s.globalBias = st.GlobalBias
	s.userBias = st.UserBias
	s.itemBias = st.ItemBias
	s.userFactors = st.UserFactors
	s.itemFactors = st.ItemFactors
	s.matrix = matrix
	return nil
}

func (h *HybridRecommender) catalogMovies() []models.Movie {
	movies := make([]models.Movie, 0, len(h.movieIDs))
	for _, id := range h.movieIDs {
		movies = append(movies, h.movies[id])
	}
	return movies
}
