package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsense/engine/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "ratings.csv",
		"userId,movieId,rating,timestamp\n"+
			"1,10,4.5,964982703\n"+
			"2,10,3.0,964981247\n")
	writeFile(t, dir, "movies.csv",
		"movieId,title,genres\n"+
			"10,Star Voyage,Action|Sci-Fi\n"+
			"20,Quiet Garden,\n")
	writeFile(t, dir, "tags.csv",
		"userId,movieId,tag,timestamp\n"+
			"1,10,space opera,964982703\n")
	return dir
}

func testDataConfig(dir string) config.DataConfig {
	return config.DataConfig{
		Dir:         dir,
		RatingsFile: "ratings.csv",
		MoviesFile:  "movies.csv",
		TagsFile:    "tags.csv",
	}
}

func TestLoadAll(t *testing.T) {
	dir := testDataDir(t)
	loader := NewLoader(testDataConfig(dir), testLogger())

	ratings, movies, tags, err := loader.LoadAll()
	require.NoError(t, err)

	require.Len(t, ratings, 2)
	assert.Equal(t, int64(1), ratings[0].UserID)
	assert.Equal(t, int64(10), ratings[0].MovieID)
	assert.Equal(t, 4.5, ratings[0].Rating)
	assert.Equal(t, int64(964982703), ratings[0].Timestamp.Unix())

	require.Len(t, movies, 2)
	assert.Equal(t, "Star Voyage", movies[0].Title)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, movies[0].Genres)
	assert.Empty(t, movies[1].Genres)

	require.Len(t, tags, 1)
	assert.Equal(t, "space opera", tags[0].Tag)
}

func TestLoadTagsMissingFile(t *testing.T) {
	dir := testDataDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "tags.csv")))
	loader := NewLoader(testDataConfig(dir), testLogger())

	_, _, tags, err := loader.LoadAll()
	require.NoError(t, err)
	assert.Nil(t, tags)
}

func TestLoadRatingsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad header",
			content: "user,movie,rating,timestamp\n1,10,4.5,964982703\n",
		},
		{
			name:    "non-numeric rating",
			content: "userId,movieId,rating,timestamp\n1,10,great,964982703\n",
		},
		{
			name:    "non-positive id",
			content: "userId,movieId,rating,timestamp\n0,10,4.5,964982703\n",
		},
		{
			name:    "wrong column count",
			content: "userId,movieId,rating,timestamp\n1,10,4.5\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "ratings.csv", tt.content)
			loader := NewLoader(testDataConfig(dir), testLogger())

			_, err := loader.LoadRatings(filepath.Join(dir, "ratings.csv"))
			assert.Error(t, err)
		})
	}
}

func TestLoadRatingsMissingFile(t *testing.T) {
	loader := NewLoader(testDataConfig(t.TempDir()), testLogger())
	_, err := loader.LoadRatings(filepath.Join(t.TempDir(), "ratings.csv"))
	assert.Error(t, err)
}
