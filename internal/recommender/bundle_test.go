package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleRoundTrip(t *testing.T) {
	h := fittedHybrid(t)

	var buf bytes.Buffer
	require.NoError(t, h.Save(&buf))

	loaded, err := LoadBundle(&buf, testLogger())
	require.NoError(t, err)

	assert.Equal(t, h.FitID(), loaded.FitID())
	assert.Equal(t, h.Weights(), loaded.Weights())

	// A reloaded bundle must reproduce the exact same predictions,
	// bit for bit, for every pair including cold-start fallbacks.
	for _, userID := range []int64{1, 2, 3, 4, 999} {
		for _, movieID := range []int64{10, 20, 30, 40, 50} {
			want, wantBD, err := h.Predict(userID, movieID, true)
			require.NoError(t, err)
			got, gotBD, err := loaded.Predict(userID, movieID, true)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, wantBD, gotBD)
		}
	}

	ctx := context.Background()
	wantRecs, err := h.Recommend(ctx, 2, 3, DefaultRecommendOptions())
	require.NoError(t, err)
	gotRecs, err := loaded.Recommend(ctx, 2, 3, DefaultRecommendOptions())
	require.NoError(t, err)
	assert.Equal(t, wantRecs, gotRecs)
}

func TestBundleSaveFile(t *testing.T) {
	h := fittedHybrid(t)
	path := filepath.Join(t.TempDir(), "model.bundle.json")

	require.NoError(t, h.SaveFile(path))

	loaded, err := LoadBundleFile(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, h.FitID(), loaded.FitID())

	// No temp file debris left next to the bundle.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBundleSaveUnfitted(t *testing.T) {
	h := NewHybridRecommender(testHybridParams(), testLogger())
	var buf bytes.Buffer
	assert.ErrorIs(t, h.Save(&buf), ErrNotFitted)
}

func TestBundleLoadRejectsCorruptInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "this is not a bundle"},
		{"empty envelope", "{}"},
		{"wrong structure", `{"header": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBundle(strings.NewReader(tt.input), testLogger())
			require.Error(t, err)
			var serErr *SerializationError
			assert.ErrorAs(t, err, &serErr)
		})
	}
}

func TestBundleLoadRejectsVersionMismatch(t *testing.T) {
	h := fittedHybrid(t)
	var buf bytes.Buffer
	require.NoError(t, h.Save(&buf))

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))

	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(envelope["header"], &header))

	mutate := func(t *testing.T, change func()) []byte {
		t.Helper()
		change()
		rawHeader, err := json.Marshal(header)
		require.NoError(t, err)
		envelope["header"] = rawHeader
		raw, err := json.Marshal(envelope)
		require.NoError(t, err)
		return raw
	}

	t.Run("schema version", func(t *testing.T) {
		raw := mutate(t, func() {
			header["schema_version"] = json.RawMessage("99")
		})
		_, err := LoadBundle(bytes.NewReader(raw), testLogger())
		var serErr *SerializationError
		require.ErrorAs(t, err, &serErr)
		assert.Contains(t, serErr.Reason, "schema version")
	})

	t.Run("component version", func(t *testing.T) {
		raw := mutate(t, func() {
			header["schema_version"] = json.RawMessage("1")
			header["components"] = json.RawMessage(`{"rating_matrix": 7}`)
		})
		_, err := LoadBundle(bytes.NewReader(raw), testLogger())
		var serErr *SerializationError
		assert.ErrorAs(t, err, &serErr)
	})
}

func TestBundleLoadRejectsMissingComponent(t *testing.T) {
	h := fittedHybrid(t)
	var buf bytes.Buffer
	require.NoError(t, h.Save(&buf))

	var envelope struct {
		Header   json.RawMessage            `json:"header"`
		Payloads map[string]json.RawMessage `json:"payloads"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
	delete(envelope.Payloads, componentNovelty)
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	_, err = LoadBundle(bytes.NewReader(raw), testLogger())
	var serErr *SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.Contains(t, serErr.Reason, "novelty")
}
