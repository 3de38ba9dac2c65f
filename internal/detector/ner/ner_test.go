package ner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/testutil"
)

func TestClient_Ready(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy sidecar", func(t *testing.T) {
		srv := testutil.NewNERServer(true, nil, nil)
		t.Cleanup(srv.Close)
		assert.NoError(t, New(srv.URL).Ready(ctx))
	})

	t.Run("model missing", func(t *testing.T) {
		srv := testutil.NewNERServer(false, nil, nil)
		t.Cleanup(srv.Close)
		err := New(srv.URL).Ready(ctx)
		assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
		assert.Contains(t, err.Error(), "model_missing")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := testutil.NewNERServer(true, nil, nil)
		url := srv.URL
		srv.Close()
		err := New(url, WithTimeout(time.Second)).Ready(ctx)
		assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
	})

	t.Run("no url", func(t *testing.T) {
		assert.ErrorIs(t, New("").Ready(ctx), detector.ErrDetectorUnavailable)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)
		assert.ErrorIs(t, New(srv.URL).Ready(ctx), detector.ErrDetectorUnavailable)
	})
}

func TestClient_DetectPersons(t *testing.T) {
	srv := testutil.NewNERServer(true, []string{"José Conceição", "Ana"}, []string{"Petrobras"})
	t.Cleanup(srv.Close)

	text := "Ação movida por José Conceição contra Petrobras; testemunha Ana."
	spans, err := New(srv.URL + "/").DetectPersons(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, spans, 2, "ORG spans are filtered out")

	for _, s := range spans {
		assert.Equal(t, s.Text, text[s.Start:s.End], "rune offsets must be converted to byte offsets")
	}
	assert.Equal(t, "José Conceição", spans[0].Text)
	assert.Equal(t, "Ana", spans[1].Text)
}

func TestClient_DetectPersons_FillsTextFromOffsets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spans":[{"start":5,"end":10,"label":"PERSON"},{"start":90,"end":95,"label":"PER"}]}`))
	}))
	t.Cleanup(srv.Close)

	spans, err := New(srv.URL).DetectPersons(context.Background(), "Sra. Célia chegou")
	require.NoError(t, err)
	require.Len(t, spans, 1, "out of range spans are skipped")
	assert.Equal(t, "Célia", spans[0].Text)
}

func TestClient_DetectPersons_Non200IsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).DetectPersons(context.Background(), "x")
	assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClient_WithLabels(t *testing.T) {
	srv := testutil.NewNERServer(true, []string{"Ana"}, []string{"Petrobras"})
	t.Cleanup(srv.Close)

	spans, err := New(srv.URL, WithLabels("org")).DetectPersons(context.Background(), "Ana na Petrobras")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Petrobras", spans[0].Text)
}

func TestRuneToByteOffsets(t *testing.T) {
	assert.Equal(t, []int{0, 1, 3, 4}, runeToByteOffsets("aéb"))
	assert.Equal(t, []int{0}, runeToByteOffsets(""))
}
