package guiderepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/domain/guide"
)

func TestMemoryRepositoryRanksByCosine(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, guide.Snippet{ID: "1", City: "Jaipur", Text: "fort", Embedding: []float32{1, 0}}))
	require.NoError(t, repo.Insert(ctx, guide.Snippet{ID: "2", City: "Jaipur", Text: "market", Embedding: []float32{0.6, 0.8}}))
	require.NoError(t, repo.Insert(ctx, guide.Snippet{ID: "3", City: "Delhi", Text: "gate", Embedding: []float32{1, 0}}))
	require.NoError(t, repo.Insert(ctx, guide.Snippet{ID: "4", Text: "general", Embedding: []float32{0, 1}}))

	hits, err := repo.Search(ctx, "jaipur", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "1", hits[0].Snippet.ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
	require.Equal(t, "2", hits[1].Snippet.ID)
	require.InDelta(t, 0.6, hits[1].Score, 1e-6)

	limited, err := repo.Search(ctx, "Jaipur", []float32{0.6, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "2", limited[0].Snippet.ID)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
documents:
  - city: Jaipur
    source: jaipur-guide
    section: Hawa Mahal
    text: The Palace of Winds.
`), 0o600))

	docs, err := LoadSeed(path)
	require.NoError(t, err)
	require.Equal(t, []guide.Document{{City: "Jaipur", Source: "jaipur-guide", Section: "Hawa Mahal", Text: "The Palace of Winds."}}, docs)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
