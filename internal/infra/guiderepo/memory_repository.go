package guiderepo

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/yanqian/trip-planner/internal/domain/guide"
)

// MemoryRepository keeps guide snippets in process memory and ranks them by cosine similarity.
type MemoryRepository struct {
	mu       sync.RWMutex
	snippets []guide.Snippet
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Insert implements guide.SnippetRepository.
func (r *MemoryRepository) Insert(_ context.Context, s guide.Snippet) error {
	emb := make([]float32, len(s.Embedding))
	copy(emb, s.Embedding)
	s.Embedding = emb
	r.mu.Lock()
	r.snippets = append(r.snippets, s)
	r.mu.Unlock()
	return nil
}

// Search returns the closest snippets for the city. Snippets without a city apply everywhere.
func (r *MemoryRepository) Search(_ context.Context, city string, embedding []float32, limit int) ([]guide.Match, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]guide.Match, 0)
	for _, s := range r.snippets {
		if s.City != "" && city != "" && !strings.EqualFold(s.City, city) {
			continue
		}
		score := cosineSimilarity(embedding, s.Embedding)
		if score <= 0 {
			continue
		}
		results = append(results, guide.Match{Snippet: s, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ guide.SnippetRepository = (*MemoryRepository)(nil)
