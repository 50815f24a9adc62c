package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

// Store is a process-local vector index using brute-force cosine similarity.
// Contents are lost on restart.
type Store struct {
	mu        sync.RWMutex
	dimension int
	ids       map[string]struct{}
	chunks    []domain.Chunk
	vectors   [][]float32
	norms     []float64
}

func NewStore() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Add appends chunks atomically: either every chunk is stored or none is.
func (s *Store) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	batch := make(map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dim || dim == 0 {
			return fmt.Errorf("vector for %s has dimension %d, want %d", chunk.ID, len(vectors[i]), dim)
		}
		if _, dup := s.ids[chunk.ID]; dup {
			return fmt.Errorf("chunk id %s already stored", chunk.ID)
		}
		if _, dup := batch[chunk.ID]; dup {
			return fmt.Errorf("chunk id %s repeated in batch", chunk.ID)
		}
		batch[chunk.ID] = struct{}{}
	}

	s.dimension = dim
	for i, chunk := range chunks {
		s.ids[chunk.ID] = struct{}{}
		s.chunks = append(s.chunks, chunk)
		s.vectors = append(s.vectors, vectors[i])
		s.norms = append(s.norms, norm(vectors[i]))
	}
	return nil
}

// Query ranks every stored chunk by cosine similarity; equal scores keep
// insertion order.
func (s *Store) Query(_ context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || len(s.chunks) == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vector), s.dimension)
	}

	qNorm := norm(vector)
	out := make([]domain.RetrievedChunk, len(s.chunks))
	for i, chunk := range s.chunks {
		out[i] = domain.RetrievedChunk{
			ID:       chunk.ID,
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
			Score:    cosine(s.vectors[i], s.norms[i], vector, qNorm),
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum / (aNorm * bNorm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
