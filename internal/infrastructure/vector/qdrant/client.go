package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/resilience"
)

// Client stores chunks as points of one cosine collection.
type Client struct {
	baseURL    string
	collection string
	apiKey     string
	httpClient *http.Client
	exec       *resilience.Executor

	ensureMu          sync.Mutex
	ensuredVectorSize int
}

func New(baseURL, collection, apiKey string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		exec:       exec,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	if err := c.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		if _, dup := seen[chunk.ID]; dup {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant add", fmt.Errorf("chunk id %s repeated in batch", chunk.ID))
		}
		seen[chunk.ID] = struct{}{}
		points = append(points, point{
			ID:      c.pointID(chunk.ID),
			Vector:  vectors[i],
			Payload: chunkPayload(chunk),
		})
	}

	// PUT points is an upsert; the index is append-only, so existing ids
	// are refused before anything is written.
	if err := c.rejectExisting(ctx, points); err != nil {
		return err
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) rejectExisting(ctx context.Context, points []point) error {
	ids := make([]string, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.ID)
	}
	reqBody := map[string]any{
		"ids":          ids,
		"with_payload": []string{"chunk_id"},
		"with_vector":  false,
	}
	var resp struct {
		Result []struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &resp, "retrieve"); err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if len(resp.Result) == 0 {
		return nil
	}
	existing := make([]string, 0, len(resp.Result))
	for _, r := range resp.Result {
		existing = append(existing, getStringPayload(r.Payload, "chunk_id"))
	}
	return domain.WrapError(domain.ErrInvalidInput, "qdrant add",
		fmt.Errorf("chunk ids already stored: %s", strings.Join(existing, ", ")))
}

func (c *Client) Query(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		return []domain.RetrievedChunk{}, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &resp, "search"); err != nil {
		if isNotFound(err) {
			return []domain.RetrievedChunk{}, nil
		}
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, retrievedFromPayload(r.Payload, r.Score))
	}
	return out, nil
}

// Count reports the exact number of stored points; a missing collection
// counts as empty.
func (c *Client) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp, "count"); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return resp.Result.Count, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredVectorSize == vectorSize {
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	// 409 when the collection already exists.
	if err != nil && !isConflict(err) {
		return err
	}
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.collection+"/"+chunkID)).String()
}

func chunkPayload(chunk domain.Chunk) map[string]any {
	meta := chunk.Metadata
	return map[string]any{
		"chunk_id":      chunk.ID,
		"text":          chunk.Text,
		"filename":      meta.Filename,
		"document_type": string(meta.DocumentType),
		"category":      string(meta.Category),
		"chunk_index":   meta.ChunkIndex,
		"total_chunks":  meta.TotalChunks,
		"fingerprint":   meta.Fingerprint,
		"ingested_at":   meta.IngestedAt.UTC().Format(time.RFC3339Nano),
	}
}

func retrievedFromPayload(payload map[string]any, score float64) domain.RetrievedChunk {
	ingestedAt, _ := time.Parse(time.RFC3339Nano, getStringPayload(payload, "ingested_at"))
	return domain.RetrievedChunk{
		ID:   getStringPayload(payload, "chunk_id"),
		Text: getStringPayload(payload, "text"),
		Metadata: domain.ChunkMetadata{
			Filename:     getStringPayload(payload, "filename"),
			DocumentType: domain.DocumentType(getStringPayload(payload, "document_type")),
			Category:     domain.Category(getStringPayload(payload, "category")),
			ChunkIndex:   getIntPayload(payload, "chunk_index"),
			TotalChunks:  getIntPayload(payload, "total_chunks"),
			Fingerprint:  getStringPayload(payload, "fingerprint"),
			IngestedAt:   ingestedAt,
		},
		Score: score,
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
