// Package hashing provides a deterministic, dependency-free embedder based on
// feature hashing of word tokens. It needs no model server, which makes it
// the default for tests, the CLI and offline deployments.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultDimension = 384
	tfSaturation     = 1.2
	minTokenLength   = 2
)

type Embedder struct {
	dimension int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	termFreq := make(map[string]float64, 64)
	for _, token := range tokenize(text) {
		termFreq[token]++
	}

	acc := make([]float64, e.dimension)
	for token, tf := range termFreq {
		bucket, sign := e.slot(token)
		weight := (tf * (tfSaturation + 1)) / (tf + tfSaturation)
		acc[bucket] += sign * weight
	}

	var sumSquares float64
	for _, v := range acc {
		sumSquares += v * v
	}
	out := make([]float32, e.dimension)
	if sumSquares == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i, v := range acc {
		out[i] = float32(v * inv)
	}
	return out
}

// slot maps a token to a bucket and a sign so that collisions cancel out on
// average instead of accumulating.
func (e *Embedder) slot(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

// newAccentFolder returns a fresh chain on every call: a transform.Chain keeps
// internal buffers and must not be shared between goroutines.
func newAccentFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func tokenize(s string) []string {
	folded, _, err := transform.String(newAccentFolder(), s)
	if err != nil {
		folded = s
	}

	out := make([]string, 0, 32)
	var b strings.Builder
	flush := func() {
		if b.Len() >= minTokenLength {
			out = append(out, b.String())
		}
		b.Reset()
	}
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return out
}
