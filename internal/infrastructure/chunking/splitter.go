package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

const (
	DefaultChunkSize        = 1500
	DefaultOverlap          = 300
	DefaultMinContentLength = 100
	DefaultBoundaryRatio    = 0.6
)

// boundaryMarkers are tried in priority order when snapping a window end.
var boundaryMarkers = [][]rune{
	[]rune(". "),
	[]rune(".\n"),
	[]rune("; "),
	[]rune(";\n"),
	[]rune("\n\n"),
}

// Config sizes are measured in runes.
type Config struct {
	ChunkSize        int
	Overlap          int
	MinContentLength int
	// BoundaryRatio is the fraction of the window that must precede a
	// boundary marker for the window to be snapped to it.
	BoundaryRatio float64
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:        DefaultChunkSize,
		Overlap:          DefaultOverlap,
		MinContentLength: DefaultMinContentLength,
		BoundaryRatio:    DefaultBoundaryRatio,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return domain.WrapError(domain.ErrConfiguration, "validate chunking", fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	case c.Overlap < 0:
		return domain.WrapError(domain.ErrConfiguration, "validate chunking", fmt.Errorf("overlap must not be negative, got %d", c.Overlap))
	case c.Overlap >= c.ChunkSize:
		return domain.WrapError(domain.ErrConfiguration, "validate chunking", fmt.Errorf("overlap %d must be smaller than chunk size %d", c.Overlap, c.ChunkSize))
	case c.MinContentLength < 0:
		return domain.WrapError(domain.ErrConfiguration, "validate chunking", fmt.Errorf("minimum content length must not be negative, got %d", c.MinContentLength))
	case c.BoundaryRatio <= 0 || c.BoundaryRatio >= 1:
		return domain.WrapError(domain.ErrConfiguration, "validate chunking", fmt.Errorf("boundary ratio must be in (0,1), got %g", c.BoundaryRatio))
	}
	return nil
}

type Splitter struct {
	cfg Config
}

func NewSplitter(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// SplitText splits with default thresholds and the given window geometry.
func SplitText(text string, chunkSize, overlap int) ([]string, error) {
	cfg := DefaultConfig()
	cfg.ChunkSize = chunkSize
	cfg.Overlap = overlap
	s, err := NewSplitter(cfg)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

func (s *Splitter) Config() Config {
	return s.cfg
}

// MinContentLength reports the trimmed rune count below which text is not indexed.
func (s *Splitter) MinContentLength() int {
	return s.cfg.MinContentLength
}

// Split walks text with a ChunkSize window advancing by ChunkSize-Overlap,
// snapping every window that does not reach the end of text to a sentence
// boundary in its trailing region. Output is trimmed, never contains empty
// chunks and is fully determined by the input.
func (s *Splitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) < s.cfg.MinContentLength {
		return nil
	}

	runes := []rune(text)
	step := s.cfg.ChunkSize - s.cfg.Overlap

	out := make([]string, 0, len(runes)/step+1)
	start := 0
	for start < len(runes) {
		end := start + s.cfg.ChunkSize
		if end >= len(runes) {
			out = appendChunk(out, runes[start:])
			break
		}

		end = start + s.snap(runes[start:end])
		out = appendChunk(out, runes[start:end])

		next := end - s.cfg.Overlap
		if next <= start {
			// overlap reaches back past the snapped boundary
			next = start + step
		}
		start = next
	}
	return out
}

// snap returns the window length after cutting at the highest-priority
// boundary marker found past the ratio threshold, or the full window.
func (s *Splitter) snap(window []rune) int {
	threshold := float64(s.cfg.ChunkSize) * s.cfg.BoundaryRatio
	for _, marker := range boundaryMarkers {
		pos := lastIndex(window, marker)
		if pos >= 0 && float64(pos) > threshold {
			return pos + len(marker)
		}
	}
	return len(window)
}

func appendChunk(out []string, window []rune) []string {
	chunk := strings.TrimSpace(string(window))
	if chunk == "" {
		return out
	}
	return append(out, chunk)
}

func lastIndex(haystack, needle []rune) int {
	for i := len(haystack) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
