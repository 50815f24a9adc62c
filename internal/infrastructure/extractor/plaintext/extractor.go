package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

const maxTextBytes = 32 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct {
	legacyFallback bool
}

// NewExtractor returns a UTF-8 text extractor. With legacyFallback, input
// that is not valid UTF-8 is decoded as Windows-1252, the usual encoding of
// older Italian office documents.
func NewExtractor(legacyFallback bool) *Extractor {
	return &Extractor{legacyFallback: legacyFallback}
}

func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxTextBytes))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read text document", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if bytes.IndexByte(raw, 0) >= 0 {
		return "", domain.WrapError(domain.ErrExtraction, "read text document", fmt.Errorf("%s looks binary", filename))
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	if !e.legacyFallback {
		return "", domain.WrapError(domain.ErrExtraction, "read text document", fmt.Errorf("%s is not valid UTF-8", filename))
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "decode windows-1252", err)
	}
	return string(decoded), nil
}
