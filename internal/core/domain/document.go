package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentTypePDF    DocumentType = "PDF"
	DocumentTypeDOCX   DocumentType = "DOCX"
	DocumentTypeTXT    DocumentType = "TXT"
	DocumentTypeXLSX   DocumentType = "XLSX"
	DocumentTypeInline DocumentType = "INLINE"
)

// DocumentTypeFromFilename infers the document type from the file extension.
// The second return value is false for extensions the library cannot ingest.
func DocumentTypeFromFilename(filename string) (DocumentType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return DocumentTypePDF, true
	case ".docx":
		return DocumentTypeDOCX, true
	case ".txt":
		return DocumentTypeTXT, true
	case ".xlsx":
		return DocumentTypeXLSX, true
	default:
		return "", false
	}
}

// SourceDocument is an extracted document waiting to be indexed. It is never
// persisted itself.
type SourceDocument struct {
	Filename string       `json:"filename"`
	Type     DocumentType `json:"type"`
	Text     string       `json:"-"`
}

type Category string

const (
	CategoryCCNL                Category = "CCNL Scuola"
	CategoryCirculars           Category = "Circolari MIUR"
	CategoryIntegrativeContract Category = "Contratto Integrativo"
	CategoryResolutions         Category = "Delibere"
	CategoryLeaveAndVacation    Category = "Permessi e Ferie"
	CategorySubstituteTeaching  Category = "Supplenze e Graduatorie"
	CategoryGeneralDocuments    Category = "Documenti Generali"
)

type ChunkMetadata struct {
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"document_type"`
	Category     Category     `json:"category"`
	ChunkIndex   int          `json:"chunk_index"`
	TotalChunks  int          `json:"total_chunks"`
	Fingerprint  string       `json:"fingerprint"`
	IngestedAt   time.Time    `json:"ingested_at"`
}

// Chunk is the unit of embedding and retrieval. Stored chunks are never
// mutated; re-ingesting a document appends new chunks with new ids.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

type IngestResult struct {
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"document_type"`
	Category     Category     `json:"category,omitempty"`
	Fingerprint  string       `json:"fingerprint,omitempty"`
	ChunksAdded  int          `json:"chunks_added"`
	FirstChunkID string       `json:"first_chunk_id,omitempty"`
	Skipped      bool         `json:"skipped"`
	Reason       string       `json:"reason,omitempty"`
	IngestedAt   time.Time    `json:"ingested_at"`
}

// SkipErr reports a skipped document as an ErrSkippable error, nil otherwise.
func (r IngestResult) SkipErr() error {
	if !r.Skipped {
		return nil
	}
	return WrapError(ErrSkippable, r.Filename, errors.New(r.Reason))
}

type FailureKind string

const (
	FailureExtraction   FailureKind = "extraction"
	FailureCollaborator FailureKind = "collaborator"
)

type DocumentFailure struct {
	Filename string      `json:"filename"`
	Kind     FailureKind `json:"kind"`
	Error    string      `json:"error"`
}

type BatchReport struct {
	Results     []IngestResult    `json:"results"`
	Processed   []string          `json:"processed"`
	Failures    []DocumentFailure `json:"failures,omitempty"`
	ChunksAdded int               `json:"chunks_added"`
}

// AddResult records one per-document outcome. Skipped documents are listed in
// Results but not in Processed.
func (r *BatchReport) AddResult(res IngestResult) {
	r.Results = append(r.Results, res)
	if !res.Skipped {
		r.Processed = append(r.Processed, res.Filename)
		r.ChunksAdded += res.ChunksAdded
	}
}

// Merge appends another report, keeping document order.
func (r *BatchReport) Merge(other BatchReport) {
	r.Results = append(r.Results, other.Results...)
	r.Processed = append(r.Processed, other.Processed...)
	r.Failures = append(r.Failures, other.Failures...)
	r.ChunksAdded += other.ChunksAdded
}

func (r *BatchReport) AddFailure(filename string, kind FailureKind, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.Failures = append(r.Failures, DocumentFailure{
		Filename: filename,
		Kind:     kind,
		Error:    msg,
	})
}

// Fingerprint is the hex SHA-256 of a document's raw text, used to detect
// content changes between ingestions.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
