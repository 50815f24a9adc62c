package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/seed"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DocumentsPath:      t.TempDir(),
		SeedEnabled:        true,
		ChunkSize:          1500,
		ChunkOverlap:       300,
		MinContentLength:   100,
		ChunkBoundaryRatio: 0.6,
		RAGTopK:            5,
		VectorBackend:      config.VectorBackendMemory,
		EmbedderBackend:    config.EmbedderHashing,
		HashingDimension:   256,
	}
}

func TestLoadOnStartupIndexesSeedAndLibrary(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.BackupPath = filepath.Join(t.TempDir(), "chunks.jsonl")

	circolare := strings.Repeat("La circolare disciplina la mobilita' del personale docente per l'anno scolastico. ", 4)
	if err := os.WriteFile(filepath.Join(cfg.DocumentsPath, "circolare_mobilita.txt"), []byte(circolare), 0o644); err != nil {
		t.Fatalf("write library file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.DocumentsPath, "scansione.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatalf("write library file: %v", err)
	}

	app, err := New(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	report, err := app.LoadOnStartup(context.Background())
	if err != nil {
		t.Fatalf("LoadOnStartup() error = %v", err)
	}

	seedDocs, err := seed.Documents()
	if err != nil {
		t.Fatalf("seed.Documents() error = %v", err)
	}
	if len(report.Processed) != len(seedDocs)+1 {
		t.Fatalf("expected %d processed documents, got %v", len(seedDocs)+1, report.Processed)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}

	stats, err := app.QueryUC.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Chunks != report.ChunksAdded {
		t.Fatalf("expected %d indexed chunks, got %d", report.ChunksAdded, stats.Chunks)
	}

	results, err := app.QueryUC.Search(context.Background(), "mobilita del personale docente", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Metadata.Filename != "circolare_mobilita.txt" {
		t.Fatalf("expected the library circular first, got %+v", results)
	}
	if results[0].Metadata.Category != domain.CategoryCirculars {
		t.Fatalf("unexpected category %s", results[0].Metadata.Category)
	}

	if info, err := os.Stat(cfg.BackupPath); err != nil || info.Size() == 0 {
		t.Fatalf("expected chunk backup to be written, err=%v", err)
	}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.VectorBackend = config.VectorBackendPgvector

	if _, err := New(context.Background(), cfg, Options{}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg = offlineConfig(t)
	if _, err := New(context.Background(), cfg, Options{RequireQueue: true}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error without NATS_URL, got %v", err)
	}
}

func TestLoadOnStartupHonoursConfiguredMinimumLength(t *testing.T) {
	for _, minLength := range []int{0, 20} {
		cfg := offlineConfig(t)
		cfg.SeedEnabled = false
		cfg.MinContentLength = minLength

		nota := "Nota breve sulle ferie del personale ATA."
		if err := os.WriteFile(filepath.Join(cfg.DocumentsPath, "nota_ferie.txt"), []byte(nota), 0o644); err != nil {
			t.Fatalf("write library file: %v", err)
		}

		app, err := New(context.Background(), cfg, Options{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		report, err := app.LoadOnStartup(context.Background())
		app.Close()
		if err != nil {
			t.Fatalf("LoadOnStartup() error = %v", err)
		}
		if len(report.Processed) != 1 || report.ChunksAdded != 1 {
			t.Fatalf("min length %d: expected the short note indexed as one chunk, got %+v", minLength, report)
		}
	}
}
