package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DocumentsPath:      t.TempDir(),
		ChunkSize:          200,
		ChunkOverlap:       40,
		MinContentLength:   100,
		ChunkBoundaryRatio: 0.6,
		RAGTopK:            3,
		VectorBackend:      config.VectorBackendMemory,
		EmbedderBackend:    config.EmbedderHashing,
		HashingDimension:   128,
	}
}

func run(t *testing.T, cfg config.Config, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(cfg)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestChunkCommandPrintsBoundaries(t *testing.T) {
	cfg := offlineConfig(t)
	path := filepath.Join(t.TempDir(), "ferie.txt")
	text := strings.Repeat("Il docente fruisce delle ferie nei periodi di sospensione delle lezioni. ", 6)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out := run(t, cfg, "chunk", path)
	if !strings.HasPrefix(out, "ferie.txt: 438 runes,") {
		t.Fatalf("unexpected header %q", out)
	}
	if !strings.Contains(out, "[1/") {
		t.Fatalf("expected chunk listing, got %q", out)
	}
}

func TestIngestThenStatsWithSeedLoad(t *testing.T) {
	cfg := offlineConfig(t)
	path := filepath.Join(t.TempDir(), "delibera_collegio.txt")
	text := strings.Repeat("Il collegio dei docenti delibera il piano annuale delle attivita'. ", 3)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out := run(t, cfg, "ingest", "--load=false", path)
	var report domain.BatchReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if len(report.Processed) != 1 || report.Processed[0] != "delibera_collegio.txt" {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, err := os.Stat(filepath.Join(cfg.DocumentsPath, "delibera_collegio.txt")); err != nil {
		t.Fatalf("expected file copied into the library: %v", err)
	}

	// Memory indexes do not survive the process; --load rebuilds from seed and library.
	cfg.SeedEnabled = true
	out = run(t, cfg, "stats")
	var stats domain.IndexStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if stats.Chunks <= report.ChunksAdded {
		t.Fatalf("expected seed plus library chunks, got %d", stats.Chunks)
	}
}

func TestSearchCommandFindsLibraryDocument(t *testing.T) {
	cfg := offlineConfig(t)
	text := strings.Repeat("Le graduatorie provinciali per le supplenze sono aggiornate ogni due anni. ", 3)
	if err := os.WriteFile(filepath.Join(cfg.DocumentsPath, "gps_aggiornamento.txt"), []byte(text), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out := run(t, cfg, "search", "--limit", "1", "graduatorie", "supplenze")
	if !strings.HasPrefix(out, "1. gps_aggiornamento.txt (Supplenze e Graduatorie)") {
		t.Fatalf("unexpected search output %q", out)
	}
}
