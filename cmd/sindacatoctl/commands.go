package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/scuola-sindacato/assistente/internal/bootstrap"
	"github.com/scuola-sindacato/assistente/internal/config"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/chunking"
)

type rootOptions struct {
	cfg  config.Config
	load bool
}

func newRootCommand(cfg config.Config) *cobra.Command {
	opts := &rootOptions{cfg: cfg}

	root := &cobra.Command{
		Use:          "sindacatoctl",
		Short:        "Operate the school-contract document assistant",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.load, "load", cfg.VectorBackend == config.VectorBackendMemory,
		"index the seed dataset and the document library before running the command")

	root.AddCommand(
		newIngestCommand(opts),
		newSearchCommand(opts),
		newAskCommand(opts),
		newStatsCommand(opts),
		newChunkCommand(opts),
	)
	return root
}

// openApp bootstraps the application, optionally running the startup load.
func (o *rootOptions) openApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, o.cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	if o.load {
		if _, err := app.LoadOnStartup(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func newIngestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Copy files into the document library and index them; without arguments index the whole library",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, opts.cfg, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 0 {
				report, err := app.IngestUC.IngestLibrary(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			}

			names := make([]string, 0, len(args))
			for _, path := range args {
				name, err := copyToLibrary(ctx, app, path)
				if err != nil {
					return err
				}
				names = append(names, name)
			}
			report, err := app.IngestUC.IngestFiles(ctx, names)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func copyToLibrary(ctx context.Context, app *bootstrap.App, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return app.IngestUC.SaveToLibrary(ctx, filepath.Base(path), f)
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the indexed passages most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.QueryUC.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s (%s) score=%.3f\n   %s\n",
					i+1, r.Metadata.Filename, r.Metadata.Category, r.Score, preview(r.Text, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of results (default RAG_TOP_K)")
	return cmd
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			answer, err := app.QueryUC.Answer(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out, "\nFonti:")
				for _, src := range answer.Sources {
					fmt.Fprintf(out, "- %s (%s) chunk %s\n", src.Filename, src.Category, src.Position)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of context passages (default RAG_TOP_K)")
	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of indexed chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.QueryUC.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newChunkCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <file>",
		Short: "Extract a file and print the chunk boundaries the ingestor would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			splitter, err := chunking.NewSplitter(opts.cfg.Chunking())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			text, err := bootstrap.NewExtractor(opts.cfg).Extract(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			chunks := splitter.Split(text)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d runes, %d chunks\n", filepath.Base(args[0]), utf8.RuneCountInString(text), len(chunks))
			for i, c := range chunks {
				fmt.Fprintf(out, "[%d/%d] %d runes: %s\n", i+1, len(chunks), utf8.RuneCountInString(c), preview(c, 80))
			}
			return nil
		},
	}
}

func preview(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	return string([]rune(text)[:maxRunes]) + "..."
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
