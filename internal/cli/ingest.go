package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/statchunk/internal/index"
	"github.com/dgallion1/statchunk/internal/parser"
	"github.com/dgallion1/statchunk/internal/pipeline"
	"github.com/dgallion1/statchunk/internal/stats"
	"github.com/dgallion1/statchunk/internal/store"
)

// indexFlags select the collection and backend for commands that touch the
// index.
type indexFlags struct {
	collection string
	backend    string
	badgerPath string
}

func (f *indexFlags) register(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVarP(&f.collection, "collection", "c", o.cfg.DefaultCollection, "Collection name")
	cmd.Flags().StringVar(&f.backend, "backend", o.cfg.StoreBackend, "Index backend (badger, postgres, pathstore)")
	cmd.Flags().StringVar(&f.badgerPath, "badger-path", o.cfg.BadgerPath, "Badger directory")
}

// open validates the merged configuration and opens the index.
func (f *indexFlags) open(ctx context.Context, o *options) (store.Index, error) {
	o.cfg.DefaultCollection = f.collection
	o.cfg.StoreBackend = f.backend
	o.cfg.BadgerPath = f.badgerPath
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	return index.Open(ctx, o.cfg, o.logger())
}

func newIngestCmd(o *options) *cobra.Command {
	var (
		idx   indexFlags
		force bool
		docID string
	)
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Chunk files and write them to the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if docID != "" && len(args) > 1 {
				return fmt.Errorf("--doc-id needs exactly one file, got %d", len(args))
			}
			if docID != "" {
				if err := store.ValidateName("doc_id", docID); err != nil {
					return err
				}
			}
			for _, path := range args {
				if !parser.IsSupportedExtension(path) {
					return fmt.Errorf("unsupported file type: %s", path)
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ix, err := idx.open(ctx, o)
			if err != nil {
				return err
			}
			defer ix.Close()

			b, err := o.builder()
			if err != nil {
				return err
			}
			w := pipeline.NewWorker(ix, b, stats.NewWindow(o.cfg.StatsWindow), o.logger(), pipeline.WorkerOptions{
				Parse:              parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext},
				MaxConcurrentStore: o.cfg.MaxConcurrentStore,
				StoreBatchSize:     o.cfg.StoreBatchSize,
			})

			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				job := pipeline.NewJob(idx.collection, docID, filepath.Base(path), "", data, force)
				w.Process(ctx, job)
				snap := job.Snapshot()
				renderJob(cmd.OutOrStdout(), snap)
				if snap.Status == pipeline.StatusFailed || snap.Status == pipeline.StatusPartial {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files did not ingest cleanly", failed, len(args))
			}
			return nil
		},
	}
	idx.register(cmd, o)
	cmd.Flags().BoolVar(&force, "force", false, "Ingest even when identical content is already indexed")
	cmd.Flags().StringVar(&docID, "doc-id", "", "Document id (single file only; default derives from content)")
	return cmd
}

func newDocsCmd(o *options) *cobra.Command {
	docs := &cobra.Command{
		Use:   "docs",
		Short: "Inspect and delete indexed documents",
	}

	var listFlags indexFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents in a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ix, err := listFlags.open(ctx, o)
			if err != nil {
				return err
			}
			defer ix.Close()

			ds, err := ix.ListDocuments(ctx, listFlags.collection)
			if err != nil {
				return err
			}
			renderDocuments(cmd.OutOrStdout(), listFlags.collection, ds)
			return nil
		},
	}
	listFlags.register(list, o)

	var delFlags indexFlags
	del := &cobra.Command{
		Use:   "delete DOC_ID",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ValidateName("doc_id", args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ix, err := delFlags.open(ctx, o)
			if err != nil {
				return err
			}
			defer ix.Close()

			n, err := ix.DeleteDocument(ctx, delFlags.collection, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d chunks)\n", successStyle.Render("deleted"), args[0], n)
			return nil
		},
	}
	delFlags.register(del, o)

	docs.AddCommand(list, del)
	return docs
}
