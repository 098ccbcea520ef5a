package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/doctree"
	"github.com/dgallion1/statchunk/internal/parser"
)

// fileResult is the outcome of chunking one input file.
type fileResult struct {
	File   string          `json:"file"`
	Title  string          `json:"title"`
	Chunks []doctree.Chunk `json:"chunks"`
	Err    error           `json:"-"`
	Error  string          `json:"error,omitempty"`
}

// extractFile reads a file and returns its plain text through the parser
// registered for its extension.
func extractFile(path string, opts parser.Options) (*parser.Document, error) {
	p, err := parser.ForFile(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f, filepath.Base(path))
}

// chunkFiles extracts and chunks every path on a pool of workers. Results
// keep the order of paths.
func chunkFiles(paths []string, b *chunker.Builder, workers int, opts parser.Options) ([]fileResult, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([]fileResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = chunkFile(path, b, opts)
		})
		if err != nil {
			wg.Done()
			results[i] = fileResult{File: path, Err: err}
		}
	}
	wg.Wait()

	for i := range results {
		if results[i].Err != nil {
			results[i].Error = results[i].Err.Error()
		}
	}
	return results, nil
}

func chunkFile(path string, b *chunker.Builder, opts parser.Options) fileResult {
	res := fileResult{File: path}
	doc, err := extractFile(path, opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.Title = doc.Title
	res.Chunks, res.Err = b.Parse(doc.Text)
	return res
}

func newChunkCmd(o *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chunk FILE...",
		Short: "Chunk statute files and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := o.builder()
			if err != nil {
				return err
			}
			results, err := chunkFiles(args, b, o.workers, parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext})
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					o.logger().Warn("chunking failed", "file", r.File, "error", r.Err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					renderFile(out, r)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chunks as JSON")
	return cmd
}

func newPrepareCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare FILE",
		Short: "Print the index batch (documents, metadatas, ids) for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := o.builder()
			if err != nil {
				return err
			}
			res := chunkFile(args[0], b, parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext})
			if res.Err != nil && !errors.Is(res.Err, chunker.ErrNoChunks) {
				return res.Err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chunker.Prepare(res.Chunks))
		},
	}
}
