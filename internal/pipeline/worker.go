package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/parser"
	"github.com/dgallion1/statchunk/internal/stats"
	"github.com/dgallion1/statchunk/internal/store"
)

// WorkerOptions tunes extraction and index writes.
type WorkerOptions struct {
	Parse              parser.Options
	MaxConcurrentStore int
	StoreBatchSize     int
}

// Worker processes a single document job.
type Worker struct {
	index   store.Index
	builder *chunker.Builder
	stats   *stats.Window
	log     *slog.Logger
	opts    WorkerOptions
	backoff func(attempt int) time.Duration
}

func NewWorker(index store.Index, builder *chunker.Builder, st *stats.Window, log *slog.Logger, opts WorkerOptions) *Worker {
	if st == nil {
		st = stats.NewWindow(time.Hour)
	}
	if opts.MaxConcurrentStore <= 0 {
		opts.MaxConcurrentStore = 1
	}
	if opts.StoreBatchSize <= 0 {
		opts.StoreBatchSize = 100
	}
	return &Worker{
		index:   index,
		builder: builder,
		stats:   st,
		log:     log,
		opts:    opts,
		backoff: Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "collection", job.Collection)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	p, err := parser.ForFile(job.Filename, w.opts.Parse)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("extract failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	if job.Title == "" {
		job.setTitle(doc.Title)
	}

	// Hash the extracted text so re-encoded copies of a document still match.
	hash := ContentHashHex([]byte(doc.Text))
	job.setContentHash(hash)

	// Phase 1.5: Dedup check
	if !job.Force {
		existing, found, err := w.index.FindByHash(ctx, job.Collection, hash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if found {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.setDuplicateOf(existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := w.builder.Parse(doc.Text)
	if err != nil {
		if errors.Is(err, chunker.ErrNoChunks) {
			log.Warn("no chunks produced")
		} else {
			log.Error("chunking failed", "error", err)
		}
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	batch := chunker.Prepare(chunks)
	batch.Annotate("source", job.Filename)
	batch.Annotate("doc_id", job.DocID)
	batch.Annotate("content_hash", hash)
	job.SetTotalChunks(batch.Len())
	log.Info("chunked document", "chunks", batch.Len())

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	err = withRetry(ctx, log, w.backoff, "delete_previous", func() error {
		_, err := w.index.DeleteDocument(ctx, job.Collection, job.DocID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		log.Error("replacing previous version failed", "error", err)
		job.AddError(fmt.Sprintf("delete previous: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	hadErrors := w.storeRecords(ctx, log, job, batch.Records())
	stored := job.Snapshot().Progress.ChunksStored
	log.Info("storage complete", "stored", stored, "total", batch.Len())

	if stored > 0 {
		meta := store.Document{
			Collection:  job.Collection,
			DocID:       job.DocID,
			Title:       job.Snapshot().Title,
			Source:      job.Filename,
			ContentHash: hash,
			ChunkCount:  stored,
			IndexedAt:   time.Now().UTC(),
		}
		err := withRetry(ctx, log, w.backoff, "put_document", func() error {
			return w.index.PutDocument(ctx, meta)
		})
		if err != nil {
			log.Error("document record write failed", "error", err)
			job.AddError(fmt.Sprintf("document: %s", err))
			hadErrors = true
		}
	}

	switch {
	case hadErrors && stored > 0:
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

// storeRecords writes records in batches with bounded concurrency. It reports
// whether any batch failed; failed batches do not cancel the others.
func (w *Worker) storeRecords(ctx context.Context, log *slog.Logger, job *Job, records []chunker.Record) bool {
	var g errgroup.Group
	g.SetLimit(w.opts.MaxConcurrentStore)

	size := w.opts.StoreBatchSize
	for start := 0; start < len(records); start += size {
		part := records[start:min(start+size, len(records))]
		g.Go(func() error {
			err := withRetry(ctx, log, w.backoff, "upsert_chunks", func() error {
				return w.stats.Time(func() error {
					return w.index.UpsertChunks(ctx, job.Collection, job.DocID, part)
				})
			})
			if err != nil {
				log.Error("store batch failed", "first_id", part[0].ID, "size", len(part), "error", err)
				job.AddError(fmt.Sprintf("store %s (+%d): %s", part[0].ID, len(part)-1, err))
				return err
			}
			job.AddStored(len(part))
			return nil
		})
	}
	return g.Wait() != nil
}
