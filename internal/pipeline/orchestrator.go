package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/config"
	"github.com/dgallion1/statchunk/internal/parser"
	"github.com/dgallion1/statchunk/internal/stats"
	"github.com/dgallion1/statchunk/internal/store"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline stopped")

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	index   store.Index
	stats   *stats.Window
	log     *slog.Logger
	cfg     config.Config
	workers []*Worker

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, index store.Index, builder *chunker.Builder, st *stats.Window, log *slog.Logger) *Orchestrator {
	if st == nil {
		st = stats.NewWindow(cfg.StatsWindow)
	}
	o := &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, max(cfg.MaxQueueSize, 1)),
		index: index,
		stats: st,
		log:   log,
		cfg:   cfg,
	}
	opts := WorkerOptions{
		Parse:              parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
		MaxConcurrentStore: cfg.MaxConcurrentStore,
		StoreBatchSize:     cfg.StoreBatchSize,
	}
	for range max(cfg.WorkerCount, 1) {
		o.workers = append(o.workers, NewWorker(index, builder, st, log, opts))
	}
	return o
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for _, w := range o.workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Index returns the index for direct use by API handlers.
func (o *Orchestrator) Index() store.Index {
	return o.index
}

// Stats returns the index write latency window.
func (o *Orchestrator) Stats() *stats.Window {
	return o.stats
}
