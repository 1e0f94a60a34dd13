// Package worker implements the asynchronous crawl execution loop.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/feed"
	"github.com/jmallory/pagefeed/internal/metrics"
	"github.com/jmallory/pagefeed/internal/pipeline"
)

// Worker consumes queue items and runs the ingest pipeline, mirroring each
// stage transition into the job store so pollers see live progress.
type Worker struct {
	queue    feed.Queue
	jobStore feed.JobStore
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// New constructs a Worker.
func New(queue feed.Queue, jobStore feed.JobStore, p *pipeline.Pipeline, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		jobStore: jobStore,
		pipeline: p,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item feed.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	w.updateStatus(ctx, item.JobID, feed.JobRunning, pipeline.StageFetching, nil, "")

	progress := func(stage string) {
		w.updateStatus(ctx, item.JobID, feed.JobRunning, stage, nil, "")
	}

	summary, err := w.pipeline.Run(ctx, item.Request, progress)
	if err != nil {
		w.logger.Error("job failed",
			zap.String("job_id", item.JobID),
			zap.String("page_url", item.Request.PageURL),
			zap.Error(err),
		)
		w.updateStatus(ctx, item.JobID, feed.JobFailed, "", nil, err.Error())
		metrics.ObserveJob(string(feed.JobFailed))
		return
	}

	w.logger.Info("job completed",
		zap.String("job_id", item.JobID),
		zap.String("page_url", item.Request.PageURL),
		zap.Int("posts_found", summary.PostsFound),
		zap.Int("db_saved", summary.Stored),
		zap.Int("cache_saved", summary.Cached),
	)
	w.updateStatus(ctx, item.JobID, feed.JobCompleted, "done", &summary, "")
	metrics.ObserveJob(string(feed.JobCompleted))
}

func (w *Worker) updateStatus(
	ctx context.Context,
	jobID string,
	status feed.JobStatus,
	progress string,
	result *feed.CrawlSummary,
	errText string,
) {
	if err := w.jobStore.UpdateJobStatus(ctx, jobID, status, progress, result, errText); err != nil {
		w.logger.Error("update job status failed",
			zap.String("job_id", jobID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
