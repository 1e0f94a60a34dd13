package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmallory/pagefeed/internal/feed"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]feed.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]feed.Job)}
}

// CreateJob stores a new job record.
func (s *JobStore) CreateJob(_ context.Context, job feed.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates status, progress, and outcome for a job. Started
// and Finished timestamps are stamped on the first transition into running
// and into a terminal status respectively.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status feed.JobStatus,
	progress string,
	result *feed.CrawlSummary,
	errText string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return feed.ErrNotFound
	}
	job.Status = status
	job.Progress = progress
	job.ErrorText = errText
	if result != nil {
		copied := *result
		job.Result = &copied
	}
	now := time.Now().UTC()
	if status == feed.JobRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() && job.Finished == nil {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (feed.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return feed.Job{}, feed.ErrNotFound
	}
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
