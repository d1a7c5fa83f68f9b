package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recanalysis/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type jobEntry struct {
	job    models.Job
	cancel context.CancelFunc
}

// JobStore holds analysis jobs in memory. Every transition leaves processing
// exactly once; a job that reached ready or failed never changes again.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*jobEntry
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewJobStore(ttl time.Duration, logger *zap.Logger) *JobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobStore{
		jobs:   make(map[uuid.UUID]*jobEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Create registers a new job in processing state.
func (s *JobStore) Create(formType models.FormType) models.Job {
	job := models.Job{
		ID:        uuid.New(),
		Status:    models.JobStatusProcessing,
		FormType:  formType,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = &jobEntry{job: job}
	s.mu.Unlock()

	return job.Clone()
}

// Get returns a snapshot of the job. Expired jobs are reported as not found.
func (s *JobStore) Get(id uuid.UUID) (models.Job, error) {
	s.mu.RLock()
	entry, ok := s.jobs[id]
	if ok && !s.expired(entry) {
		job := entry.job.Clone()
		s.mu.RUnlock()
		return job, nil
	}
	s.mu.RUnlock()

	if ok {
		s.evict(id)
	}
	return models.Job{}, &NotFoundError{Resource: "job", ID: id.String()}
}

// AttachCancel registers the function that aborts the job's extraction. It is
// called immediately if the job is already terminal.
func (s *JobStore) AttachCancel(id uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	entry, ok := s.jobs[id]
	if ok && entry.job.Status == models.JobStatusProcessing {
		entry.cancel = cancel
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cancel()
}

func (s *JobStore) Complete(id uuid.UUID, result *ExtractionResult) error {
	return s.transition(id, func(job *models.Job) {
		job.Status = models.JobStatusReady
		job.Data = result.Fields.Clone()
		job.RAGContext = result.RAGContext
		if len(result.Warnings) > 0 {
			job.Warnings = append([]string(nil), result.Warnings...)
		}
	})
}

func (s *JobStore) Fail(id uuid.UUID, kind models.JobErrorKind, message string) error {
	return s.transition(id, func(job *models.Job) {
		job.Status = models.JobStatusFailed
		job.Error = &models.JobError{Kind: kind, Message: message}
	})
}

// Cancel fails a processing job and aborts its extraction.
func (s *JobStore) Cancel(id uuid.UUID) error {
	if err := s.Fail(id, models.JobErrorCancelled, "job cancelled"); err != nil {
		return err
	}
	s.logger.Info("Job cancelled", zap.String("job_id", id.String()))
	return nil
}

func (s *JobStore) transition(id uuid.UUID, apply func(job *models.Job)) error {
	s.mu.Lock()
	entry, ok := s.jobs[id]
	if !ok || s.expired(entry) {
		s.mu.Unlock()
		return &NotFoundError{Resource: "job", ID: id.String()}
	}
	if entry.job.Status.IsTerminal() {
		status := entry.job.Status
		s.mu.Unlock()
		return fmt.Errorf("job %s is already %s", id, status)
	}

	apply(&entry.job)
	entry.job.CompletedAt = s.now()
	cancel := entry.cancel
	entry.cancel = nil
	s.mu.Unlock()

	// releases the extraction context; a no-op for a finished extraction
	if cancel != nil {
		cancel()
	}
	return nil
}

// Sweep evicts every job older than the TTL and returns how many went.
// Evicting a job that is still processing aborts its extraction.
func (s *JobStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	var (
		evicted int
		cancels []context.CancelFunc
	)
	s.mu.Lock()
	for id, entry := range s.jobs {
		if now.Sub(entry.job.CreatedAt) > s.ttl {
			if entry.cancel != nil {
				cancels = append(cancels, entry.cancel)
			}
			delete(s.jobs, id)
			evicted++
		}
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return evicted
}

// Run sweeps expired jobs every interval until ctx is done.
func (s *JobStore) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Sweep(t); n > 0 {
				s.logger.Info("Evicted expired jobs", zap.Int("count", n))
			}
		}
	}
}

func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *JobStore) expired(entry *jobEntry) bool {
	return s.ttl > 0 && s.now().Sub(entry.job.CreatedAt) > s.ttl
}

func (s *JobStore) evict(id uuid.UUID) {
	s.mu.Lock()
	entry, ok := s.jobs[id]
	if !ok || !s.expired(entry) {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, id)
	cancel := entry.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
