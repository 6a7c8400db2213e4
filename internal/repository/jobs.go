package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// JobsRepository is the task registry: async dispatch jobs polled by the
// frontend until they settle in done or error.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	UpdateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
}

// MemoryJobsRepository stores jobs in memory. Entries older than the TTL are
// swept on writes so a long-lived process does not accumulate finished jobs
// forever.
type MemoryJobsRepository struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	ttl       time.Duration
	lastSweep time.Time
}

func NewMemoryJobsRepository(ttl time.Duration) *MemoryJobsRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.Job),
		ttl:  ttl,
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) UpdateJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

// sweepLocked drops expired entries; throttled so a burst of creates does
// not rescan the map every call.
func (r *MemoryJobsRepository) sweepLocked() {
	now := time.Now().UTC()
	if now.Sub(r.lastSweep) < time.Minute {
		return
	}
	r.lastSweep = now
	for id, job := range r.jobs {
		if now.Sub(job.UpdatedAt) > r.ttl {
			delete(r.jobs, id)
		}
	}
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Payload = append([]byte(nil), job.Payload...)
	clone.Result = append([]byte(nil), job.Result...)
	return &clone
}
