package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/runner"
	"github.com/vulnsight/vulnsight/internal/storage"
)

// JobStatus represents the state of a dashboard-started scan
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// ErrClosed is returned by Start once the manager has been shut down.
var ErrClosed = errors.New("server is shutting down")

// Scanner runs one full scan. *runner.Runner satisfies it.
type Scanner interface {
	Scan(ctx context.Context, target string) (*output.Record, *storage.HistoryEntry)
}

// ScannerFactory builds a Scanner for one job; progress receives its stage
// updates.
type ScannerFactory func(progress func(runner.ProgressUpdate)) Scanner

// Job is a scan started from the dashboard.
type Job struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Status      JobStatus  `json:"status"`
	Stage       int        `json:"stage"`
	StageName   string     `json:"stage_name,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ScanID      string     `json:"scan_id,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// targetLock serializes jobs for one target. jobs counts the holder and
// waiters and is guarded by JobManager.mu.
type targetLock struct {
	mu   sync.Mutex
	jobs int
}

// JobManager runs dashboard scans in the background. Scans of the same
// target are serialized; different targets run concurrently.
type JobManager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	targets map[string]*targetLock
	factory ScannerFactory
	notify  func(Job)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewJobManager(factory ScannerFactory) *JobManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		jobs:    make(map[string]*Job),
		targets: make(map[string]*targetLock),
		factory: factory,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnChange registers fn to receive a snapshot after every job update. fn
// runs with the manager locked and must not block.
func (m *JobManager) OnChange(fn func(Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Start queues a scan of target and returns a snapshot of the new job.
func (m *JobManager) Start(target string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Job{}, ErrClosed
	}

	job := &Job{
		ID:        uuid.NewString()[:8],
		Target:    target,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	if m.notify != nil {
		m.notify(*job)
	}
	lock, ok := m.targets[target]
	if !ok {
		lock = &targetLock{}
		m.targets[target] = lock
	}
	lock.jobs++

	m.wg.Add(1)
	go m.run(job.ID, target, lock)
	return *job, nil
}

func (m *JobManager) run(id, target string, lock *targetLock) {
	defer m.wg.Done()
	lock.mu.Lock()
	defer m.release(target, lock)

	m.update(id, func(j *Job) { j.Status = StatusRunning })
	sc := m.factory(func(p runner.ProgressUpdate) {
		m.update(id, func(j *Job) {
			j.Stage = p.Stage
			j.StageName = p.Name
		})
	})

	_, entry := sc.Scan(m.ctx, target)

	m.update(id, func(j *Job) {
		now := time.Now()
		j.CompletedAt = &now
		switch {
		case entry != nil:
			j.Status = StatusCompleted
			j.ScanID = entry.ID
		case m.ctx.Err() != nil:
			j.Status = StatusFailed
			j.Error = "scan interrupted"
		default:
			j.Status = StatusFailed
			j.Error = "scan finished but could not be saved"
		}
	})
}

// release unlocks target and forgets its lock once no job holds or waits
// on it.
func (m *JobManager) release(target string, lock *targetLock) {
	m.mu.Lock()
	lock.jobs--
	if lock.jobs == 0 {
		delete(m.targets, target)
	}
	m.mu.Unlock()
	lock.mu.Unlock()
}

func (m *JobManager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(j)
	if m.notify != nil {
		m.notify(*j)
	}
}

// Get returns a snapshot of the job with the given id.
func (m *JobManager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns snapshots of all jobs, newest first.
func (m *JobManager) List() []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	return out
}

// Close interrupts running scans and waits for them to finish.
func (m *JobManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}
