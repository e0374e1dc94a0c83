package dispatch

import (
	"sync"
	"time"
)

// jobStore keeps every job the daemon has seen, including finished ones, so
// collaborators can query status after completion. History grows until
// PurgeBefore trims it.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*Job)}
}

func (s *jobStore) put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// snapshot returns a deep copy so callers never observe a job mid-update.
func (s *jobStore) snapshot(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return copyJob(job), true
}

// updateItem applies fn to one item under the store lock and re-derives the
// aggregate status. Returns the updated snapshot and whether the job just
// entered a terminal status.
func (s *jobStore) updateItem(jobID string, index int, fn func(*Item)) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || index < 0 || index >= len(job.Items) {
		return Job{}, false
	}
	wasTerminal := job.Status.Terminal()
	fn(&job.Items[index])
	job.Status = deriveStatus(job.Items)
	job.UpdatedAt = time.Now()
	return copyJob(job), !wasTerminal && job.Status.Terminal()
}

// itemStatus reads one item's current status. Workers check this before
// sending so a cancellation between enqueue and pickup is honored.
func (s *jobStore) itemStatus(jobID string, index int) (ItemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok || index < 0 || index >= len(job.Items) {
		return "", false
	}
	return job.Items[index].Status, true
}

// cancelPending marks every still-pending item cancelled. Items already sent
// or terminal are left alone. Returns the snapshot, how many items were
// cancelled and whether the job just became terminal.
func (s *jobStore) cancelPending(jobID string) (Job, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, 0, false
	}
	wasTerminal := job.Status.Terminal()
	n := 0
	for i := range job.Items {
		if job.Items[i].Status == ItemPending {
			job.Items[i].Status = ItemCancelled
			n++
		}
	}
	if n > 0 {
		job.Status = deriveStatus(job.Items)
		job.UpdatedAt = time.Now()
	}
	return copyJob(job), n, !wasTerminal && job.Status.Terminal()
}

// purgeBefore drops terminal jobs last updated before the cutoff.
func (s *jobStore) purgeBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

func (s *jobStore) counts() (total, active int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		total++
		if !job.Status.Terminal() {
			active++
		}
	}
	return total, active
}

func copyJob(job *Job) Job {
	out := *job
	out.Items = make([]Item, len(job.Items))
	copy(out.Items, job.Items)
	for i := range out.Items {
		if job.Items[i].Record != nil {
			rec := make(map[string]any, len(job.Items[i].Record))
			for k, v := range job.Items[i].Record {
				rec[k] = v
			}
			out.Items[i].Record = rec
		}
	}
	return out
}
