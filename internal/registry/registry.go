package registry

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"syscall"
	"time"

	"smash/internal/parser"
	"smash/internal/proc"
)

// Registry is a threadsafe catalog of the shell's jobs, kept in insertion
// order until a listing sorts it by ID.
type Registry struct {
	mu     sync.RWMutex
	jobs   []*Job
	prober Prober
	now    func() time.Time
	onReap func(*Job)
}

// New returns an empty registry. A nil prober uses the running kernel.
func New(p Prober) *Registry {
	if p == nil {
		p = proc.System{}
	}
	return &Registry{prober: p, now: now}
}

// Add registers a job for pid after reaping finished jobs. The new ID is one
// more than the highest registered ID.
func (r *Registry) Add(cmd *parser.Command, stopped bool, pid int) *Job {
	r.RemoveFinished()

	r.mu.Lock()
	defer r.mu.Unlock()
	j := &Job{
		ID:         r.highestLocked() + 1,
		PID:        pid,
		Cmd:        cmd,
		InsertedAt: r.now(),
		Stopped:    stopped,
	}
	r.jobs = append(r.jobs, j)
	return j
}

// OnReap registers fn to run for every job RemoveFinished drops, after the
// registry lock is released.
func (r *Registry) OnReap(fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReap = fn
}

// RemoveFinished drops every job whose process has been reaped or no longer
// answers a liveness probe, and returns the dropped jobs.
func (r *Registry) RemoveFinished() []*Job {
	r.mu.Lock()
	var gone []*Job
	kept := r.jobs[:0]
	for _, j := range r.jobs {
		if r.prober.Reap(j.PID) || !r.prober.Alive(j.PID) {
			gone = append(gone, j)
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(r.jobs); i++ {
		r.jobs[i] = nil
	}
	r.jobs = kept
	fn := r.onReap
	r.mu.Unlock()

	if fn != nil {
		for _, j := range gone {
			fn(j)
		}
	}
	return gone
}

// Get returns a copy of the job with the given ID.
func (r *Registry) Get(id int) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if j := r.findLocked(func(j *Job) bool { return j.ID == id }); j != nil {
		return *j, true
	}
	return Job{}, false
}

// GetByPID returns a copy of the job tracking pid.
func (r *Registry) GetByPID(pid int) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if j := r.findLocked(func(j *Job) bool { return j.PID == pid }); j != nil {
		return *j, true
	}
	return Job{}, false
}

// Lookup returns the registered job itself, or nil.
func (r *Registry) Lookup(id int) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(func(j *Job) bool { return j.ID == id })
}

// Remove deletes the job with the given ID. Only the call that actually
// removed it gets the job back.
func (r *Registry) Remove(id int) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(func(j *Job) bool { return j.ID == id })
}

// RemoveByPID deletes the job tracking pid.
func (r *Registry) RemoveByPID(pid int) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(func(j *Job) bool { return j.PID == pid })
}

// SetStopped flips the stopped flag of a registered job.
func (r *Registry) SetStopped(id int, stopped bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.findLocked(func(j *Job) bool { return j.ID == id })
	if j == nil {
		return false
	}
	j.Stopped = stopped
	return true
}

// Highest returns the largest registered ID, or 0 when empty.
func (r *Registry) Highest() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.highestLocked()
}

// LastStopped returns the stopped job with the highest ID.
func (r *Registry) LastStopped() (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Job
	for _, j := range r.jobs {
		if j.Stopped && (best == nil || j.ID > best.ID) {
			best = j
		}
	}
	if best == nil {
		return Job{}, false
	}
	return *best, true
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// List sorts the registry by ID and returns copies in that order. The sort
// is kept in storage.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.jobs, func(i, k int) bool { return r.jobs[i].ID < r.jobs[k].ID })
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out
}

// Print writes the job listing as of at.
func (r *Registry) Print(w io.Writer, at time.Time) {
	for _, j := range r.List() {
		fmt.Fprintf(w, "[%d] %s : %d %d secs", j.ID, j.Line(), j.PID, elapsedSeconds(j.InsertedAt, at))
		if j.Stopped {
			fmt.Fprint(w, " (stopped)")
		}
		fmt.Fprintln(w)
	}
}

// KillAll SIGKILLs every registered job, empties the registry and returns
// the killed jobs in ID order.
func (r *Registry) KillAll() ([]Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.jobs, func(i, k int) bool { return r.jobs[i].ID < r.jobs[k].ID })
	killed := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		killed = append(killed, *j)
	}
	return killed, r.resetLocked()
}

// Reset SIGKILLs every registered job and empties the registry. Signal
// failures are joined into the returned error.
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetLocked()
}

func (r *Registry) resetLocked() error {
	var errs []error
	for _, j := range r.jobs {
		if err := r.prober.Signal(j.PID, syscall.SIGKILL); err != nil {
			errs = append(errs, fmt.Errorf("kill job %d (pid %d): %w", j.ID, j.PID, err))
		}
	}
	r.jobs = nil
	return errors.Join(errs...)
}

func (r *Registry) highestLocked() int {
	highest := 0
	for _, j := range r.jobs {
		if j.ID > highest {
			highest = j.ID
		}
	}
	return highest
}

func (r *Registry) findLocked(match func(*Job) bool) *Job {
	for _, j := range r.jobs {
		if match(j) {
			return j
		}
	}
	return nil
}

func (r *Registry) removeLocked(match func(*Job) bool) *Job {
	for i, j := range r.jobs {
		if match(j) {
			copy(r.jobs[i:], r.jobs[i+1:])
			r.jobs[len(r.jobs)-1] = nil
			r.jobs = r.jobs[:len(r.jobs)-1]
			return j
		}
	}
	return nil
}

func elapsedSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
