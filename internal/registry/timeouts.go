package registry

import (
	"sort"
	"sync"
	"time"

	"smash/internal/proc"
)

const (
	// minAlarmDelay stands in for deadlines that already passed; a zero
	// interval would disarm the timer instead of firing it.
	minAlarmDelay = time.Millisecond
	// expirySlack absorbs the gap between the wall clock used for deadlines
	// and the interval timer.
	expirySlack = 5 * time.Millisecond
)

// Entry is a timeout-wrapped job and its declared duration.
type Entry struct {
	Job      *Job
	Duration time.Duration
}

// Deadline is the moment the job times out.
func (e Entry) Deadline() time.Time {
	return e.Job.InsertedAt.Add(e.Duration)
}

// Scheduler orders timeout jobs by deadline and keeps exactly one alarm
// pending for the nearest one. It never owns jobs: anything removed from the
// Registry must be removed here too.
type Scheduler struct {
	mu      sync.Mutex
	entries []Entry
	alarm   proc.Alarm
	now     func() time.Time
}

// NewScheduler returns an empty scheduler. A nil alarm uses ITIMER_REAL.
func NewScheduler(a proc.Alarm) *Scheduler {
	if a == nil {
		a = proc.ITimer{}
	}
	return &Scheduler{alarm: a, now: now}
}

// Add tracks j with duration d, re-sorts by deadline and re-arms the alarm.
func (s *Scheduler) Add(j *Job, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Job: j, Duration: d})
	sort.SliceStable(s.entries, func(i, k int) bool {
		return s.entries[i].Deadline().Before(s.entries[k].Deadline())
	})
	return s.armLocked()
}

// Remove stops tracking j.
func (s *Scheduler) Remove(j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.Job == j {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scheduler) Contains(j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Job == j {
			return true
		}
	}
	return false
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Head returns the entry with the nearest deadline.
func (s *Scheduler) Head() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[0], true
}

// Arm programs the alarm for the head entry, or disarms it when empty.
func (s *Scheduler) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armLocked()
}

func (s *Scheduler) armLocked() error {
	if len(s.entries) == 0 {
		return s.alarm.Disarm()
	}
	d := s.entries[0].Deadline().Sub(s.now())
	if d <= 0 {
		d = minAlarmDelay
	}
	return s.alarm.Set(d)
}

// Expire pops every head entry whose deadline is at or before at, in
// deadline order. The alarm is left untouched.
func (s *Scheduler) Expire(at time.Time) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(s.entries) && !s.entries[n].Deadline().After(at.Add(expirySlack)) {
		n++
	}
	due := append([]Entry(nil), s.entries[:n]...)
	s.entries = s.entries[n:]
	return due
}

// Nearest returns the entry whose deadline lies closest to at, on either side.
func (s *Scheduler) Nearest(at time.Time) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	var bestGap time.Duration
	for i, e := range s.entries {
		gap := at.Sub(e.Job.InsertedAt) - e.Duration
		if gap < 0 {
			gap = -gap
		}
		if best < 0 || gap < bestGap {
			best, bestGap = i, gap
		}
	}
	if best < 0 {
		return Entry{}, false
	}
	return s.entries[best], true
}

// Reset drops every entry and disarms the alarm.
func (s *Scheduler) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.alarm.Disarm()
}
