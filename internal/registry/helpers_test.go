package registry

import (
	"sync"
	"syscall"
	"time"

	"smash/internal/parser"
)

type fakeProber struct {
	mu      sync.Mutex
	exited  map[int]bool
	gone    map[int]bool
	signals map[int][]syscall.Signal
	failing map[int]error
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		exited:  make(map[int]bool),
		gone:    make(map[int]bool),
		signals: make(map[int][]syscall.Signal),
		failing: make(map[int]error),
	}
}

func (f *fakeProber) Reap(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited[pid] {
		delete(f.exited, pid)
		f.gone[pid] = true
		return true
	}
	return false
}

func (f *fakeProber) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.gone[pid]
}

func (f *fakeProber) Signal(pid int, sig syscall.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[pid]; err != nil {
		return err
	}
	f.signals[pid] = append(f.signals[pid], sig)
	return nil
}

func (f *fakeProber) failSignal(pid int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[pid] = err
}

func (f *fakeProber) exit(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited[pid] = true
}

type fakeAlarm struct {
	sets     []time.Duration
	disarmed int
}

func (a *fakeAlarm) Set(d time.Duration) error {
	a.sets = append(a.sets, d)
	return nil
}

func (a *fakeAlarm) Disarm() error {
	a.disarmed++
	return nil
}

// last returns the most recently armed duration.
func (a *fakeAlarm) last() time.Duration {
	if len(a.sets) == 0 {
		return 0
	}
	return a.sets[len(a.sets)-1]
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func mustParse(line string) *parser.Command {
	cmd, ok := parser.Parse(line)
	if !ok {
		panic("empty command line: " + line)
	}
	return cmd
}

func newTestRegistry() (*Registry, *fakeProber, *fakeClock) {
	p := newFakeProber()
	c := newClock()
	r := New(p)
	r.now = c.now
	return r, p, c
}
