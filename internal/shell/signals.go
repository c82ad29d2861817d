package shell

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smash/internal/proc"
	"smash/internal/registry"
)

// HandleSignals routes SIGTSTP, SIGINT and SIGALRM to Stop, Interrupt and
// Alarm on a dedicated goroutine until Close.
func (s *Shell) HandleSignals() {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGTSTP, syscall.SIGINT, syscall.SIGALRM)
	s.stopSignals = func() {
		signal.Stop(ch)
		cancel()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				s.log.Printf("signal: %v", sig)
				switch sig {
				case syscall.SIGTSTP:
					s.Stop()
				case syscall.SIGINT:
					s.Interrupt()
				case syscall.SIGALRM:
					s.Alarm()
				}
			}
		}
	}()
}

// Stop suspends the foreground job and keeps it registered as stopped.
func (s *Shell) Stop() {
	s.printf("smash: got ctrl-Z\n")

	s.mu.Lock()
	j := s.fg.Swap(nil)
	if j == nil {
		s.mu.Unlock()
		return
	}
	s.jobs.SetStopped(j.ID, true)
	err := s.prober.Signal(j.PID, syscall.SIGSTOP)
	s.mu.Unlock()

	if err != nil {
		s.report(err)
		return
	}
	s.printf("smash: process %d was stopped\n", j.PID)
}

// Interrupt kills the foreground job and drops it from every index.
func (s *Shell) Interrupt() {
	s.printf("smash: got ctrl-C\n")

	s.mu.Lock()
	j := s.fg.Swap(nil)
	if j == nil {
		s.mu.Unlock()
		return
	}
	s.jobs.RemoveByPID(j.PID)
	s.timeouts.Remove(j)
	err := s.prober.Signal(j.PID, syscall.SIGKILL)
	s.mu.Unlock()

	if err != nil {
		s.report(err)
		return
	}
	s.printf("smash: process %d was killed\n", j.PID)
}

// Alarm kills every timeout job whose deadline has passed, then re-arms the
// alarm for the next deadline or disarms it.
func (s *Shell) Alarm() {
	s.printf("smash: got an alarm\n")

	s.mu.Lock()
	s.jobs.RemoveFinished()
	now := time.Now()
	if e, ok := s.timeouts.Nearest(now); ok {
		s.log.Printf("alarm: nearest deadline is job %d at %s", e.Job.ID, e.Deadline().Format(time.RFC3339))
	}

	var (
		lines []string
		errs  []error
	)
	for _, e := range s.timeouts.Expire(now) {
		j := e.Job
		wasForeground := s.fg.CompareAndSwap(j, nil)
		if j.PID != s.pid {
			if err := s.prober.Signal(j.PID, syscall.SIGKILL); err != nil {
				errs = append(errs, err)
			} else if !wasForeground {
				go s.reapKilled(j)
			}
		}
		lines = append(lines, fmt.Sprintf("smash: %s timed out!\n", j.Line()))
		s.jobs.RemoveByPID(j.PID)
	}
	if err := s.timeouts.Arm(); err != nil {
		errs = append(errs, err)
	}
	s.mu.Unlock()

	for _, l := range lines {
		s.printf("%s", l)
	}
	for _, err := range errs {
		s.report(err)
	}
}

// reapKilled collects a background job that was killed after leaving the
// registry, since no reap pass will see it again.
func (s *Shell) reapKilled(j *registry.Job) {
	if _, err := proc.Wait(j.PID); err != nil {
		s.log.Printf("reap pid %d: %v", j.PID, err)
	}
}
