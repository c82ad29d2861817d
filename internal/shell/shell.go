// Package shell implements smash: command dispatch, job control and the
// signal handling that drives foreground jobs.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"smash/internal/config"
	"smash/internal/proc"
	"smash/internal/registry"
)

// Options configures a Shell. Zero values fall back to the process defaults.
type Options struct {
	Config config.Config
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger

	// Prober and Scheduler replace the kernel-backed defaults.
	Prober    registry.Prober
	Scheduler *registry.Scheduler

	// Reexec is the argv prefix that starts this binary as a pipe child.
	Reexec    []string
	ReexecEnv []string

	// PipeChild marks a process started for the left side of a pipe.
	PipeChild bool
	// PID is the pid reported by showpid. A pipe child inherits its parent's.
	PID int
}

// Shell is the process-wide shell state. The signal goroutine and the main
// flow share the job registry, the timeout scheduler and the foreground job.
type Shell struct {
	cfg     config.Config
	prompt  string
	lastDir string
	pid     int

	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
	style  styles

	prober   registry.Prober
	jobs     *registry.Registry
	timeouts *registry.Scheduler

	// mu serializes multi-step updates between the main flow and the signal
	// handlers. It is never held across a blocking wait.
	mu sync.Mutex
	fg atomic.Pointer[registry.Job]

	pipeChild bool
	reexec    []string
	reexecEnv []string

	stopSignals context.CancelFunc
	closeOnce   sync.Once
}

// New initialises the shell state.
func New(opts Options) *Shell {
	cfg := opts.Config
	if cfg.Interpreter == "" {
		cfg = config.Default()
	}
	s := &Shell{
		cfg:       cfg,
		prompt:    cfg.Prompt,
		pid:       opts.PID,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		log:       opts.Logger,
		prober:    opts.Prober,
		timeouts:  opts.Scheduler,
		pipeChild: opts.PipeChild,
		reexec:    opts.Reexec,
		reexecEnv: opts.ReexecEnv,
	}
	if s.pid == 0 {
		s.pid = os.Getpid()
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}
	if s.timeouts == nil {
		s.timeouts = registry.NewScheduler(nil)
	}
	if len(s.reexec) == 0 {
		if exe, err := os.Executable(); err == nil {
			s.reexec = []string{exe}
		}
	}
	s.jobs = registry.New(s.prober)
	if s.prober == nil {
		s.prober = proc.System{}
	}
	s.jobs.OnReap(s.forget)
	s.style = newStyles(s.stdout, s.stderr, cfg.Color)
	return s
}

// Close disarms the alarm before it stops signal delivery, then kills every
// job still registered. A pipe child leaves the jobs it inherited alone.
func (s *Shell) Close() {
	s.closeOnce.Do(func() {
		if err := s.timeouts.Reset(); err != nil {
			s.log.Printf("disarm alarm: %v", err)
		}
		if s.stopSignals != nil {
			s.stopSignals()
		}
		if s.pipeChild {
			return
		}
		if err := s.jobs.Reset(); err != nil {
			s.log.Printf("kill jobs: %v", err)
		}
	})
}

// Prompt is the text printed before each line is read.
func (s *Shell) Prompt() string {
	return s.style.prompt(s.prompt+">") + " "
}

// Jobs exposes the job registry.
func (s *Shell) Jobs() *registry.Registry { return s.jobs }

// Foreground returns the job currently waited on, or nil.
func (s *Shell) Foreground() *registry.Job { return s.fg.Load() }

// Run reads lines from in until quit or end of input.
func (s *Shell) Run(in io.Reader) error {
	r := bufio.NewReader(in)
	for {
		fmt.Fprint(s.stdout, s.Prompt())
		line, err := r.ReadString('\n')
		if line != "" {
			if s.Execute(line) == OutcomeQuit {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}
	}
}

// RunPipeChild executes the left side of a pipe once, starting from the job
// table the parent handed over.
func (s *Shell) RunPipeChild(line, snapshot string) {
	if snapshot != "" {
		if err := s.jobs.Load(snapshot); err != nil {
			s.log.Printf("pipe child: %v", err)
		}
		if err := os.Remove(snapshot); err != nil {
			s.log.Printf("pipe child: remove snapshot: %v", err)
		}
	}
	s.Execute(line)
}

// forget mirrors a registry removal into the scheduler and the foreground
// reference.
func (s *Shell) forget(j *registry.Job) {
	s.timeouts.Remove(j)
	s.fg.CompareAndSwap(j, nil)
	s.log.Printf("job %d (pid %d) finished", j.ID, j.PID)
}

func (s *Shell) report(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(s.stderr, s.style.err("smash error: "+message(err)))
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.stdout, format, args...)
}
