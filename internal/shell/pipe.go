package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"smash/internal/config"
	"smash/internal/parser"
	"smash/internal/proc"
)

// Hidden flags that start this binary as the left side of a pipe.
const (
	FlagPipeChild    = "pipe-child"
	FlagJobsSnapshot = "jobs-snapshot"
	FlagShellPID     = "shell-pid"
	FlagCommand      = "command"
)

// PipeChildArgs builds the arguments that make a re-executed shell run line
// once as a pipe child.
func PipeChildArgs(line, snapshot string, shellPID int) []string {
	return []string{
		"--" + FlagPipeChild,
		"--" + FlagJobsSnapshot, snapshot,
		"--" + FlagShellPID, strconv.Itoa(shellPID),
		"--" + FlagCommand, line,
	}
}

// runPipe feeds the left side's stdout (or stderr for "|&") into the right
// side's stdin. The left side runs in a re-executed shell in its own process
// group; the right side runs here with fd 0 swapped for the pipe.
func (s *Shell) runPipe(cmd *parser.Command, depth int) Outcome {
	left, right, stderr := cmd.Pipe()

	r, w, err := os.Pipe()
	if err != nil {
		s.report(os.NewSyscallError("pipe", unwrapSyscall(err)))
		return OutcomePipe
	}

	child, err := s.startPipeChild(left, w, stderr)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = os.NewSyscallError("close", cerr)
	}
	if err != nil {
		r.Close()
		s.report(err)
		if child != nil {
			go s.reapChild(child)
		}
		return OutcomePipe
	}
	defer func() { go s.reapChild(child) }()

	saved, err := proc.Redirect(int(r.Fd()), 0)
	if cerr := r.Close(); cerr != nil && err == nil {
		err = os.NewSyscallError("close", cerr)
	}
	if err != nil {
		if saved != nil {
			s.report(saved.Restore())
		}
		s.report(err)
		return OutcomePipe
	}

	outcome := s.execute(right, depth+1)
	if err := saved.Restore(); err != nil {
		s.report(err)
	}
	if outcome == OutcomeQuit {
		return outcome
	}
	return OutcomePipe
}

func (s *Shell) startPipeChild(left string, w *os.File, stderr bool) (*exec.Cmd, error) {
	if len(s.reexec) == 0 {
		return nil, fmt.Errorf("pipe: cannot locate the shell executable")
	}
	snapshot, err := s.snapshotJobs()
	if err != nil {
		return nil, fmt.Errorf("pipe: save jobs: %w", err)
	}

	args := append(append([]string{}, s.reexec[1:]...), PipeChildArgs(left, snapshot, s.pid)...)
	c := exec.Command(s.reexec[0], args...)
	c.Env = append(append(os.Environ(), config.Environ(s.cfg)...), s.reexecEnv...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if stderr {
		c.Stderr = w
	} else {
		c.Stdout = w
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := c.Start(); err != nil {
		os.Remove(snapshot)
		return nil, os.NewSyscallError("fork", unwrapSyscall(err))
	}
	s.log.Printf("pipe: child pid %d runs %q", c.Process.Pid, left)
	return c, nil
}

func (s *Shell) snapshotJobs() (string, error) {
	f, err := os.CreateTemp("", "smash-jobs-*.json")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	if err := s.jobs.Save(path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Shell) reapChild(c *exec.Cmd) {
	if err := c.Wait(); err != nil {
		s.log.Printf("pipe: child pid %d: %v", c.Process.Pid, err)
	}
}

// unwrapSyscall strips path and syscall wrappers so the report shows the
// bare OS error.
func unwrapSyscall(err error) error {
	switch e := err.(type) {
	case *os.SyscallError:
		return e.Err
	case *os.PathError:
		return e.Err
	}
	return err
}
