package shell

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"smash/internal/parser"
)

type builtinFunc func(*Shell, *parser.Command) error

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"chprompt": (*Shell).chprompt,
		"showpid":  (*Shell).showpid,
		"pwd":      (*Shell).pwd,
		"cd":       (*Shell).cd,
		"jobs":     (*Shell).listJobs,
		"kill":     (*Shell).kill,
		"fg":       (*Shell).foreground,
		"bg":       (*Shell).background,
		"quit":     (*Shell).quit,
		"head":     (*Shell).head,
	}
}

func (s *Shell) chprompt(cmd *parser.Command) error {
	if len(cmd.Args) > 1 {
		s.prompt = cmd.Args[1]
	} else {
		s.prompt = s.cfg.Prompt
	}
	return nil
}

func (s *Shell) showpid(*parser.Command) error {
	s.printf("smash pid is %d\n", s.pid)
	return nil
}

func (s *Shell) pwd(*parser.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return os.NewSyscallError("getcwd", unwrapSyscall(err))
	}
	s.printf("%s\n", wd)
	return nil
}

func (s *Shell) cd(cmd *parser.Command) error {
	switch len(cmd.Args) {
	case 1:
		return nil
	case 2:
	default:
		return commandError("cd", ErrTooManyArguments)
	}

	target := cmd.Args[1]
	if target == "-" {
		if s.lastDir == "" {
			return commandError("cd", ErrOldPwdNotSet)
		}
		target = s.lastDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return os.NewSyscallError("getcwd", unwrapSyscall(err))
	}
	if err := os.Chdir(target); err != nil {
		return os.NewSyscallError("chdir", unwrapSyscall(err))
	}
	s.lastDir = wd
	return nil
}

func (s *Shell) listJobs(*parser.Command) error {
	s.jobs.Print(s.stdout, time.Now())
	return nil
}

func (s *Shell) kill(cmd *parser.Command) error {
	if len(cmd.Args) != 3 || !strings.HasPrefix(cmd.Args[1], "-") {
		return commandError("kill", ErrInvalidArguments)
	}
	sig, err := strconv.Atoi(cmd.Args[1][1:])
	if err != nil || sig < 0 {
		return commandError("kill", ErrInvalidArguments)
	}
	id, err := strconv.Atoi(cmd.Args[2])
	if err != nil || id <= 0 {
		return commandError("kill", ErrInvalidArguments)
	}
	j, ok := s.jobs.Get(id)
	if !ok {
		return jobNotFound("kill", id)
	}

	signum := syscall.Signal(sig)
	if err := s.prober.Signal(j.PID, signum); err != nil {
		return err
	}
	switch signum {
	case syscall.SIGSTOP, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU:
		s.jobs.SetStopped(id, true)
	case syscall.SIGCONT:
		s.jobs.SetStopped(id, false)
	}
	s.printf("signal number %d was sent to pid %d\n", sig, j.PID)
	return nil
}

func (s *Shell) foreground(cmd *parser.Command) error {
	if len(cmd.Args) > 2 {
		return commandError("fg", ErrInvalidArguments)
	}
	id := s.jobs.Highest()
	if len(cmd.Args) == 2 {
		n, err := strconv.Atoi(cmd.Args[1])
		if err != nil {
			return commandError("fg", ErrInvalidArguments)
		}
		id = n
	} else if id == 0 {
		return commandError("fg", ErrJobsListEmpty)
	}
	j := s.jobs.Lookup(id)
	if j == nil {
		return jobNotFound("fg", id)
	}

	s.printf("%s : %d\n", j.Line(), j.PID)
	if err := s.prober.Signal(j.PID, syscall.SIGCONT); err != nil {
		return err
	}
	s.jobs.SetStopped(id, false)
	return s.waitForeground(j)
}

func (s *Shell) background(cmd *parser.Command) error {
	if len(cmd.Args) > 2 {
		return commandError("bg", ErrInvalidArguments)
	}
	var id int
	if len(cmd.Args) == 2 {
		n, err := strconv.Atoi(cmd.Args[1])
		if err != nil {
			return commandError("bg", ErrInvalidArguments)
		}
		id = n
	} else {
		last, ok := s.jobs.LastStopped()
		if !ok {
			return commandError("bg", ErrNoStoppedJobs)
		}
		id = last.ID
	}
	j, ok := s.jobs.Get(id)
	if !ok {
		return jobNotFound("bg", id)
	}
	if !j.Stopped {
		return &JobError{Cmd: "bg", ID: id, Reason: reasonRunning}
	}

	if err := s.prober.Signal(j.PID, syscall.SIGCONT); err != nil {
		return err
	}
	s.jobs.SetStopped(id, false)
	s.printf("%s : %d\n", j.Line(), j.PID)
	return nil
}

func (s *Shell) quit(cmd *parser.Command) error {
	if len(cmd.Args) < 2 || cmd.Args[1] != "kill" {
		return errQuit
	}
	s.mu.Lock()
	s.fg.Store(nil)
	alarmErr := s.timeouts.Reset()
	killed, killErr := s.jobs.KillAll()
	s.mu.Unlock()

	if alarmErr != nil {
		s.log.Printf("quit: disarm alarm: %v", alarmErr)
	}
	if killErr != nil {
		s.log.Printf("quit: %v", killErr)
	}
	s.printf("smash: sending SIGKILL signal to %d jobs:\n", len(killed))
	for _, j := range killed {
		s.printf("%d: %s\n", j.PID, j.Line())
	}
	return errQuit
}

const defaultHeadLines = 10

func (s *Shell) head(cmd *parser.Command) error {
	lines := defaultHeadLines
	var path string
	switch len(cmd.Args) {
	case 2:
		path = cmd.Args[1]
	case 3:
		n, err := strconv.Atoi(strings.TrimPrefix(cmd.Args[1], "-"))
		if err != nil || n < 0 {
			return commandError("head", ErrInvalidArguments)
		}
		lines, path = n, cmd.Args[2]
	default:
		return commandError("head", ErrNotEnoughArguments)
	}

	f, err := os.Open(path)
	if err != nil {
		return os.NewSyscallError("open", unwrapSyscall(err))
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for i := 0; i < lines; i++ {
		line, err := r.ReadString('\n')
		if line != "" {
			if _, werr := io.WriteString(s.stdout, line); werr != nil {
				return os.NewSyscallError("write", unwrapSyscall(werr))
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return os.NewSyscallError("read", unwrapSyscall(err))
		}
	}
	return nil
}
