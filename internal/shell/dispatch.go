package shell

import (
	"errors"
	"strconv"
	"time"

	"smash/internal/parser"
	"smash/internal/proc"
	"smash/internal/registry"
)

// Outcome tags what a dispatched line turned out to be.
type Outcome int

const (
	OutcomeNoop Outcome = iota
	OutcomeBuiltin
	OutcomeExternal
	OutcomeTimeout
	OutcomePipe
	OutcomeRedirect
	// OutcomeQuit ends the read loop. It propagates out of pipes and
	// redirections.
	OutcomeQuit
)

// Execute dispatches one input line. Errors are reported on the diagnostic
// stream; only quit ends the shell.
func (s *Shell) Execute(line string) Outcome {
	return s.execute(line, 0)
}

func (s *Shell) execute(line string, depth int) Outcome {
	if depth > s.cfg.MaxDepth {
		s.report(ErrTooDeep)
		return OutcomeNoop
	}
	s.jobs.RemoveFinished()

	cmd, ok := parser.Parse(line)
	if !ok {
		return OutcomeNoop
	}
	s.log.Printf("dispatch %s (depth %d): %q", cmd.Kind, depth, cmd.Line)

	switch cmd.Kind {
	case parser.KindRedirect:
		return s.runRedirect(cmd, depth)
	case parser.KindPipe:
		return s.runPipe(cmd, depth)
	case parser.KindTimeout:
		s.report(s.runTimeout(cmd))
		return OutcomeTimeout
	case parser.KindBuiltin:
		return s.runBuiltin(cmd)
	default:
		s.report(s.runExternal(cmd))
		return OutcomeExternal
	}
}

func (s *Shell) runBuiltin(cmd *parser.Command) Outcome {
	fn := builtins[cmd.Name()]
	if fn == nil {
		// Parse only classifies known keywords as builtins.
		return OutcomeNoop
	}
	err := fn(s, cmd)
	if errors.Is(err, errQuit) {
		return OutcomeQuit
	}
	s.report(err)
	return OutcomeBuiltin
}

func (s *Shell) runExternal(cmd *parser.Command) error {
	pid, err := proc.Spawn(s.cfg.Interpreter, cmd.Stripped)
	if err != nil {
		return err
	}
	s.mu.Lock()
	j := s.jobs.Add(cmd, false, pid)
	s.mu.Unlock()
	s.log.Printf("job %d: started pid %d", j.ID, pid)

	if cmd.Background {
		return nil
	}
	return s.waitForeground(j)
}

func (s *Shell) runTimeout(cmd *parser.Command) error {
	if len(cmd.Args) < 3 {
		return commandError(parser.TimeoutKeyword, ErrInvalidArguments)
	}
	secs, err := strconv.Atoi(cmd.Args[1])
	if err != nil || secs < 0 {
		return commandError(parser.TimeoutKeyword, ErrInvalidArguments)
	}

	pid, err := proc.Spawn(s.cfg.Interpreter, parser.CutFields(cmd.Stripped, 2))
	if err != nil {
		return err
	}
	s.mu.Lock()
	j := s.jobs.Add(cmd, false, pid)
	armErr := s.timeouts.Add(j, time.Duration(secs)*time.Second)
	s.mu.Unlock()
	s.log.Printf("job %d: started pid %d with a %ds timeout", j.ID, pid, secs)
	if armErr != nil {
		s.report(armErr)
	}

	if cmd.Background {
		return nil
	}
	return s.waitForeground(j)
}

// waitForeground makes j the foreground job and blocks until it exits or
// stops. A stopped job stays registered.
func (s *Shell) waitForeground(j *registry.Job) error {
	s.fg.Store(j)
	stopped, err := proc.Wait(j.PID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fg.CompareAndSwap(j, nil)
	if err == nil && stopped {
		if s.jobs.Lookup(j.ID) == j {
			s.jobs.SetStopped(j.ID, true)
		}
		return nil
	}
	if s.jobs.RemoveByPID(j.PID) != nil {
		s.timeouts.Remove(j)
	}
	return err
}
