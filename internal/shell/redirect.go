package shell

import (
	"smash/internal/parser"
	"smash/internal/proc"
)

// runRedirect runs the left command with fd 1 pointed at the target file,
// then puts fd 1 back whatever the inner command was.
func (s *Shell) runRedirect(cmd *parser.Command, depth int) Outcome {
	left, target, appendMode := cmd.Redirect()

	f, err := proc.OpenTarget(target, appendMode)
	if err != nil {
		s.report(err)
		return OutcomeRedirect
	}
	saved, err := proc.Redirect(int(f.Fd()), 1)
	f.Close()
	if err != nil {
		s.report(err)
		return OutcomeRedirect
	}

	outcome := s.execute(left, depth+1)
	if err := saved.Restore(); err != nil {
		s.report(err)
	}
	if outcome == OutcomeQuit {
		return outcome
	}
	return OutcomeRedirect
}
