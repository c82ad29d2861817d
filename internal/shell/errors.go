package shell

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrInvalidArguments   = errors.New("invalid arguments")
	ErrTooManyArguments   = errors.New("too many arguments")
	ErrNotEnoughArguments = errors.New("not enough arguments")
	ErrOldPwdNotSet       = errors.New("OLDPWD not set")
	ErrJobsListEmpty      = errors.New("jobs list is empty")
	ErrNoStoppedJobs      = errors.New("there is no stopped jobs to resume")
	ErrTooDeep            = errors.New("too many nested commands")

	// errQuit asks the read loop to exit.
	errQuit = errors.New("quit")
)

// CommandError attributes a failure to the command that produced it.
type CommandError struct {
	Cmd string
	Err error
}

func (e *CommandError) Error() string { return e.Cmd + ": " + e.Err.Error() }

func (e *CommandError) Unwrap() error { return e.Err }

func commandError(cmd string, err error) error {
	return &CommandError{Cmd: cmd, Err: err}
}

// JobError reports a job id that cannot be used by a command.
type JobError struct {
	Cmd    string
	ID     int
	Reason string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: job-id %d %s", e.Cmd, e.ID, e.Reason)
}

const (
	reasonMissing = "does not exist"
	reasonRunning = "is already running in the background"
)

func jobNotFound(cmd string, id int) error {
	return &JobError{Cmd: cmd, ID: id, Reason: reasonMissing}
}

// IsJobNotFound reports whether err names a job id that is not registered.
func IsJobNotFound(err error) bool {
	var je *JobError
	return errors.As(err, &je) && je.Reason == reasonMissing
}

// message renders err the way it is shown after the "smash error: " prefix.
// Syscall failures read "<call> failed: <os error>".
func message(err error) string {
	var se *os.SyscallError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s failed: %v", se.Syscall, se.Err)
	}
	return err.Error()
}
