package registry

import (
	"syscall"
	"time"

	"smash/internal/parser"
)

// Job tracks one spawned process. ID, PID, Cmd and InsertedAt never change
// after registration; Stopped is read and written through the Registry.
type Job struct {
	ID         int             `json:"id"`
	PID        int             `json:"pid"`
	Cmd        *parser.Command `json:"cmd"`
	InsertedAt time.Time       `json:"inserted_at"`
	Stopped    bool            `json:"stopped"`
}

// Line is the command line the job was started from.
func (j *Job) Line() string {
	if j.Cmd == nil {
		return ""
	}
	return j.Cmd.Line
}

// Prober performs the process checks the registry needs.
type Prober interface {
	// Reap collects pid without blocking and reports whether it had exited.
	Reap(pid int) bool
	// Alive reports whether pid can still receive signals.
	Alive(pid int) bool
	Signal(pid int, sig syscall.Signal) error
}
