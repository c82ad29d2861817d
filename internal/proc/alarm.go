package proc

import "time"

// Alarm is the single process-wide timer that raises SIGALRM.
// Setting it replaces any pending alarm.
type Alarm interface {
	Set(d time.Duration) error
	Disarm() error
}
