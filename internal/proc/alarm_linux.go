package proc

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ITimer drives SIGALRM through ITIMER_REAL.
type ITimer struct{}

func (ITimer) Set(d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	return setitimer(d)
}

func (ITimer) Disarm() error {
	return setitimer(0)
}

func setitimer(d time.Duration) error {
	it := unix.Itimerval{Value: unix.NsecToTimeval(d.Nanoseconds())}
	if _, err := unix.Setitimer(unix.ItimerReal, it); err != nil {
		return os.NewSyscallError("setitimer", err)
	}
	return nil
}
