// Package proc wraps the process-control syscalls the shell relies on.
package proc

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Spawn starts "<interpreter> -c <text>" in a new process group. The child
// inherits the current descriptors 0, 1 and 2, including active redirections.
func Spawn(interpreter, text string) (int, error) {
	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{0, 1, 2},
		Sys:   &syscall.SysProcAttr{Setpgid: true},
	}
	pid, err := syscall.ForkExec(interpreter, []string{interpreter, "-c", text}, attr)
	if err != nil {
		return 0, os.NewSyscallError("execv", err)
	}
	return pid, nil
}

// Wait blocks until pid terminates or stops. A child that was already reaped
// elsewhere counts as terminated.
func Wait(pid int) (stopped bool, err error) {
	var ws unix.WaitStatus
	for {
		_, err = unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.ECHILD) {
			return false, nil
		}
		return false, os.NewSyscallError("waitpid", err)
	}
	return ws.Stopped(), nil
}

// System implements process probing against the running kernel.
type System struct{}

// Reap collects pid if it has exited, without blocking.
func (System) Reap(pid int) bool {
	var ws unix.WaitStatus
	got, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	return err == nil && got > 0
}

// Alive probes pid with signal 0.
func (System) Alive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// Signal delivers sig to the process group led by pid. Jobs are spawned as
// group leaders, so this also reaches anything the interpreter forked.
func (System) Signal(pid int, sig syscall.Signal) error {
	if err := unix.Kill(-pid, sig); err != nil {
		return os.NewSyscallError("kill", err)
	}
	return nil
}
