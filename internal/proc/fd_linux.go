package proc

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Saved is a duplicate of a standard descriptor taken before redirecting it.
type Saved struct {
	target int
	copyFD int
}

// Redirect points target at src and returns a handle that restores the
// previous descriptor.
func Redirect(src, target int) (*Saved, error) {
	cp, err := unix.Dup(target)
	if err != nil {
		return nil, os.NewSyscallError("dup", err)
	}
	unix.CloseOnExec(cp)
	if err := dup2(src, target); err != nil {
		unix.Close(cp)
		return nil, err
	}
	return &Saved{target: target, copyFD: cp}, nil
}

// Restore puts the original descriptor back and releases the copy.
func (s *Saved) Restore() error {
	if err := dup2(s.copyFD, s.target); err != nil {
		unix.Close(s.copyFD)
		return err
	}
	if err := unix.Close(s.copyFD); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

func dup2(oldfd, newfd int) error {
	if oldfd == newfd {
		return nil
	}
	if err := unix.Dup3(oldfd, newfd, 0); err != nil {
		return os.NewSyscallError("dup", err)
	}
	return nil
}

// OpenTarget opens a redirection target for writing, truncating unless
// appendMode is set.
func OpenTarget(path string, appendMode bool) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return nil, os.NewSyscallError("open", pe.Err)
		}
		return nil, os.NewSyscallError("open", err)
	}
	return f, nil
}
