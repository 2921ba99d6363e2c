package itc

import "fmt"

// Errno is a kernel error code returned from a system call.
type Errno uint64

// ErrHoldOn means the target exists but is not ready to accept the
// operation; callers yield and try again. ErrThreadDestroyed is returned by
// any system call issued by a thread that has already been terminated.
const (
	ErrInvalidArgument Errno = 1
	ErrOutOfMemory     Errno = 2
	ErrMemNotMapped    Errno = 3
	ErrInternal        Errno = 4
	ErrDenied          Errno = 5
	ErrHoldOn          Errno = 6
	ErrOutOfRange      Errno = 7
	ErrPanic           Errno = 8
	ErrNotRegistered   Errno = 9
	ErrThreadDestroyed Errno = 10
)

var errnoNames = map[Errno]string{
	ErrInvalidArgument: "invalid argument",
	ErrOutOfMemory:     "out of memory",
	ErrMemNotMapped:    "memory not mapped",
	ErrInternal:        "internal error",
	ErrDenied:          "permission denied",
	ErrHoldOn:          "hold on",
	ErrOutOfRange:      "out of range",
	ErrPanic:           "kernel panic",
	ErrNotRegistered:   "service not registered",
	ErrThreadDestroyed: "thread destroyed",
}

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", uint64(e))
}

// Transient reports whether the error is one a client retries by yielding.
func (e Errno) Transient() bool {
	return e == ErrHoldOn || e == ErrNotRegistered
}
