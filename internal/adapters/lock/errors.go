package lock

import "errors"

var (
	// ErrLocked is returned when another run holds the lock.
	ErrLocked = errors.New("lock is held")
	// ErrNotHeld is returned when releasing a lock that expired or was taken over.
	ErrNotHeld = errors.New("lock not held")
)
