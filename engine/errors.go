package engine

import "errors"

var (
	// ErrInvalidHandle is returned for operations on an unknown or
	// destroyed handle.
	ErrInvalidHandle = errors.New("engine: invalid handle")

	// ErrAlreadyRunning is returned when Run is invoked on an instance
	// whose loop is already running.
	ErrAlreadyRunning = errors.New("engine: already running")

	// ErrNotRunning is returned when Stop is invoked on an instance whose
	// loop is not running.
	ErrNotRunning = errors.New("engine: not running")

	// ErrStopped is returned when Run is invoked after an orderly stop;
	// instances do not restart.
	ErrStopped = errors.New("engine: already stopped")

	// ErrDestroyed is returned for any operation on a destroyed instance.
	ErrDestroyed = errors.New("engine: destroyed")

	// ErrCommunication marks worker-mode transport failures: the worker
	// process is unreachable or exited unexpectedly.
	ErrCommunication = errors.New("engine: worker communication failure")

	// ErrFatal marks an unrecoverable internal condition; the run loop
	// terminates and the instance becomes unusable.
	ErrFatal = errors.New("engine: fatal")
)
