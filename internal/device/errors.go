package device

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunchFailure is wrapped by every error raised while a kernel executes.
	ErrLaunchFailure = errors.New("kernel launch failed")
	// ErrInvalidConfig is returned when a grid/block shape cannot be launched.
	ErrInvalidConfig = errors.New("invalid launch configuration")
	// ErrStreamClosed is returned by Launch after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// LaunchError reports the terminal failure of one launch.
type LaunchError struct {
	Kernel string
	Block  int
	Cause  any
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%v: kernel %s block %d: %v", ErrLaunchFailure, e.Kernel, e.Block, e.Cause)
}

func (e *LaunchError) Unwrap() []error {
	if cause, ok := e.Cause.(error); ok {
		return []error{ErrLaunchFailure, cause}
	}
	return []error{ErrLaunchFailure}
}
