package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation reports device or host memory exhaustion or a failed memory binding.
	ErrAllocation = errors.New("allocation failed")
	// ErrMap reports a host write to a buffer without a host-visible mapping.
	ErrMap = errors.New("buffer has no host-visible mapping")
	// ErrOutOfBounds reports a write past the declared size or a coordinate outside the world grid.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrSwapchain reports capability, format, present mode or image view failures.
	ErrSwapchain = errors.New("swapchain error")
	// ErrDispatch reports pipeline, descriptor or submission failures of a compute dispatch.
	ErrDispatch = errors.New("dispatch failed")
	// ErrSurfaceOutOfDate is recoverable: the swapchain must be rebuilt.
	ErrSurfaceOutOfDate = errors.New("surface out of date")
	// ErrDeviceLost is fatal, nothing may be submitted afterwards.
	ErrDeviceLost = errors.New("device lost")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Stage string

const (
	StageConstruction Stage = "construction"
	StageWait         Stage = "wait"
	StageAcquire      Stage = "acquisition"
	StageRecord       Stage = "recording"
	StageSubmit       Stage = "submission"
	StagePresent      Stage = "presentation"
	StageResize       Stage = "resize"
	StageGeneration   Stage = "generation"
	StageShutdown     Stage = "shutdown"
)

// StageError tags an error with the frame or setup stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage returns nil for a nil error, and does not double wrap.
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// IsFatal reports whether the error leaves the device unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}
