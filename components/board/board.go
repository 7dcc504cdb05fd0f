// Package board defines the link to the encoder/motor board that closes the drive loop.
package board

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Wheel indexes into the per-wheel pairs.
const (
	Left  = 0
	Right = 1
)

// PoseReading is one sample from the board: raw encoder counts since the last reset
// and the board's own odometry estimate.
type PoseReading struct {
	EncLeft  int64
	EncRight int64
	X        float64
	Y        float64
	Theta    float64
}

// Transport is the command/telemetry link to the board. Implementations are driven
// from a single control loop and are not required to be safe for concurrent use.
type Transport interface {
	// GetPose returns the freshest reading.
	GetPose(ctx context.Context) (PoseReading, error)
	// SendPWM commands both wheels. dir is 1 forward, -1 reverse, 0 idle.
	SendPWM(ctx context.Context, pwm [2]uint8, dir [2]int) error
	// ResetPose zeroes the encoder counters. Odometry is kept.
	ResetPose(ctx context.Context) error
	// SetPose overwrites the board's odometry estimate.
	SetPose(ctx context.Context, x, y, theta float64) error
}

// TransportError is an I/O failure talking to the board.
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err as a failure of op. A nil err stays nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("board %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *TransportError) Unwrap() error { return e.Err }

// Cause returns the underlying I/O error.
func (e *TransportError) Cause() error { return e.Err }

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
